// Package store provides a serialized state container. Actions are queued on
// a buffered channel and reduced one at a time by a single consumer
// goroutine; subscribers are notified in the same goroutine after every
// applied action.
package store

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrStopped is returned by Dispatch once the store has shut down.
var ErrStopped = errors.New("store stopped")

// Reducer computes the next state. It must not modify prev. On error the
// state is left unchanged.
type Reducer[S, A any] func(prev S, action A) (S, error)

// Listener observes applied actions.
type Listener[S, A any] interface {
	StateChanged(ctx context.Context, prev, next S, action A) error
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc[S, A any] func(ctx context.Context, prev, next S, action A) error

func (f ListenerFunc[S, A]) StateChanged(ctx context.Context, prev, next S, action A) error {
	return f(ctx, prev, next, action)
}

type namedListener[S, A any] struct {
	name     string
	listener Listener[S, A]
}

type result[S any] struct {
	state S
	err   error
}

type envelope[S, A any] struct {
	ctx    context.Context
	action A
	reply  chan result[S]
}

// Store holds the current state of type S and applies actions of type A.
type Store[S, A any] struct {
	mu          sync.RWMutex
	state       S
	reduce      Reducer[S, A]
	subscribers []namedListener[S, A]

	actions  chan envelope[S, A]
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a store with the given initial state and channel buffer size.
func New[S, A any](initial S, reduce Reducer[S, A], bufSize int) *Store[S, A] {
	if bufSize < 1 {
		bufSize = 64
	}
	return &Store[S, A]{
		state:   initial,
		reduce:  reduce,
		actions: make(chan envelope[S, A], bufSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Subscribe registers a named listener. Must be called before Start.
func (s *Store[S, A]) Subscribe(name string, l Listener[S, A]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, namedListener[S, A]{name: name, listener: l})
}

// State returns the latest applied state.
func (s *Store[S, A]) State() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start begins the consumer goroutine. It runs until ctx is cancelled or
// Stop is called, applying queued actions before exiting.
func (s *Store[S, A]) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		for {
			select {
			case env := <-s.actions:
				s.apply(env)
			case <-ctx.Done():
				s.drain()
				return
			case <-s.quit:
				s.drain()
				return
			}
		}
	}()
}

func (s *Store[S, A]) drain() {
	for {
		select {
		case env := <-s.actions:
			s.apply(env)
		default:
			return
		}
	}
}

// Stop shuts down the consumer goroutine and waits for it to finish.
func (s *Store[S, A]) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.done
}

// Dispatch queues action and blocks until it has been applied, returning
// the resulting state.
func (s *Store[S, A]) Dispatch(ctx context.Context, action A) (S, error) {
	var zero S
	env := envelope[S, A]{ctx: ctx, action: action, reply: make(chan result[S], 1)}
	select {
	case s.actions <- env:
	case <-s.quit:
		return zero, ErrStopped
	case <-s.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-env.reply:
		return r.state, r.err
	case <-s.done:
		// The consumer may have applied the action while draining.
		select {
		case r := <-env.reply:
			return r.state, r.err
		default:
			return zero, ErrStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Store[S, A]) apply(env envelope[S, A]) {
	s.mu.RLock()
	prev := s.state
	subs := s.subscribers
	s.mu.RUnlock()

	next, err := s.reduce(prev, env.action)
	if err != nil {
		env.reply <- result[S]{state: prev, err: err}
		return
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	for _, sub := range subs {
		if err := sub.listener.StateChanged(env.ctx, prev, next, env.action); err != nil {
			log.Printf("store: %s listener error for %s: %v", sub.name, actionName(env.action), err)
		}
	}
	env.reply <- result[S]{state: next}
}
