package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type add struct{ n int }

func (add) ActionType() string { return "add" }

var errNegative = errors.New("negative")

func counter(prev int, a add) (int, error) {
	if a.n < 0 {
		return prev, errNegative
	}
	return prev + a.n, nil
}

func TestStore_DispatchApplies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New[int, add](0, counter, 0)
	var seen []int
	s.Subscribe("recorder", ListenerFunc[int, add](func(_ context.Context, prev, next int, _ add) error {
		seen = append(seen, next-prev)
		return nil
	}))
	s.Subscribe("log", LogListener[int, add]())
	s.Start(ctx)
	defer s.Stop()

	got, err := s.Dispatch(ctx, add{n: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	got, err = s.Dispatch(ctx, add{n: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	assert.Equal(t, 5, s.State())
	assert.Equal(t, []int{2, 3}, seen)
}

func TestStore_ReducerErrorKeepsState(t *testing.T) {
	ctx := context.Background()
	s := New[int, add](1, counter, 4)
	s.Start(ctx)
	defer s.Stop()

	_, err := s.Dispatch(ctx, add{n: -1})
	assert.ErrorIs(t, err, errNegative)
	assert.Equal(t, 1, s.State())
}

func TestStore_ConcurrentDispatchSerialized(t *testing.T) {
	ctx := context.Background()
	s := New[int, add](0, counter, 8)
	s.Start(ctx)
	defer s.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Dispatch(ctx, add{n: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, s.State())
}

func TestStore_DispatchAfterStop(t *testing.T) {
	ctx := context.Background()
	s := New[int, add](0, counter, 1)
	s.Start(ctx)
	s.Stop()
	s.Stop()

	_, err := s.Dispatch(ctx, add{n: 1})
	assert.ErrorIs(t, err, ErrStopped)
}
