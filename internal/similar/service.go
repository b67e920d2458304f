package similar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/matthewbaird/mllabeler/internal/elements"
	"github.com/matthewbaird/mllabeler/internal/store"
)

// ErrNoReference is returned when no single element is selected.
var ErrNoReference = errors.New("no single reference element selected")

// SelectionPublisher replaces the host's current selection.
type SelectionPublisher interface {
	ReplaceSelection(ctx context.Context, ids []string) error
}

// Service runs similarity searches against an element source.
type Service struct {
	store     *store.Store[*State, Action]
	source    elements.Source
	publisher SelectionPublisher

	mu  sync.RWMutex
	aux *AuxIndex

	// publishMu orders selection publishes against token checks.
	publishMu sync.Mutex

	wg sync.WaitGroup
}

// NewService creates a finder service with cfg as initial configuration.
func NewService(source elements.Source, publisher SelectionPublisher, cfg Config) *Service {
	st := store.New(InitialState(cfg), Reduce, 16)
	st.Subscribe("log", store.LogListener[*State, Action]())
	return &Service{store: st, source: source, publisher: publisher}
}

// Start begins processing state transitions.
func (s *Service) Start(ctx context.Context) {
	s.store.Start(ctx)
}

// Stop waits for running searches and stops the state store.
func (s *Service) Stop() {
	s.wg.Wait()
	s.store.Stop()
}

// Wait blocks until every running search has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// State returns the current finder state.
func (s *Service) State() *State {
	return s.store.State()
}

// SetAuxData builds the aux-data partition index.
func (s *Service) SetAuxData(data map[string][]byte) error {
	idx, err := NewAuxIndex(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.aux = idx
	s.mu.Unlock()
	log.Printf("similar: indexed aux data of %d elements", idx.Len())
	return nil
}

func (s *Service) auxIndex() *AuxIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aux
}

// SetConfig validates and replaces the configuration.
func (s *Service) SetConfig(ctx context.Context, cfg Config) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return s.store.State(), err
	}
	return s.store.Dispatch(ctx, ConfigChanged{Config: cfg})
}

// HandleSelection tracks the reference element. Only a selection of exactly
// one element changes the reference.
func (s *Service) HandleSelection(ctx context.Context, ids []string) error {
	if len(ids) != 1 {
		return nil
	}
	attrs, err := s.source.Attributes(ctx, ids[0])
	if errors.Is(err, elements.ErrNotFound) {
		log.Printf("similar: selected element %s is not in the catalog", ids[0])
		return nil
	}
	if err != nil {
		return fmt.Errorf("probing %s: %w", ids[0], err)
	}
	_, err = s.store.Dispatch(ctx, SingleKeyChanged{Attributes: attrs, Content: Probe(attrs)})
	return err
}

// Extend starts a search for elements similar to the reference and returns
// its token. The search runs in the background; its result replaces the
// selection unless a later search or reset superseded it.
func (s *Service) Extend(ctx context.Context) (string, error) {
	st := s.store.State()
	if st.Reference == nil {
		return "", ErrNoReference
	}
	token := uuid.NewString()
	st, err := s.store.Dispatch(ctx, SearchStarted{Token: token})
	if err != nil {
		return "", err
	}

	ref, content, cfg := *st.Reference, st.Content, st.Config
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ids, err := s.find(bg, ref, content, cfg)
		if err != nil {
			log.Printf("similar: search %s failed: %v", token, err)
			ids = nil
		}
		s.publishMu.Lock()
		defer s.publishMu.Unlock()
		st, derr := s.store.Dispatch(bg, ElementsFound{Token: token, Count: len(ids)})
		if derr != nil {
			log.Printf("similar: recording result of search %s: %v", token, derr)
			return
		}
		if st.Accepted != token {
			log.Printf("similar: dropping stale result of search %s", token)
			return
		}
		if err == nil {
			if perr := s.publisher.ReplaceSelection(bg, ids); perr != nil {
				log.Printf("similar: replacing selection: %v", perr)
			}
		}
	}()
	return token, nil
}

func (s *Service) find(ctx context.Context, ref elements.Attributes, content ContentMap, cfg Config) ([]string, error) {
	query, args := BuildQuery(ref, content, cfg)
	ids, err := s.source.Search(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if cfg.EnableAuxData {
		if idx := s.auxIndex(); idx != nil {
			ids = idx.Filter(ref.ElementID, ids)
		}
	}
	return ids, nil
}

// Reset restores the selection to the reference element.
func (s *Service) Reset(ctx context.Context) (*State, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	st := s.store.State()
	if st.Reference == nil {
		return st, nil
	}
	if err := s.publisher.ReplaceSelection(ctx, []string{st.SingleID}); err != nil {
		return st, fmt.Errorf("resetting selection: %w", err)
	}
	return s.store.Dispatch(ctx, SearchReset{})
}
