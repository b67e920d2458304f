// Package labelsource loads label definitions, user labels and model
// predictions, and persists user labels.
package labelsource

import (
	"context"
	"sync"

	"github.com/matthewbaird/mllabeler/internal/types"
)

// Source is a pluggable provider of labeling data. Missing ids are reported
// with the taxonomy's unlabeled value.
type Source interface {
	LabelDefinitions(ctx context.Context) (types.LabelDefinitions, error)
	UserLabels(ctx context.Context, ids []string) (map[string]types.Label, error)
	SetUserLabels(ctx context.Context, labels map[string]types.Label) error
	ModelPredictions(ctx context.Context, ids []string) (map[string]types.ModelPrediction, error)
}

func noPrediction(unlabeled types.Label) types.ModelPrediction {
	return types.ModelPrediction{
		Label:       unlabeled,
		Activations: []types.LabelActivation{{Label: unlabeled, Activation: 1.0}},
	}
}

// MemorySource implements Source with in-memory maps.
// Intended for demos and testing.
type MemorySource struct {
	mu          sync.RWMutex
	defs        types.LabelDefinitions
	labels      map[string]types.Label
	predictions map[string]types.ModelPrediction
	uploadErr   error
	uploads     int
}

// NewMemorySource creates a source serving defs with no labels.
func NewMemorySource(defs types.LabelDefinitions) *MemorySource {
	return &MemorySource{
		defs:        defs,
		labels:      make(map[string]types.Label),
		predictions: make(map[string]types.ModelPrediction),
	}
}

// SetPrediction stores the prediction of one element.
func (s *MemorySource) SetPrediction(id string, p types.ModelPrediction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[id] = p
}

// FailUploads makes SetUserLabels return err until cleared with nil.
func (s *MemorySource) FailUploads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadErr = err
}

// Uploads returns the number of successful SetUserLabels calls.
func (s *MemorySource) Uploads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploads
}

func (s *MemorySource) LabelDefinitions(_ context.Context) (types.LabelDefinitions, error) {
	return s.defs, nil
}

func (s *MemorySource) UserLabels(_ context.Context, ids []string) (map[string]types.Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.Label, len(ids))
	for _, id := range ids {
		if l, ok := s.labels[id]; ok {
			out[id] = l
		} else {
			out[id] = s.defs.UnlabeledValue
		}
	}
	return out, nil
}

func (s *MemorySource) SetUserLabels(_ context.Context, labels map[string]types.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.labels = make(map[string]types.Label, len(labels))
	for k, v := range labels {
		s.labels[k] = v
	}
	s.uploads++
	return nil
}

func (s *MemorySource) ModelPredictions(_ context.Context, ids []string) (map[string]types.ModelPrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.ModelPrediction, len(ids))
	for _, id := range ids {
		if p, ok := s.predictions[id]; ok {
			out[id] = p
		} else {
			out[id] = noPrediction(s.defs.UnlabeledValue)
		}
	}
	return out, nil
}
