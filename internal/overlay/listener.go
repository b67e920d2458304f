package overlay

import (
	"context"
	"fmt"

	"github.com/matthewbaird/mllabeler/internal/selectors"
	"github.com/matthewbaird/mllabeler/internal/store"
	"github.com/matthewbaird/mllabeler/internal/workflow"
)

// Sink receives overlay diffs.
type Sink interface {
	PushOverlay(ctx context.Context, d Diff) error
}

// NewListener recomputes overrides after every action and pushes the
// non-empty diffs to sink.
func NewListener(sel *selectors.Selectors, t *Tracker, sink Sink) store.Listener[*workflow.State, workflow.Action] {
	return store.ListenerFunc[*workflow.State, workflow.Action](
		func(ctx context.Context, _, next *workflow.State, _ workflow.Action) error {
			if !next.Ready {
				return nil
			}
			overrides, err := sel.Overrides(next)
			if err != nil {
				return fmt.Errorf("computing overrides: %w", err)
			}
			d := t.Update(overrides)
			if d.Empty() {
				return nil
			}
			return sink.PushOverlay(ctx, d)
		})
}
