// Package cycle steps the viewports through a fixed list of elements, one at
// a time, restoring the original camera framing when done.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/matthewbaird/mllabeler/internal/selectors"
	"github.com/matthewbaird/mllabeler/internal/types"
	"github.com/matthewbaird/mllabeler/internal/workflow"
)

var (
	// ErrBusy is returned when another transition is still running.
	ErrBusy = errors.New("cycle transition in progress")
	// ErrNotEnabled is returned when stepping while cycle mode is off.
	ErrNotEnabled = errors.New("cycle mode not enabled")
)

// Viewport is one open view of the host application.
type Viewport interface {
	ID() string
	Frustum() types.Frustum
	SetupFromFrustum(f types.Frustum)
	ZoomToElements(ids []string)
}

// ViewportHost enumerates the open viewports.
type ViewportHost interface {
	Viewports() []Viewport
}

// StateStore is the serialized state container the navigator dispatches to.
type StateStore interface {
	State() *workflow.State
	Dispatch(ctx context.Context, a workflow.Action) (*workflow.State, error)
}

// Navigator runs cycle mode transitions. Transitions never interleave: a
// second caller gets ErrBusy while one is running.
type Navigator struct {
	mu        sync.Mutex
	store     StateStore
	selectors *selectors.Selectors
	host      ViewportHost
}

// NewNavigator creates a navigator.
func NewNavigator(st StateStore, sel *selectors.Selectors, host ViewportHost) *Navigator {
	return &Navigator{store: st, selectors: sel, host: host}
}

func (n *Navigator) begin(ctx context.Context) (*workflow.State, error) {
	if !n.mu.TryLock() {
		return nil, ErrBusy
	}
	st, err := n.store.Dispatch(ctx, workflow.CycleActionStarted{})
	if err != nil {
		n.mu.Unlock()
		return nil, fmt.Errorf("starting cycle action: %w", err)
	}
	return st, nil
}

// end releases the guard. When the transition failed or made no change the
// working flag is cleared explicitly, even if the caller's ctx is done.
func (n *Navigator) end(ctx context.Context, completed bool) {
	defer n.mu.Unlock()
	if completed {
		return
	}
	if _, err := n.store.Dispatch(context.WithoutCancel(ctx), workflow.CycleActionAborted{}); err != nil {
		log.Printf("cycle: clearing working flag: %v", err)
	}
}

// Enable starts cycling through the selected elements that are currently
// selectable. It is a no-op when already enabled or when nothing qualifies.
func (n *Navigator) Enable(ctx context.Context) error {
	st, err := n.begin(ctx)
	if err != nil {
		return err
	}
	completed := false
	defer func() { n.end(ctx, completed) }()

	if st.Cycle.Enabled {
		return nil
	}
	valid, err := n.selectors.ValidSelection(st)
	if err != nil {
		return err
	}
	list := valid.IDs()
	if len(list) == 0 {
		return nil
	}

	frustums := make(map[string]types.Frustum)
	for _, vp := range n.host.Viewports() {
		frustums[vp.ID()] = vp.Frustum()
	}
	for _, vp := range n.host.Viewports() {
		vp.ZoomToElements(list)
	}
	if _, err := n.store.Dispatch(ctx, workflow.CycleEnabled{List: list, Frustums: frustums}); err != nil {
		return fmt.Errorf("enabling cycle mode: %w", err)
	}
	completed = true
	return nil
}

// Disable restores every viewport to the framing saved by Enable.
func (n *Navigator) Disable(ctx context.Context) error {
	st, err := n.begin(ctx)
	if err != nil {
		return err
	}
	completed := false
	defer func() { n.end(ctx, completed) }()

	if !st.Cycle.Enabled {
		return nil
	}
	for _, vp := range n.host.Viewports() {
		if f, ok := st.Cycle.InitialFrustums[vp.ID()]; ok {
			vp.SetupFromFrustum(f)
		}
	}
	if _, err := n.store.Dispatch(ctx, workflow.CycleDisabled{}); err != nil {
		return fmt.Errorf("disabling cycle mode: %w", err)
	}
	completed = true
	return nil
}

// Advance moves count steps through the cycle list, wrapping in both
// directions. The first step after Enable always lands on index 0.
func (n *Navigator) Advance(ctx context.Context, count int) error {
	st, err := n.begin(ctx)
	if err != nil {
		return err
	}
	completed := false
	defer func() { n.end(ctx, completed) }()

	if !st.Cycle.Enabled {
		return ErrNotEnabled
	}
	size := len(st.Cycle.List)
	if size == 0 {
		return nil
	}
	idx := 0
	if st.Cycle.CurrentIndex != nil {
		idx = ((*st.Cycle.CurrentIndex+count)%size + size) % size
	}
	target := []string{st.Cycle.List[idx]}
	for _, vp := range n.host.Viewports() {
		vp.ZoomToElements(target)
	}
	if _, err := n.store.Dispatch(ctx, workflow.CycleIndexChanged{Index: idx}); err != nil {
		return fmt.Errorf("changing cycle index: %w", err)
	}
	completed = true
	return nil
}

// Forward advances count elements.
func (n *Navigator) Forward(ctx context.Context, count int) error {
	return n.Advance(ctx, count)
}

// Backward steps back count elements.
func (n *Navigator) Backward(ctx context.Context, count int) error {
	return n.Advance(ctx, -count)
}

// SetPoppedOut records whether the cycle controls are detached.
func (n *Navigator) SetPoppedOut(ctx context.Context, poppedOut bool) error {
	_, err := n.store.Dispatch(ctx, workflow.CyclePopoutChanged{PoppedOut: poppedOut})
	return err
}
