// Package labeling is the engine facade: it loads data into the labeling
// store and exposes every user operation as a method.
package labeling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/mllabeler/internal/cycle"
	"github.com/matthewbaird/mllabeler/internal/elements"
	"github.com/matthewbaird/mllabeler/internal/history"
	"github.com/matthewbaird/mllabeler/internal/labelsource"
	"github.com/matthewbaird/mllabeler/internal/selectors"
	"github.com/matthewbaird/mllabeler/internal/store"
	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/types"
	"github.com/matthewbaird/mllabeler/internal/workflow"
)

var (
	ErrNotReady     = workflow.ErrNotReady
	ErrUnknownLabel = workflow.ErrUnknownLabel
	ErrSaveFailed   = errors.New("saving labels failed")
)

// SelectionPublisher replaces the host's current selection.
type SelectionPublisher interface {
	ReplaceSelection(ctx context.Context, ids []string) error
}

// Options configures an Engine.
type Options struct {
	HistoryCap int
}

// Engine owns the labeling store and its collaborators.
type Engine struct {
	store     *store.Store[*workflow.State, workflow.Action]
	selectors *selectors.Selectors
	navigator *cycle.Navigator
	elements  elements.Source
	labels    labelsource.Source
	publisher SelectionPublisher
	opts      Options

	saveMu sync.Mutex
}

// New creates an engine. Call Start before dispatching anything.
func New(el elements.Source, ls labelsource.Source, pub SelectionPublisher, host cycle.ViewportHost, opts Options) *Engine {
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = history.DefaultCap
	}
	st := store.New(workflow.Initial(), workflow.Reduce, 64)
	sel := selectors.New()
	return &Engine{
		store:     st,
		selectors: sel,
		navigator: cycle.NewNavigator(st, sel, host),
		elements:  el,
		labels:    ls,
		publisher: pub,
		opts:      opts,
	}
}

// Start begins applying actions.
func (e *Engine) Start(ctx context.Context) { e.store.Start(ctx) }

// Stop stops the store after pending actions are applied.
func (e *Engine) Stop() { e.store.Stop() }

// Subscribe registers a listener notified after every applied action.
func (e *Engine) Subscribe(name string, l store.Listener[*workflow.State, workflow.Action]) {
	e.store.Subscribe(name, l)
}

// State returns the current state.
func (e *Engine) State() *workflow.State { return e.store.State() }

// Selectors returns the derivation engine bound to this store.
func (e *Engine) Selectors() *selectors.Selectors { return e.selectors }

// Cycle returns the cycle navigator.
func (e *Engine) Cycle() *cycle.Navigator { return e.navigator }

// InitializeData loads the catalog and the taxonomy concurrently, then the
// labels and predictions of the loaded elements, and publishes everything
// in a single DataInitialized action.
func (e *Engine) InitializeData(ctx context.Context) error {
	var (
		records                   []types.ElementRecord
		models, categories, kinds []types.GroupRecord
		defs                      types.LabelDefinitions
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		records, err = e.elements.QueryElements(gctx)
		return err
	})
	g.Go(func() (err error) {
		models, err = e.elements.QueryModels(gctx)
		return err
	})
	g.Go(func() (err error) {
		categories, err = e.elements.QueryCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		kinds, err = e.elements.QueryClasses(gctx)
		return err
	})
	g.Go(func() (err error) {
		defs, err = e.labels.LabelDefinitions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	labels, err := taxonomy.Build(defs.Definitions)
	if err != nil {
		return fmt.Errorf("building taxonomy: %w", err)
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ElementID
	}
	var (
		userLabels  map[string]types.Label
		predictions map[string]types.ModelPrediction
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		userLabels, err = e.labels.UserLabels(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		predictions, err = e.labels.ModelPredictions(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("loading labels: %w", err)
	}

	states := make([]types.ElementState, len(records))
	for i, r := range records {
		s := types.ElementState{
			ElementID:  r.ElementID,
			ModelID:    r.ModelID,
			CategoryID: r.CategoryID,
			ClassID:    r.ClassID,
			ClassName:  r.ClassName,
			TrueLabel:  defs.UnlabeledValue,
			PredLabel:  defs.UnlabeledValue,
		}
		if l, ok := userLabels[r.ElementID]; ok {
			s.TrueLabel = l
		}
		if p, ok := predictions[r.ElementID]; ok {
			s.PredLabel = p.Label
			s.AuxData = p.AuxData
		}
		states[i] = s
	}

	_, err = e.store.Dispatch(ctx, workflow.DataInitialized{
		Catalog:    history.NewCatalog(states),
		HistoryCap: e.opts.HistoryCap,
		Models:     groupMap(models),
		Categories: groupMap(categories),
		Classes:    groupMap(kinds),
		TrueLabels: labelMap(defs, func(d types.LabelDefinition) *bool { return d.UserLabelShown }),
		PredLabels: labelMap(defs, func(d types.LabelDefinition) *bool { return d.ModelPredictionShown }),
		Labels:     labels,
		Unlabeled:  defs.UnlabeledValue,
	})
	if err != nil {
		return err
	}
	log.Printf("labeling: loaded %d elements, %d models, %d categories, %d classes, %d labels",
		len(states), len(models), len(categories), len(kinds), labels.Len())
	return nil
}

func groupMap(records []types.GroupRecord) *workflow.GroupMap {
	entries := make([]workflow.GroupEntry, len(records))
	for i, r := range records {
		entries[i] = workflow.GroupEntry{
			ID:         r.ID,
			GroupState: types.GroupState{DisplayLabel: r.DisplayName, IsDisplayed: true},
		}
	}
	return workflow.NewGroupMap(entries...)
}

func labelMap(defs types.LabelDefinitions, shown func(types.LabelDefinition) *bool) *workflow.GroupMap {
	entries := make([]workflow.GroupEntry, len(defs.Definitions))
	for i, d := range defs.Definitions {
		displayed := true
		if flag := shown(d); flag != nil {
			displayed = *flag
		}
		entries[i] = workflow.GroupEntry{
			ID:         d.Label,
			GroupState: types.GroupState{DisplayLabel: d.Label, IsDisplayed: displayed},
		}
	}
	return workflow.NewGroupMap(entries...)
}

// AuxDataMap returns the aux data of every element that has some.
func (e *Engine) AuxDataMap() (map[string][]byte, error) {
	cat, err := e.State().Catalog()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	cat.Range(func(s *types.ElementState) bool {
		if len(s.AuxData) > 0 {
			out[s.ElementID] = s.AuxData
		}
		return true
	})
	return out, nil
}

// SaveLabels uploads the true label map when there are unsaved edits. It
// reports whether an upload happened. A failed upload leaves the state dirty.
func (e *Engine) SaveLabels(ctx context.Context) (bool, error) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	st := e.State()
	if !st.Dirty() {
		return false, nil
	}
	snapshot, err := st.Catalog()
	if err != nil {
		return false, err
	}
	labels, err := e.selectors.TrueLabelMap(st)
	if err != nil {
		return false, err
	}
	if err := e.labels.SetUserLabels(ctx, labels); err != nil {
		log.Printf("labeling: saving %d labels failed: %v", len(labels), err)
		return false, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if _, err := e.store.Dispatch(ctx, workflow.LabelsSaved{Snapshot: snapshot}); err != nil {
		return false, err
	}
	log.Printf("labeling: saved %d labels", len(labels))
	return true, nil
}
