package similar

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/mllabeler/internal/elements"
	"github.com/matthewbaird/mllabeler/internal/elements/elementstest"
)

type recordingPublisher struct {
	mu    sync.Mutex
	calls [][]string
}

func (p *recordingPublisher) ReplaceSelection(_ context.Context, ids []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]string(nil), ids...))
	return nil
}

func (p *recordingPublisher) Calls() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// gatedSource holds searches until the gate is closed.
type gatedSource struct {
	*elements.SQLiteStore
	gate chan struct{}
}

func (s gatedSource) Search(ctx context.Context, query string, args []any) ([]string, error) {
	<-s.gate
	return s.SQLiteStore.Search(ctx, query, args)
}

func startService(t *testing.T, src elements.Source) (*Service, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	svc := NewService(src, pub, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		svc.Stop()
		cancel()
	})
	return svc, pub
}

func TestServiceExtend(t *testing.T) {
	ctx := context.Background()
	svc, pub := startService(t, elementstest.New(t, elementstest.Sample()))

	_, err := svc.Extend(ctx)
	assert.ErrorIs(t, err, ErrNoReference)

	require.NoError(t, svc.HandleSelection(ctx, []string{"0x1"}))
	assert.Equal(t, "0x1", svc.State().SingleID)

	token, err := svc.Extend(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	svc.Wait()

	calls := pub.Calls()
	require.Len(t, calls, 1)
	assert.ElementsMatch(t, []string{"0x1", "0x2"}, calls[0])

	st := svc.State()
	assert.False(t, st.Searching)
	require.NotNil(t, st.FoundCount)
	assert.Equal(t, 2, *st.FoundCount)

	st, err = svc.Reset(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.FoundCount)
	assert.Equal(t, []string{"0x1"}, pub.Calls()[1])
}

func TestServiceAuxFilter(t *testing.T) {
	ctx := context.Background()
	svc, pub := startService(t, elementstest.New(t, elementstest.Sample()))
	require.NoError(t, svc.SetAuxData(map[string][]byte{
		"0x1": []byte(`{"k":1}`),
		"0x2": []byte(`{"k":2}`),
	}))

	cfg := DefaultConfig()
	cfg.EnableAuxData = true
	_, err := svc.SetConfig(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, svc.HandleSelection(ctx, []string{"0x1"}))

	_, err = svc.Extend(ctx)
	require.NoError(t, err)
	svc.Wait()
	assert.Equal(t, [][]string{{"0x1"}}, pub.Calls())
}

func TestServiceIgnoresMultiAndUnknownSelections(t *testing.T) {
	ctx := context.Background()
	svc, _ := startService(t, elementstest.New(t, elementstest.Sample()))

	require.NoError(t, svc.HandleSelection(ctx, []string{"0x1", "0x2"}))
	require.NoError(t, svc.HandleSelection(ctx, []string{"0x99"}))
	require.NoError(t, svc.HandleSelection(ctx, nil))
	assert.Nil(t, svc.State().Reference)
}

func TestServiceSetConfigRejectsInvalid(t *testing.T) {
	svc, _ := startService(t, elementstest.New(t, elementstest.Sample()))

	bad := DefaultConfig()
	bad.MaxCountValue = -3
	st, err := svc.SetConfig(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 1000, st.Config.MaxCountValue)
}

func TestServiceResetSupersedesRunningSearch(t *testing.T) {
	ctx := context.Background()
	src := gatedSource{SQLiteStore: elementstest.New(t, elementstest.Sample()), gate: make(chan struct{})}
	svc, pub := startService(t, src)

	require.NoError(t, svc.HandleSelection(ctx, []string{"0x1"}))
	_, err := svc.Extend(ctx)
	require.NoError(t, err)
	assert.True(t, svc.State().Searching)

	_, err = svc.Reset(ctx)
	require.NoError(t, err)
	close(src.gate)
	svc.Wait()

	assert.Equal(t, [][]string{{"0x1"}}, pub.Calls())
	assert.Nil(t, svc.State().FoundCount)
	assert.False(t, svc.State().Searching)
}

func TestReduceDropsStaleResults(t *testing.T) {
	st := InitialState(DefaultConfig())
	st, err := Reduce(st, SearchStarted{Token: "a"})
	require.NoError(t, err)
	st, err = Reduce(st, SearchStarted{Token: "b"})
	require.NoError(t, err)

	stale, err := Reduce(st, ElementsFound{Token: "a", Count: 9})
	require.NoError(t, err)
	assert.Same(t, st, stale)

	done, err := Reduce(st, ElementsFound{Token: "b", Count: 4})
	require.NoError(t, err)
	assert.False(t, done.Searching)
	assert.Equal(t, 4, *done.FoundCount)
}

func TestReduceConfigIsCopied(t *testing.T) {
	cfg := DefaultConfig()
	st, err := Reduce(InitialState(DefaultConfig()), ConfigChanged{Config: cfg})
	require.NoError(t, err)
	cfg.Rule.ChildRules[0].Wanted = true
	assert.False(t, st.Config.Rule.ChildRules[0].Wanted)
}

func TestServiceDropsResultAfterReferenceChange(t *testing.T) {
	ctx := context.Background()
	src := gatedSource{SQLiteStore: elementstest.New(t, elementstest.Sample()), gate: make(chan struct{})}
	svc, pub := startService(t, src)

	require.NoError(t, svc.HandleSelection(ctx, []string{"0x1"}))
	_, err := svc.Extend(ctx)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.MaxCountEnabled = true
	cfg.MaxCountValue = 1
	_, err = svc.SetConfig(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, svc.HandleSelection(ctx, []string{"0x2"}))

	close(src.gate)
	svc.Wait()

	assert.Empty(t, pub.Calls())
	st := svc.State()
	assert.Equal(t, "0x2", st.SingleID)
	assert.Nil(t, st.FoundCount)
	assert.False(t, st.Searching)
}

func TestServiceDropsResultAfterConfigChange(t *testing.T) {
	ctx := context.Background()
	src := gatedSource{SQLiteStore: elementstest.New(t, elementstest.Sample()), gate: make(chan struct{})}
	svc, pub := startService(t, src)

	require.NoError(t, svc.HandleSelection(ctx, []string{"0x1"}))
	_, err := svc.Extend(ctx)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.MaxCountEnabled = true
	cfg.MaxCountValue = 1
	_, err = svc.SetConfig(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, svc.State().Searching)

	close(src.gate)
	svc.Wait()
	assert.Empty(t, pub.Calls())
	assert.Nil(t, svc.State().FoundCount)

	// A search started under the new configuration publishes normally.
	_, err = svc.Extend(ctx)
	require.NoError(t, err)
	svc.Wait()
	require.Len(t, pub.Calls(), 1)
	assert.Len(t, pub.Calls()[0], 1)
}

func TestReduceReferenceAndConfigInvalidateSearch(t *testing.T) {
	for _, a := range []Action{
		SingleKeyChanged{Attributes: elements.Attributes{ElementID: "0x2"}, Content: ContentMap{}},
		ConfigChanged{Config: DefaultConfig()},
	} {
		st, err := Reduce(InitialState(DefaultConfig()), SearchStarted{Token: "a"})
		require.NoError(t, err)
		st, err = Reduce(st, a)
		require.NoError(t, err)
		assert.False(t, st.Searching, a.ActionType())
		assert.Empty(t, st.Token, a.ActionType())

		after, err := Reduce(st, ElementsFound{Token: "a", Count: 3})
		require.NoError(t, err)
		assert.Same(t, st, after, a.ActionType())
		assert.Empty(t, after.Accepted)
	}
}
