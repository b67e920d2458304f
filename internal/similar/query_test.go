package similar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/mllabeler/internal/elements"
	"github.com/matthewbaird/mllabeler/internal/elements/elementstest"
)

func only(op Operator, rules ...RuleType) Config {
	cfg := DefaultConfig()
	cfg.Rule = Rule{Operator: op}
	for _, r := range rules {
		cfg.Rule.ChildRules = append(cfg.Rule.ChildRules, RuleEntry{Wanted: true, Type: r})
	}
	return cfg
}

func search(t *testing.T, store *elements.SQLiteStore, refID string, cfg Config) []string {
	t.Helper()
	ctx := context.Background()
	ref, err := store.Attributes(ctx, refID)
	require.NoError(t, err)
	query, args := BuildQuery(ref, Probe(ref), cfg)
	ids, err := store.Search(ctx, query, args)
	require.NoError(t, err)
	return ids
}

func TestProbe(t *testing.T) {
	store := elementstest.New(t, elementstest.Sample())
	ref, err := store.Attributes(context.Background(), "0x3")
	require.NoError(t, err)

	content := Probe(ref)
	assert.Equal(t, []string{"DOORS", "Door leaves"}, content[SameCategory])
	assert.Equal(t, []string{"0x1"}, content[SameParent])
	assert.Equal(t, []string{"6"}, content[SameGeometrySize])
	assert.Equal(t, []string{"2"}, content[SameBBoxHeight])
	assert.True(t, content.Has(SameGeometry))
	assert.True(t, content.Has(SameCodeValue))
	assert.True(t, content.Has(SameElementAspect))

	wall, err := store.Attributes(context.Background(), "0x1")
	require.NoError(t, err)
	content = Probe(wall)
	assert.False(t, content.Has(SameParent))
	assert.False(t, content.Has(SameCodeValue))
	assert.False(t, content.Has(SameElementAspect))
}

func TestBuildQuery(t *testing.T) {
	store := elementstest.New(t, elementstest.Sample())

	tests := []struct {
		name string
		ref  string
		cfg  Config
		want []string
	}{
		{"defaults", "0x1", DefaultConfig(), []string{"0x1", "0x2"}},
		{"height band", "0x1", only(And, SameBBoxHeight), []string{"0x1", "0x2", "0x4"}},
		{"or", "0x1", only(Or, SameModel, SameUserLabel), []string{"0x1", "0x2", "0x3", "0x4"}},
		{"geometry", "0x1", only(And, SameGeometry, SameGeometrySize), []string{"0x1", "0x2", "0x4"}},
		{"missing reference data is skipped", "0x1", only(And, SameParent), []string{"0x1", "0x2", "0x3", "0x4", "0x5"}},
		{"parent", "0x3", only(And, SameParent), []string{"0x3"}},
		{"code value has no query form", "0x3", only(And, SameCodeValue, SameClass), []string{"0x3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, search(t, store, tt.ref, tt.cfg))
		})
	}
}

func TestBuildQueryMaxDistance(t *testing.T) {
	store := elementstest.New(t, elementstest.Sample())
	cfg := only(And, SameClass)
	cfg.MaxDistEnabled = true
	cfg.MaxDistValue = 1.5
	assert.ElementsMatch(t, []string{"0x1", "0x2"}, search(t, store, "0x1", cfg))

	cfg.MaxDistValue = 0.5
	assert.ElementsMatch(t, []string{"0x1"}, search(t, store, "0x1", cfg))
}

func TestBuildQueryMaxCount(t *testing.T) {
	store := elementstest.New(t, elementstest.Sample())
	cfg := only(And, SameClass)
	cfg.MaxCountEnabled = true
	cfg.MaxCountValue = 2

	ids := search(t, store, "0x1", cfg)
	assert.Len(t, ids, 2)
	assert.Subset(t, []string{"0x1", "0x2", "0x4", "0x5"}, ids)
}
