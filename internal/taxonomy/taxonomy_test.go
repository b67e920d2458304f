package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/mllabeler/internal/types"
)

func def(label, parent string) types.LabelDefinition {
	return types.LabelDefinition{Label: label, ParentLabel: parent}
}

func sample(t *testing.T) *Labels {
	t.Helper()
	l, err := Build([]types.LabelDefinition{
		def("other", "other"),
		def("wall", "other"),
		def("door", "other"),
		def("curtainwall", "wall"),
		def("beam", ""),
	})
	require.NoError(t, err)
	return l
}

// rawLabels builds Labels without validation so integrity checks can be hit.
func rawLabels(states ...LabelState) *Labels {
	l := &Labels{states: map[types.Label]*LabelState{}}
	for i := range states {
		s := states[i]
		l.order = append(l.order, s.Label)
		l.states[s.Label] = &s
	}
	return l
}

func TestBuild_ChildrenAndRoots(t *testing.T) {
	l := sample(t)
	assert.Equal(t, 5, l.Len())
	assert.Equal(t, []types.Label{"wall", "door"}, l.Children("other"))
	assert.Equal(t, "", l.Parent("other"), "self parent is a root")
	assert.Equal(t, "wall", l.Parent("curtainwall"))

	c, ok := l.Color("beam")
	require.True(t, ok)
	assert.Equal(t, types.White, c)
}

func TestBuild_UnknownParentIsRoot(t *testing.T) {
	l, err := Build([]types.LabelDefinition{def("a", "missing")})
	require.NoError(t, err)
	assert.Equal(t, "", l.Parent("a"))
}

func TestBuild_RejectsCycle(t *testing.T) {
	_, err := Build([]types.LabelDefinition{def("a", "b"), def("b", "a")})
	assert.ErrorIs(t, err, ErrCyclic)
}

func TestBuild_RejectsDuplicate(t *testing.T) {
	_, err := Build([]types.LabelDefinition{def("a", ""), def("a", "")})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestDescendants(t *testing.T) {
	l := sample(t)
	got, err := l.Descendants("other")
	require.NoError(t, err)
	assert.Equal(t, []types.Label{"wall", "curtainwall", "door"}, got)

	got, err = l.Descendants("beam")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatch(t *testing.T) {
	l := sample(t)
	assert.True(t, l.Match("curtainwall", "other"))
	assert.True(t, l.Match("other", "curtainwall"))
	assert.True(t, l.Match("door", "door"))
	assert.False(t, l.Match("door", "wall"))
	assert.False(t, l.Match("beam", "unknown"))
}

func TestWithColor_CopyOnWrite(t *testing.T) {
	l := sample(t)
	red := types.RGB(255, 0, 0)
	next := l.WithColor("wall", red)

	c, _ := next.Color("wall")
	assert.Equal(t, red, c)
	c, _ = l.Color("wall")
	assert.Equal(t, types.White, c, "original unchanged")

	assert.Same(t, l, l.WithColor("nope", red))
}

func TestTree(t *testing.T) {
	l := sample(t).WithExpanded("other", true)
	tree, err := l.Tree()
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "other", tree[0].Name)
	assert.True(t, tree[0].IsExpanded)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, 1, tree[0].Children[0].Level)
	assert.Equal(t, "curtainwall", tree[0].Children[0].Children[0].Name)
	assert.Equal(t, 2, tree[0].Children[0].Children[0].Level)
	assert.Equal(t, "beam", tree[1].Name)
}

func TestTree_CycleIsIntegrityError(t *testing.T) {
	l := rawLabels(
		LabelState{Label: "root", Children: []types.Label{"a"}},
		LabelState{Label: "a", ParentLabel: "root", Children: []types.Label{"b"}},
		LabelState{Label: "b", ParentLabel: "a", Children: []types.Label{"a"}},
	)
	_, err := l.Tree()
	assert.ErrorIs(t, err, ErrCyclic)

	_, err = l.Descendants("root")
	assert.ErrorIs(t, err, ErrCyclic)
}

func TestTree_DetachedLoop(t *testing.T) {
	l := rawLabels(
		LabelState{Label: "a", ParentLabel: "b", Children: []types.Label{"b"}},
		LabelState{Label: "b", ParentLabel: "a", Children: []types.Label{"a"}},
	)
	_, err := l.Tree()
	assert.ErrorIs(t, err, ErrCyclic)
}

func TestBuiltin(t *testing.T) {
	defs, err := Builtin()
	require.NoError(t, err)
	assert.Equal(t, Unlabeled, defs.UnlabeledValue)

	l, err := Build(defs.Definitions)
	require.NoError(t, err)
	assert.True(t, l.Has(Prefix+"beammisclassified"))
	assert.Equal(t, Prefix+"beam", l.Parent(Prefix+"beammisclassified"))
	assert.True(t, l.Match(Prefix+"beam", Prefix+"beammisclassified"))

	c, _ := l.Color(Prefix + "window")
	assert.Equal(t, types.RGBT(0, 0, 128, 128), c)

	_, err = l.Tree()
	require.NoError(t, err)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("bad.cue", []byte(`unlabeled: "u"
labels: [{label: "x", color: "red"}]`))
	assert.Error(t, err)

	_, err = Parse("empty.cue", []byte(`labels: []`))
	assert.Error(t, err)
}
