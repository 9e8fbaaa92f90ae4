package depthcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/cut"
	"github.com/agentic-research/treepress/internal/strtab"
)

func ident(name string) *ast.Node {
	return ast.New("Identifier").WithField("name", ast.StringValue(name))
}

func call(callee string, args ...string) *ast.Node {
	nodes := make([]*ast.Node, len(args))
	for i, a := range args {
		nodes[i] = ident(a)
	}
	return ast.New("Call").WithChild("callee", ident(callee)).WithSeq("args", nodes...)
}

func model(t *testing.T, trees ...*ast.Node) *cut.Model {
	t.Helper()
	tab, err := strtab.Collect(ast.New("Root").WithSeq("items", trees...))
	require.NoError(t, err)
	return cut.NewModel(tab)
}

func TestRingEviction(t *testing.T) {
	r := newRing[string](2)
	r.push("a")
	r.push("b")
	r.push("c")
	require.Equal(t, 2, r.len())

	e, ok := r.at(0)
	require.True(t, ok)
	assert.Equal(t, "c", e.value)
	e, ok = r.at(1)
	require.True(t, ok)
	assert.Equal(t, "b", e.value)
	_, ok = r.at(2)
	assert.False(t, ok)

	zero := newRing[string](0)
	zero.push("a")
	assert.Equal(t, 0, zero.len())
}

func TestDeltaOrder(t *testing.T) {
	assert.Equal(t, []int{0}, deltas(0))
	assert.Equal(t, []int{0, 1, -1, 2, -2}, deltas(2))
}

func TestLookupAndUses(t *testing.T) {
	c := New(DefaultConfig())
	x := ident("x")
	c.PushTree(3, x)

	got, err := c.Subtree(3, 0)
	require.NoError(t, err)
	assert.Same(t, x, got)

	_, err = c.Subtree(3, 1)
	assert.ErrorIs(t, err, ErrNoEntry)
	_, err = c.Subtree(9, 0)
	assert.ErrorIs(t, err, ErrNoEntry)
	_, err = c.Template(3, 0)
	assert.ErrorIs(t, err, ErrNoEntry)

	c.UseSubtreeEntry(3, 0)
	c.UseSubtreeEntry(3, 0)
	assert.Equal(t, 2, c.SubtreeUses(3, 0))
	assert.Zero(t, c.SubtreeUses(3, 1))

	trees, templates := c.Len(3)
	assert.Equal(t, 1, trees)
	assert.Zero(t, templates)
}

func TestSearchVerbatim(t *testing.T) {
	m := model(t, ident("x"))
	c := New(DefaultConfig())
	c.PushTree(1, ident("x"))

	mt, ok := c.Search(m, 1, ident("x"))
	require.True(t, ok)
	assert.Equal(t, SubtreeRef, mt.Kind)
	assert.Equal(t, 0, mt.DepthDelta)
	assert.Equal(t, 0, mt.RevIndex)
	assert.Empty(t, mt.Cuts)
	assert.Nil(t, mt.Derived)
	assert.Equal(t, m.Inline(ident("x"))-m.Ref(0, 0, 0), mt.Benefit)
}

func TestSearchRejectsUnprofitable(t *testing.T) {
	m := model(t, ident("x"), ident("y"))
	c := New(DefaultConfig())
	c.PushTree(1, ident("x"))

	// a fields cut on a one-field leaf costs more than the leaf itself
	_, ok := c.Search(m, 1, ident("y"))
	assert.False(t, ok)

	// unrelated types are a miss, not a top cut at the root
	_, ok = c.Search(m, 1, ast.New("Literal"))
	assert.False(t, ok)
}

func TestSearchPrefersRecent(t *testing.T) {
	m := model(t, ident("x"))
	c := New(DefaultConfig())
	c.PushTree(1, ident("x"))
	c.PushTree(1, ident("x"))

	mt, ok := c.Search(m, 1, ident("x"))
	require.True(t, ok)
	assert.Equal(t, 0, mt.RevIndex)
}

func TestSearchPrefersPositiveDelta(t *testing.T) {
	m := model(t, ident("x"))
	c := New(DefaultConfig())
	c.PushTree(2, ident("x"))
	c.PushTree(0, ident("x"))

	mt, ok := c.Search(m, 1, ident("x"))
	require.True(t, ok)
	assert.Equal(t, 1, mt.DepthDelta, "the shallower entry sits at depth - 1")
}

func TestSearchPrefersHigherBenefit(t *testing.T) {
	m := model(t, call("f", "a", "b"), call("f", "a", "c"))
	c := New(DefaultConfig())
	c.PushTree(1, call("f", "a", "b"))
	c.PushTree(1, call("f", "a", "c"))

	// the older entry is an exact match and beats the recent one that
	// needs a fields cut
	mt, ok := c.Search(m, 1, call("f", "a", "b"))
	require.True(t, ok)
	assert.Equal(t, 1, mt.RevIndex)
	assert.Empty(t, mt.Cuts)
}

func TestSearchWindow(t *testing.T) {
	m := model(t, ident("x"))
	c := New(Config{SubtreeCapacity: 4, TemplateCapacity: 4, DepthWindow: 1})
	c.PushTree(3, ident("x"))

	_, ok := c.Search(m, 1, ident("x"))
	assert.False(t, ok)
	mt, ok := c.Search(m, 2, ident("x"))
	require.True(t, ok)
	assert.Equal(t, -1, mt.DepthDelta)
}

func TestSearchDerivesTemplate(t *testing.T) {
	a, b := call("f", "a", "b"), call("f", "a", "c")
	m := model(t, a, b)
	c := New(DefaultConfig())
	c.PushTree(1, a)

	mt, ok := c.Search(m, 1, b)
	require.True(t, ok)
	assert.Equal(t, SubtreeRef, mt.Kind)
	require.Len(t, mt.Cuts, 1)
	require.NotNil(t, mt.Derived)
	assert.Same(t, a, mt.Derived.Shape)
	assert.Equal(t, []int{3}, mt.Derived.Holes)
	assert.Equal(t, 4, mt.Derived.StepCount)
	assert.Equal(t, 1, mt.Derived.CutCount)

	cost := 0
	for _, ct := range mt.Cuts {
		cost += m.Cost(ct)
	}
	assert.Equal(t, m.Inline(b)-m.Ref(0, 0, 1)-cost, mt.Benefit)
}

func TestSearchUsesTemplate(t *testing.T) {
	a, b, d := call("f", "a", "b"), call("f", "a", "c"), call("f", "a", "d")
	m := model(t, a, b, d)
	c := New(DefaultConfig())
	c.PushTree(1, b)
	c.PushTemplate(1, &Template{Shape: a, Holes: []int{3}, StepCount: 4, CutCount: 1})

	mt, ok := c.Search(m, 1, d)
	require.True(t, ok)
	assert.Equal(t, TemplateRef, mt.Kind)
	assert.Empty(t, mt.Cuts)
	require.Len(t, mt.HoleMaps, 1)
	assert.Equal(t, []ast.Field{{Name: "name", Value: ast.StringValue("d")}}, mt.HoleMaps[0].Values)
	assert.Equal(t, m.Inline(d)-m.Ref(0, 0, 0)-m.FieldMap(mt.HoleMaps[0].Values), mt.Benefit)
}

func TestTemplateRejectsStructuralChange(t *testing.T) {
	a := call("f", "a", "b")
	m := model(t, a, call("f", "a"))
	c := New(Config{SubtreeCapacity: 1, TemplateCapacity: 1})
	c.PushTemplate(1, &Template{Shape: a, Holes: []int{3}, StepCount: 4, CutCount: 1})

	_, ok := c.Search(m, 1, call("f", "a"))
	assert.False(t, ok)
}

func TestBetterTieBreaks(t *testing.T) {
	base := Match{Kind: SubtreeRef, Benefit: 5, DepthDelta: 1, RevIndex: 2}

	higher := base
	higher.Benefit = 6
	higher.Kind = TemplateRef
	assert.True(t, better(higher, base))

	tmpl := base
	tmpl.Kind = TemplateRef
	assert.True(t, better(base, tmpl))

	nearer := base
	nearer.DepthDelta = 0
	nearer.RevIndex = 9
	assert.True(t, better(nearer, base))

	neg := base
	neg.DepthDelta = -1
	neg.RevIndex = 0
	assert.True(t, better(base, neg))

	recent := base
	recent.RevIndex = 1
	assert.True(t, better(recent, base))
	assert.False(t, better(base, base))
}
