package depthcache

import (
	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/cut"
)

// RefKind says what a Match points at.
type RefKind int

const (
	SubtreeRef RefKind = iota
	TemplateRef
)

func (k RefKind) String() string {
	if k == TemplateRef {
		return "TEMPLATE_REF"
	}
	return "SUBTREE_REF"
}

// Match is the outcome of a successful Search.
//
// For a subtree match Cuts holds every cut and Derived is set when the
// cuts are all field overrides. For a template match HoleMaps holds one
// *cut.Fields per template hole, in hole order, and Cuts holds the
// remaining (explicit) field cuts.
type Match struct {
	Kind       RefKind
	DepthDelta int
	RevIndex   int
	Tree       *ast.Node
	Template   *Template
	Benefit    int
	Cuts       []cut.Cut
	HoleMaps   []*cut.Fields
	Derived    *Template
	StepCount  int
	CutCount   int
}

// Search scans depths depth-DepthWindow .. depth+DepthWindow for the
// entry with the highest benefit. Ties prefer subtrees over templates,
// then smaller |depth delta| (positive first), then more recent entries.
// It reports false when no candidate has a positive benefit.
func (c *Cache) Search(m *cut.Model, depth int, n *ast.Node) (Match, bool) {
	var (
		best  Match
		found bool
	)
	consider := func(cand Match) {
		if cand.Benefit <= 0 {
			return
		}
		if !found || better(cand, best) {
			best, found = cand, true
		}
	}

	for _, dd := range deltas(c.cfg.DepthWindow) {
		l := c.peek(depth - dd)
		if l == nil {
			continue
		}
		for rev := 0; rev < l.trees.len(); rev++ {
			e, _ := l.trees.at(rev)
			if e.value.Type != n.Type {
				continue
			}
			if cand, ok := subtreeCandidate(m, n, e.value, dd, rev); ok {
				consider(cand)
			}
		}
		for rev := 0; rev < l.templates.len(); rev++ {
			e, _ := l.templates.at(rev)
			if e.value.Shape.Type != n.Type {
				continue
			}
			if cand, ok := templateCandidate(m, n, e.value, dd, rev); ok {
				consider(cand)
			}
		}
	}
	return best, found
}

// deltas lists depth deltas nearest first: 0, 1, -1, 2, -2, ...
func deltas(window int) []int {
	out := []int{0}
	for d := 1; d <= window; d++ {
		out = append(out, d, -d)
	}
	return out
}

func better(a, b Match) bool {
	if a.Benefit != b.Benefit {
		return a.Benefit > b.Benefit
	}
	if a.Kind != b.Kind {
		return a.Kind == SubtreeRef
	}
	if abs(a.DepthDelta) != abs(b.DepthDelta) {
		return abs(a.DepthDelta) < abs(b.DepthDelta)
	}
	if a.DepthDelta != b.DepthDelta {
		return a.DepthDelta > b.DepthDelta
	}
	return a.RevIndex < b.RevIndex
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func subtreeCandidate(m *cut.Model, n, tree *ast.Node, dd, rev int) (Match, bool) {
	cuts, cost := m.Diff(tree, n)
	if len(cuts) == 1 && cuts[0].Pos() == 0 {
		if _, ok := cuts[0].(*cut.Top); ok {
			return Match{}, false
		}
	}
	mt := Match{
		Kind:       SubtreeRef,
		DepthDelta: dd,
		RevIndex:   rev,
		Tree:       tree,
		Benefit:    m.Inline(n) - m.Ref(dd, rev, len(cuts)) - cost,
		Cuts:       cuts,
		StepCount:  m.Size(tree),
		CutCount:   len(cuts),
	}
	if cut.OnlyFields(cuts) {
		mt.Derived = NewTemplate(tree, cuts)
	}
	return mt, true
}

// templateCandidate accepts only pure field differences: a template stands
// for the whole shape with open leaf values.
func templateCandidate(m *cut.Model, n *ast.Node, t *Template, dd, rev int) (Match, bool) {
	cuts, _ := m.Diff(t.Shape, n)
	if len(cuts) > 0 && !cut.OnlyFields(cuts) {
		return Match{}, false
	}

	holeIdx := make(map[int]int, len(t.Holes))
	holes := make([]*cut.Fields, len(t.Holes))
	for i, h := range t.Holes {
		holeIdx[h] = i
		holes[i] = &cut.Fields{Position: h, Why: "template hole"}
	}
	var explicit []cut.Cut
	for _, c := range cuts {
		if i, ok := holeIdx[c.Pos()]; ok {
			f := c.(*cut.Fields)
			holes[i] = &cut.Fields{Position: f.Position, Why: "template hole", Values: f.Values, Query: f.Query}
			continue
		}
		explicit = append(explicit, c)
	}

	cost := 0
	for _, h := range holes {
		cost += m.FieldMap(h.Values)
	}
	for _, c := range explicit {
		cost += m.Cost(c)
	}
	return Match{
		Kind:       TemplateRef,
		DepthDelta: dd,
		RevIndex:   rev,
		Template:   t,
		Benefit:    m.Inline(n) - m.Ref(dd, rev, len(explicit)) - cost,
		Cuts:       explicit,
		HoleMaps:   holes,
		StepCount:  t.StepCount,
		CutCount:   t.CutCount,
	}, true
}
