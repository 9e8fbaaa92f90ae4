package cut

import (
	"github.com/agentic-research/treepress/internal/ast"
)

// Diff returns the cheapest cut set turning shape into n and its cost
// (headers plus payloads). A single *Top at position 0 means the shapes
// are unrelated.
func (m *Model) Diff(shape, n *ast.Node) ([]Cut, int) {
	return m.diffNode(shape, n, 0)
}

func (m *Model) diffNode(s, n *ast.Node, pos int) ([]Cut, int) {
	if s.Type != n.Type || !ast.SameFieldNames(s, n) {
		why := "type differs"
		if s.Type == n.Type {
			why = "field names differ"
		}
		c := &Top{Position: pos, Why: why, Node: n}
		return []Cut{c}, m.Cost(c)
	}

	var (
		cuts []Cut
		cost int
	)
	if vals := changedFields(s, n); len(vals) > 0 {
		c := &Fields{Position: pos, Why: "field values differ", Values: vals, Query: n}
		cuts = append(cuts, c)
		cost += m.Cost(c)
	}

	if !ast.SameSlotNames(s, n) {
		c := &Children{Position: pos, Why: "slot layout differs", Node: n}
		return append(cuts, c), cost + m.Cost(c)
	}

	slotCuts, slotCost := m.diffSlots(s, n, pos)
	if len(slotCuts) > 0 {
		whole := &Children{Position: pos, Why: "cheaper than per-child cuts", Node: n}
		if wc := m.Cost(whole); wc < slotCost {
			slotCuts, slotCost = []Cut{whole}, wc
		}
	}
	return append(cuts, slotCuts...), cost + slotCost
}

// diffSlots compares slot by slot; s and n have the same slot names.
func (m *Model) diffSlots(s, n *ast.Node, pos int) ([]Cut, int) {
	var (
		cuts []Cut
		cost int
	)
	next := pos + 1
	for i := range s.Slots {
		ss, ns := s.Slots[i], n.Slots[i]
		if !ss.Seq {
			switch {
			case ss.Node == nil && ns.Node == nil:
			case ss.Node == nil || ns.Node == nil:
				c := &Child{Position: pos, Slot: i, Why: "null-ness differs", Node: ns.Node}
				cuts = append(cuts, c)
				cost += m.Cost(c)
			default:
				sub, subCost := m.diffNode(ss.Node, ns.Node, next)
				if len(sub) > 0 {
					alt := &Child{Position: pos, Slot: i, Why: "child differs", Node: ns.Node}
					if ac := m.Cost(alt); ac < subCost {
						sub, subCost = []Cut{alt}, ac
					}
				}
				cuts = append(cuts, sub...)
				cost += subCost
			}
			next += m.Size(ss.Node)
			continue
		}

		if len(ss.Nodes) != len(ns.Nodes) {
			c := &ChildArray{Position: pos, Slot: i, Why: "sequence length differs", Nodes: ns.Nodes}
			cuts = append(cuts, c)
			cost += m.Cost(c)
			for _, ch := range ss.Nodes {
				next += m.Size(ch)
			}
			continue
		}
		var (
			elemCuts []Cut
			elemCost int
		)
		for j := range ss.Nodes {
			sub, subCost := m.diffNode(ss.Nodes[j], ns.Nodes[j], next)
			elemCuts = append(elemCuts, sub...)
			elemCost += subCost
			next += m.Size(ss.Nodes[j])
		}
		if len(elemCuts) > 0 {
			alt := &ChildArray{Position: pos, Slot: i, Why: "sequence differs", Nodes: ns.Nodes}
			if ac := m.Cost(alt); ac < elemCost {
				elemCuts, elemCost = []Cut{alt}, ac
			}
		}
		cuts = append(cuts, elemCuts...)
		cost += elemCost
	}
	return cuts, cost
}

// changedFields returns n's fields whose values differ from s. Field names
// must already match.
func changedFields(s, n *ast.Node) []ast.Field {
	var out []ast.Field
	for i := range s.Fields {
		if !s.Fields[i].Value.Equal(n.Fields[i].Value) {
			out = append(out, n.Fields[i])
		}
	}
	return out
}
