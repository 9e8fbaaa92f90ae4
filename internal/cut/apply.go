package cut

import (
	"fmt"

	"github.com/agentic-research/treepress/internal/ast"
)

// Site locates the node at one pre-order position of a shape. Parent is
// nil for the root; Elem is -1 for single slots.
type Site struct {
	Node   *ast.Node
	Parent *ast.Node
	Slot   int
	Elem   int
	Depth  int
}

// Sites indexes root in pre-order. The returned slice is a snapshot: it
// stays valid while cuts are applied because cut sets never nest.
func Sites(root *ast.Node) []Site {
	var out []Site
	var visit func(n, parent *ast.Node, slot, elem, depth int)
	visit = func(n, parent *ast.Node, slot, elem, depth int) {
		out = append(out, Site{Node: n, Parent: parent, Slot: slot, Elem: elem, Depth: depth})
		for i, s := range n.Slots {
			if s.Seq {
				for j, ch := range s.Nodes {
					visit(ch, n, i, j, depth+1)
				}
			} else if s.Node != nil {
				visit(s.Node, n, i, -1, depth+1)
			}
		}
	}
	visit(root, nil, -1, -1, 0)
	return out
}

// Lookup returns the site at pos.
func Lookup(sites []Site, pos int) (Site, error) {
	if pos < 0 || pos >= len(sites) {
		return Site{}, fmt.Errorf("%w: position %d outside shape of %d nodes", ErrBadCut, pos, len(sites))
	}
	return sites[pos], nil
}

// Replace puts n where site currently sits. Replacing the root is the
// caller's job; Replace reports false in that case, and when the parent's
// slots no longer have the site's shape.
func (s Site) Replace(n *ast.Node) bool {
	if s.Parent == nil || s.Slot < 0 || s.Slot >= len(s.Parent.Slots) {
		return false
	}
	slot := &s.Parent.Slots[s.Slot]
	if slot.Seq != (s.Elem >= 0) {
		return false
	}
	if s.Elem >= 0 {
		if s.Elem >= len(slot.Nodes) {
			return false
		}
		slot.Nodes[s.Elem] = n
	} else {
		slot.Node = n
	}
	return true
}

// ApplyFields overrides field values of n. Every name must already exist.
func ApplyFields(n *ast.Node, values []ast.Field) error {
	for _, f := range values {
		if !n.SetField(f.Name, f.Value) {
			return fmt.Errorf("%w: %s has no field %q", ErrBadCut, n.Type, f.Name)
		}
	}
	return nil
}

// SlotAt returns slot i of n, checking bounds and kind.
func SlotAt(n *ast.Node, i int, seq bool) (*ast.Slot, error) {
	if i < 0 || i >= len(n.Slots) {
		return nil, fmt.Errorf("%w: %s has no slot %d", ErrBadCut, n.Type, i)
	}
	s := &n.Slots[i]
	if s.Seq != seq {
		return nil, fmt.Errorf("%w: slot %s of %s has the wrong kind", ErrBadCut, s.Name, n.Type)
	}
	return s, nil
}
