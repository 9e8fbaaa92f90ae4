package cut

import (
	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/strtab"
)

// Model prices records in bytes, exactly as the codec writes them. Inline
// and Size results are memoized per node; nodes must not change once
// priced.
type Model struct {
	table  *strtab.Table
	inline map[*ast.Node]int
	size   map[*ast.Node]int
}

// NewModel prices against a finished string table.
func NewModel(t *strtab.Table) *Model {
	return &Model{
		table:  t,
		inline: make(map[*ast.Node]int),
		size:   make(map[*ast.Node]int),
	}
}

// UvarintLen is the length of x as an unsigned LEB128 varint.
func UvarintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// VarintLen is the length of x as a zigzag varint.
func VarintLen(x int64) int {
	ux := uint64(x) << 1
	if x < 0 {
		ux = ^ux
	}
	return UvarintLen(ux)
}

// NibbleCountLen is the extra length of a count packed into an opcode's
// low nibble: counts of 15 or more spill into a trailing varint.
func NibbleCountLen(n int) int {
	if n < 15 {
		return 0
	}
	return UvarintLen(uint64(n - 15))
}

func (m *Model) valueLen(v ast.Value) int {
	i, err := m.table.Index(v)
	if err != nil {
		return 10
	}
	return UvarintLen(uint64(i))
}

func (m *Model) nameLen(name string) int {
	return m.valueLen(ast.StringValue(name))
}

// Size is the node count of the subtree.
func (m *Model) Size(n *ast.Node) int {
	if n == nil {
		return 0
	}
	if s, ok := m.size[n]; ok {
		return s
	}
	s := 1
	n.ForEachChild(func(_ string, ch *ast.Node) { s += m.Size(ch) })
	m.size[n] = s
	return s
}

// Layout is the cost of a slot descriptor list.
func (m *Model) Layout(n *ast.Node) int {
	c := UvarintLen(uint64(len(n.Slots)))
	for _, s := range n.Slots {
		c += m.nameLen(s.Name) + 1
		if s.Seq {
			c += UvarintLen(uint64(len(s.Nodes)))
		}
	}
	return c
}

// Direct is the cost of a single DIRECT record, children excluded.
func (m *Model) Direct(n *ast.Node) int {
	c := 1 + m.nameLen(n.Type) + UvarintLen(uint64(len(n.Fields)))
	for _, f := range n.Fields {
		c += m.nameLen(f.Name) + m.valueLen(f.Value)
	}
	return c + m.Layout(n)
}

// Inline is the cost of encoding the subtree with DIRECT records only,
// EMPTY_ARRAY records included.
func (m *Model) Inline(n *ast.Node) int {
	if n == nil {
		return 0
	}
	if c, ok := m.inline[n]; ok {
		return c
	}
	c := m.Direct(n)
	for _, s := range n.Slots {
		switch {
		case !s.Seq:
			c += m.Inline(s.Node)
		case len(s.Nodes) == 0:
			c += 1 + m.nameLen(s.Name)
		default:
			for _, ch := range s.Nodes {
				c += m.Inline(ch)
			}
		}
	}
	m.inline[n] = c
	return c
}

// FieldMap is the cost of a FIELD_MAP record.
func (m *Model) FieldMap(values []ast.Field) int {
	c := 1 + NibbleCountLen(len(values))
	for _, f := range values {
		c += m.nameLen(f.Name) + m.valueLen(f.Value)
	}
	return c
}

// Ref is the cost of a SUBTREE_REF or TEMPLATE_REF header carrying
// ncuts explicit cuts.
func (m *Model) Ref(depthDelta, revIndex, ncuts int) int {
	return 1 + NibbleCountLen(ncuts) + VarintLen(int64(depthDelta)) + UvarintLen(uint64(revIndex))
}

// Header is the cost of a cut's kind, position and slot.
func (m *Model) Header(c Cut) int {
	h := 1 + UvarintLen(uint64(c.Pos()))
	switch c := c.(type) {
	case *Child:
		h += UvarintLen(uint64(c.Slot))
	case *ChildArray:
		h += UvarintLen(uint64(c.Slot))
	}
	return h
}

// Payload is the cost of a cut's inline payload plus the inline cost of
// every node it hands back to the walker.
func (m *Model) Payload(c Cut) int {
	switch c := c.(type) {
	case *Top:
		return m.Inline(c.Node)
	case *Fields:
		return m.FieldMap(c.Values)
	case *Children:
		p := m.Layout(c.Node)
		c.Node.ForEachChild(func(_ string, ch *ast.Node) { p += m.Inline(ch) })
		return p
	case *Child:
		return 1 + m.Inline(c.Node)
	case *ChildArray:
		p := UvarintLen(uint64(len(c.Nodes)))
		for _, ch := range c.Nodes {
			p += m.Inline(ch)
		}
		return p
	}
	return 0
}

// Cost is Header + Payload.
func (m *Model) Cost(c Cut) int {
	return m.Header(c) + m.Payload(c)
}
