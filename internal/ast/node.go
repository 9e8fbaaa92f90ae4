// Package ast defines the lifted syntax tree consumed by the compressor.
//
// Node types and field values are opaque: the codec only relies on the
// deterministic order of fields and child slots.
package ast

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed reports a tree that violates the node model: a node without
// a type tag, or a nil entry inside a child sequence.
var ErrMalformed = errors.New("ast: malformed tree")

// Field is a named leaf value.
type Field struct {
	Name  string
	Value Value
}

// Slot is a named child position. A single slot holds Node, which may be
// nil; a sequence slot holds Nodes, none of which may be nil.
type Slot struct {
	Name  string
	Seq   bool
	Node  *Node
	Nodes []*Node
}

// Attrs is the traversal annotation written by walk.Number.
type Attrs struct {
	Depth  int
	Number int
}

// Node is the universal tree primitive.
type Node struct {
	Type   string
	Fields []Field
	Slots  []Slot
	Attrs  Attrs
}

// New returns a node of the given type with no fields or children.
func New(typ string) *Node {
	return &Node{Type: typ}
}

// WithField appends a field and returns n for chaining.
func (n *Node) WithField(name string, v Value) *Node {
	n.Fields = append(n.Fields, Field{Name: name, Value: v})
	return n
}

// WithChild appends a single child slot; child may be nil.
func (n *Node) WithChild(name string, child *Node) *Node {
	n.Slots = append(n.Slots, Slot{Name: name, Node: child})
	return n
}

// WithSeq appends a sequence slot.
func (n *Node) WithSeq(name string, children ...*Node) *Node {
	if children == nil {
		children = []*Node{}
	}
	n.Slots = append(n.Slots, Slot{Name: name, Seq: true, Nodes: children})
	return n
}

// Field looks up a field value by name.
func (n *Node) Field(name string) (Value, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// SetField overwrites an existing field. It reports false when the node
// has no field with that name.
func (n *Node) SetField(name string, v Value) bool {
	for i := range n.Fields {
		if n.Fields[i].Name == name {
			n.Fields[i].Value = v
			return true
		}
	}
	return false
}

func (n *Node) NumFields() int { return len(n.Fields) }

// NumChildren counts non-nil child nodes across all slots.
func (n *Node) NumChildren() int {
	c := 0
	for _, s := range n.Slots {
		if s.Seq {
			c += len(s.Nodes)
		} else if s.Node != nil {
			c++
		}
	}
	return c
}

// ForEachChild calls fn for every non-nil child in slot order. Sequence
// entries are reported as "name.index".
func (n *Node) ForEachChild(fn func(name string, child *Node)) {
	for _, s := range n.Slots {
		if s.Seq {
			for i, ch := range s.Nodes {
				fn(fmt.Sprintf("%s.%d", s.Name, i), ch)
			}
		} else if s.Node != nil {
			fn(s.Name, s.Node)
		}
	}
}

// Size is the number of nodes in the subtree rooted at n.
func (n *Node) Size() int {
	if n == nil {
		return 0
	}
	size := 1
	n.ForEachChild(func(_ string, ch *Node) { size += ch.Size() })
	return size
}

// Clone deep-copies the subtree. Attrs are reset.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Type: n.Type}
	if n.Fields != nil {
		c.Fields = make([]Field, len(n.Fields))
		copy(c.Fields, n.Fields)
	}
	if n.Slots != nil {
		c.Slots = make([]Slot, len(n.Slots))
		for i, s := range n.Slots {
			cs := Slot{Name: s.Name, Seq: s.Seq}
			if s.Seq {
				cs.Nodes = make([]*Node, len(s.Nodes))
				for j, ch := range s.Nodes {
					cs.Nodes[j] = ch.Clone()
				}
			} else {
				cs.Node = s.Node.Clone()
			}
			c.Slots[i] = cs
		}
	}
	return c
}

// SameFieldNames reports whether a and b carry the same field names in
// the same order.
func SameFieldNames(a, b *Node) bool {
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i].Name != b.Fields[i].Name {
			return false
		}
	}
	return true
}

// SameSlotNames reports whether a and b declare the same slots (name and
// single/sequence kind) in the same order. Null-ness and sequence lengths
// may still differ.
func SameSlotNames(a, b *Node) bool {
	if len(a.Slots) != len(b.Slots) {
		return false
	}
	for i := range a.Slots {
		if a.Slots[i].Name != b.Slots[i].Name || a.Slots[i].Seq != b.Slots[i].Seq {
			return false
		}
	}
	return true
}

// Equal reports structural equality: type tags, field values, slot layout
// and children. Attrs are ignored.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type || !SameFieldNames(a, b) || !SameSlotNames(a, b) {
		return false
	}
	for i := range a.Fields {
		if !a.Fields[i].Value.Equal(b.Fields[i].Value) {
			return false
		}
	}
	for i := range a.Slots {
		sa, sb := a.Slots[i], b.Slots[i]
		if sa.Seq {
			if len(sa.Nodes) != len(sb.Nodes) {
				return false
			}
			for j := range sa.Nodes {
				if !Equal(sa.Nodes[j], sb.Nodes[j]) {
					return false
				}
			}
		} else if !Equal(sa.Node, sb.Node) {
			return false
		}
	}
	return true
}

// Validate checks the node model invariants over the whole subtree.
func Validate(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil root", ErrMalformed)
	}
	if n.Type == "" {
		return fmt.Errorf("%w: node without type tag", ErrMalformed)
	}
	for i := range n.Fields {
		for j := 0; j < i; j++ {
			if n.Fields[i].Name == n.Fields[j].Name {
				return fmt.Errorf("%w: %s has field %q twice", ErrMalformed, n.Type, n.Fields[i].Name)
			}
		}
	}
	for _, s := range n.Slots {
		if s.Seq {
			for i, ch := range s.Nodes {
				if ch == nil {
					return fmt.Errorf("%w: %s.%s[%d] is nil", ErrMalformed, n.Type, s.Name, i)
				}
				if err := Validate(ch); err != nil {
					return err
				}
			}
		} else if s.Node != nil {
			if err := Validate(s.Node); err != nil {
				return err
			}
		}
	}
	return nil
}

// Summary is a one-line description: type and field values.
func (n *Node) Summary() string {
	var b strings.Builder
	b.WriteString(n.Type)
	if len(n.Fields) > 0 {
		b.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(f.Name)
			b.WriteByte('=')
			b.WriteString(f.Value.String())
		}
		b.WriteByte('}')
	}
	return b.String()
}

// String renders the subtree as an s-expression.
func (n *Node) String() string {
	var b strings.Builder
	n.writeTo(&b)
	return b.String()
}

func (n *Node) writeTo(b *strings.Builder) {
	if n == nil {
		b.WriteString("nil")
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Summary())
	for _, s := range n.Slots {
		b.WriteByte(' ')
		b.WriteString(s.Name)
		b.WriteByte(':')
		if s.Seq {
			b.WriteByte('[')
			for i, ch := range s.Nodes {
				if i > 0 {
					b.WriteByte(' ')
				}
				ch.writeTo(b)
			}
			b.WriteByte(']')
		} else {
			s.Node.writeTo(b)
		}
	}
	b.WriteByte(')')
}
