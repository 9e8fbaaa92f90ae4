// Package cut computes and describes substitutions ("cuts") that turn a
// previously emitted shape into the node being encoded.
//
// Positions are pre-order indices into the shape, root = 0. A cut set
// produced by Diff never nests: no position lies inside a region replaced
// by an earlier cut, and cuts are ordered by position.
package cut

import (
	"errors"
	"fmt"

	"github.com/agentic-research/treepress/internal/ast"
)

var (
	// ErrUnknownCut is an invariant violation: a Cut implementation the
	// codec does not know how to handle.
	ErrUnknownCut = errors.New("cut: unknown cut kind")

	// ErrBadCut reports a cut that does not fit the shape it is applied to.
	ErrBadCut = errors.New("cut: cut does not fit shape")
)

// Kind is the wire tag of a cut.
type Kind uint8

const (
	KindTop Kind = iota
	KindFields
	KindChildren
	KindChild
	KindChildArray
)

func (k Kind) String() string {
	switch k {
	case KindTop:
		return "top"
	case KindFields:
		return "fields"
	case KindChildren:
		return "children"
	case KindChild:
		return "child"
	case KindChildArray:
		return "child_array"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Cut is one of *Top, *Fields, *Children, *Child or *ChildArray.
type Cut interface {
	Kind() Kind
	Pos() int
	Reason() string
	isCut()
}

// Top replaces the whole node at Position.
type Top struct {
	Position int
	Why      string
	Node     *ast.Node
}

// Fields overrides leaf values of the node at Position. Query is the node
// being encoded at that position.
type Fields struct {
	Position int
	Why      string
	Values   []ast.Field
	Query    *ast.Node
}

// Children keeps the type and fields at Position and replaces its whole
// slot list with the slots of Node.
type Children struct {
	Position int
	Why      string
	Node     *ast.Node
}

// Child replaces single slot Slot of the node at Position. Node may be nil.
type Child struct {
	Position int
	Slot     int
	Why      string
	Node     *ast.Node
}

// ChildArray replaces sequence slot Slot of the node at Position.
type ChildArray struct {
	Position int
	Slot     int
	Why      string
	Nodes    []*ast.Node
}

func (c *Top) Kind() Kind        { return KindTop }
func (c *Fields) Kind() Kind     { return KindFields }
func (c *Children) Kind() Kind   { return KindChildren }
func (c *Child) Kind() Kind      { return KindChild }
func (c *ChildArray) Kind() Kind { return KindChildArray }

func (c *Top) Pos() int        { return c.Position }
func (c *Fields) Pos() int     { return c.Position }
func (c *Children) Pos() int   { return c.Position }
func (c *Child) Pos() int      { return c.Position }
func (c *ChildArray) Pos() int { return c.Position }

func (c *Top) Reason() string        { return c.Why }
func (c *Fields) Reason() string     { return c.Why }
func (c *Children) Reason() string   { return c.Why }
func (c *Child) Reason() string      { return c.Why }
func (c *ChildArray) Reason() string { return c.Why }

func (*Top) isCut()        {}
func (*Fields) isCut()     {}
func (*Children) isCut()   {}
func (*Child) isCut()      {}
func (*ChildArray) isCut() {}

// OnlyFields reports whether every cut is a *Fields cut. An empty set
// counts as false.
func OnlyFields(cuts []Cut) bool {
	if len(cuts) == 0 {
		return false
	}
	for _, c := range cuts {
		if _, ok := c.(*Fields); !ok {
			return false
		}
	}
	return true
}

// Positions lists the position of each cut, in order.
func Positions(cuts []Cut) []int {
	out := make([]int, len(cuts))
	for i, c := range cuts {
		out[i] = c.Pos()
	}
	return out
}
