// Package walk drives pre-order/post-order traversal of lifted trees.
//
// The walker is shared by every pass over a tree (numbering, string table
// collection, diagnostics and compression); only the Visitor changes.
package walk

import (
	"fmt"

	"github.com/agentic-research/treepress/internal/ast"
)

// Event identifies why the visitor is being called.
type Event int

const (
	Begin Event = iota
	End
	// EmptyArray is reported for a zero-length child sequence met during
	// default descent. The node argument is nil.
	EmptyArray
)

func (e Event) String() string {
	switch e {
	case Begin:
		return "begin"
	case End:
		return "end"
	case EmptyArray:
		return "empty_array"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Attrs describes one visit. Parent is borrowed for the duration of the
// call and must not be retained.
type Attrs struct {
	Parent   *ast.Node
	Name     string
	DispName string
	Depth    int
	Number   int
}

// Step is one explicit child to descend into. Steps with a nil Node are
// skipped.
type Step struct {
	Name string
	Node *ast.Node
}

type op int

const (
	opDescend op = iota
	opVisit
	opAbort
)

// Directive is the visitor's answer to a Begin event.
type Directive struct {
	op    op
	steps []Step
}

// Descend visits every child of the node in slot order.
func Descend() Directive { return Directive{op: opDescend} }

// Visit descends only into the given steps, in order.
func Visit(steps []Step) Directive { return Directive{op: opVisit, steps: steps} }

// Skip visits no children; the End event still fires.
func Skip() Directive { return Directive{op: opVisit} }

// Abort stops the traversal. Walk returns nil.
func Abort() Directive { return Directive{op: opAbort} }

// Visitor is called for every event. The Directive is only consulted for
// Begin, except that Abort stops the walk from any event. A non-nil error
// stops the walk and is returned by Walk.
type Visitor func(ev Event, n *ast.Node, a Attrs) (Directive, error)

type step struct {
	name  string
	node  *ast.Node
	empty bool
}

type walker struct {
	visit   Visitor
	number  int
	stopped bool
}

// Walk traverses root with v.
func Walk(root *ast.Node, v Visitor) error {
	if root == nil || root.Type == "" {
		return fmt.Errorf("%w: root has no type tag", ast.ErrMalformed)
	}
	w := &walker{visit: v}
	return w.walk(root, Attrs{Name: "<root>", DispName: "<root>"})
}

func (w *walker) walk(n *ast.Node, a Attrs) error {
	d, err := w.visit(Begin, n, a)
	if err != nil || w.abort(d) {
		return err
	}

	var steps []step
	if d.op == opDescend {
		if steps, err = slotSteps(n); err != nil {
			return err
		}
	} else {
		for _, s := range d.steps {
			if s.Node != nil {
				steps = append(steps, step{name: s.Name, node: s.Node})
			}
		}
	}

	for _, s := range steps {
		ca := Attrs{
			Parent:   n,
			Name:     s.name,
			DispName: s.name,
			Depth:    a.Depth + 1,
		}
		if s.empty {
			d, err := w.visit(EmptyArray, nil, ca)
			if err != nil || w.abort(d) {
				return err
			}
			continue
		}
		if s.node.Type == "" {
			return fmt.Errorf("%w: child %s of %s has no type tag", ast.ErrMalformed, s.name, n.Type)
		}
		w.number++
		ca.Number = w.number
		if err := w.walk(s.node, ca); err != nil || w.stopped {
			return err
		}
	}

	d, err = w.visit(End, n, a)
	if err != nil {
		return err
	}
	w.abort(d)
	return nil
}

func (w *walker) abort(d Directive) bool {
	if d.op == opAbort {
		w.stopped = true
	}
	return w.stopped
}

// slotSteps flattens every slot of n in order. Null single slots are
// dropped; empty sequences become EmptyArray events at their position.
func slotSteps(n *ast.Node) ([]step, error) {
	var steps []step
	for _, s := range n.Slots {
		if !s.Seq {
			if s.Node != nil {
				steps = append(steps, step{name: s.Name, node: s.Node})
			}
			continue
		}
		if len(s.Nodes) == 0 {
			steps = append(steps, step{name: s.Name, empty: true})
			continue
		}
		for i, ch := range s.Nodes {
			if ch == nil {
				return nil, fmt.Errorf("%w: %s.%s[%d] is nil", ast.ErrMalformed, n.Type, s.Name, i)
			}
			steps = append(steps, step{name: fmt.Sprintf("%s.%d", s.Name, i), node: ch})
		}
	}
	return steps, nil
}

// Number stamps every node with its depth and pre-order number.
func Number(root *ast.Node) error {
	return Walk(root, func(ev Event, n *ast.Node, a Attrs) (Directive, error) {
		if ev == Begin {
			n.Attrs = ast.Attrs{Depth: a.Depth, Number: a.Number}
		}
		return Descend(), nil
	})
}
