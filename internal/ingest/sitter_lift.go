package ingest

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/treepress/internal/ast"
)

// Field and slot names the sitter lifter invents.
const (
	TextField     = "text"
	ChildrenSlot  = "children"
	sitterMissing = "missing"
)

// LiftSitter converts a tree-sitter tree into the node model.
//
// Only named nodes become ast nodes. Children bound to a grammar field go
// into a slot of that name (a sequence when the field repeats); other named
// children go into the "children" sequence. Anonymous tokens bound to a
// field (operators, keywords) become fields holding the token text. A
// named node without named children keeps its source text in "text".
func LiftSitter(root *sitter.Node, src []byte) (*ast.Node, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil tree-sitter root", ast.ErrMalformed)
	}
	return liftSitter(root, src), nil
}

func liftSitter(n *sitter.Node, src []byte) *ast.Node {
	out := ast.New(n.Type())

	var (
		order   []string
		grouped = make(map[string][]*ast.Node)
		rest    []*ast.Node
	)
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		fieldName := n.FieldNameForChild(i)
		if !child.IsNamed() {
			if fieldName != "" {
				if _, ok := out.Field(fieldName); !ok {
					out.WithField(fieldName, ast.StringValue(child.Type()))
				}
			}
			continue
		}
		lifted := liftSitter(child, src)
		if fieldName == "" {
			rest = append(rest, lifted)
			continue
		}
		if _, ok := grouped[fieldName]; !ok {
			order = append(order, fieldName)
		}
		grouped[fieldName] = append(grouped[fieldName], lifted)
	}

	if _, ok := out.Field(TextField); !ok && n.NamedChildCount() == 0 {
		out.WithField(TextField, ast.StringValue(n.Content(src)))
	}
	if _, ok := out.Field(sitterMissing); !ok && n.IsMissing() {
		out.WithField(sitterMissing, ast.BoolValue(true))
	}
	for _, name := range order {
		if kids := grouped[name]; len(kids) == 1 {
			out.WithChild(name, kids[0])
		} else {
			out.WithSeq(name, kids...)
		}
	}
	if len(rest) > 0 {
		out.WithSeq(ChildrenSlot, rest...)
	}
	return out
}
