package ingest

import (
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/treepress/internal/ast"
)

// ToJSON renders a tree as indented JSON: each node becomes an object with
// its type under "type", its fields as keys, and its slots as nested
// objects, arrays or null.
func ToJSON(n *ast.Node) string {
	return oj.JSON(toData(n), &oj.Options{Indent: 2, Sort: true})
}

func toData(n *ast.Node) any {
	if n == nil {
		return nil
	}
	m := make(map[string]any, 1+len(n.Fields)+len(n.Slots))
	m["type"] = n.Type
	for _, f := range n.Fields {
		m[f.Name] = valueData(f.Value)
	}
	for _, s := range n.Slots {
		if !s.Seq {
			m[s.Name] = toData(s.Node)
			continue
		}
		items := make([]any, len(s.Nodes))
		for i, ch := range s.Nodes {
			items[i] = toData(ch)
		}
		m[s.Name] = items
	}
	return m
}

func valueData(v ast.Value) any {
	switch v.Kind {
	case ast.Bool:
		return v.Bool
	case ast.Int:
		return v.Int
	case ast.Float:
		return v.Float
	case ast.String:
		return v.Str
	case ast.List:
		items := make([]any, len(v.Items))
		for i, it := range v.Items {
			items[i] = valueData(it)
		}
		return items
	}
	return nil
}
