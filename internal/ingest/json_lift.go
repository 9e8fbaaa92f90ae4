package ingest

import (
	"fmt"
	"sort"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/treepress/internal/ast"
)

// Node types the JSON lifter invents for values that are not typed
// objects.
const (
	ObjectType = "object"
	ArrayType  = "array"
	ValueType  = "value"
	NullType   = "null"
	ItemsSlot  = "items"
	ValueField = "value"
)

// LiftJSON parses ESTree-style JSON and lifts it into the node model.
//
// An object with a string "type" key is a node; its other keys, in sorted
// order, become fields (scalars and scalar arrays), slots (node objects and
// arrays holding them), or dotted fields (nested plain objects of scalars).
// When selector is set it is evaluated as a JSONPath and the first result
// is lifted instead of the whole document.
func LiftJSON(data []byte, selector string) (*ast.Node, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}
	if selector != "" {
		x, err := jp.ParseString(selector)
		if err != nil {
			return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
		}
		results := x.Get(doc)
		if len(results) == 0 {
			return nil, fmt.Errorf("jsonpath '%s' matched nothing", selector)
		}
		doc = results[0]
	}
	return liftElement(doc), nil
}

// LiftValue lifts an already decoded JSON value.
func LiftValue(v any) *ast.Node {
	return liftElement(v)
}

func nodeType(v any) (map[string]any, string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, "", false
	}
	t, ok := m["type"].(string)
	if !ok || t == "" {
		return m, "", false
	}
	return m, t, true
}

// liftElement lifts a value that has to become a node.
func liftElement(v any) *ast.Node {
	if m, t, ok := nodeType(v); ok {
		return liftObject(t, m, true)
	}
	switch v := v.(type) {
	case nil:
		return ast.New(NullType)
	case map[string]any:
		return liftObject(ObjectType, v, false)
	case []any:
		if val, ok := scalarList(v); ok {
			return ast.New(ArrayType).WithField(ValueField, val)
		}
		items := make([]*ast.Node, len(v))
		for i, it := range v {
			items[i] = liftElement(it)
		}
		return ast.New(ArrayType).WithSeq(ItemsSlot, items...)
	}
	val, _ := scalar(v)
	return ast.New(ValueType).WithField(ValueField, val)
}

func liftObject(typ string, m map[string]any, typed bool) *ast.Node {
	n := ast.New(typ)
	keys := make([]string, 0, len(m))
	for k := range m {
		if typed && k == "type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]
		if val, ok := scalar(v); ok {
			n.WithField(k, val)
			continue
		}
		switch v := v.(type) {
		case []any:
			if val, ok := scalarList(v); ok && len(v) > 0 {
				n.WithField(k, val)
				continue
			}
			items := make([]*ast.Node, len(v))
			for i, it := range v {
				items[i] = liftElement(it)
			}
			n.WithSeq(k, items...)
		case map[string]any:
			if _, _, isNode := nodeType(v); !isNode && flattenable(v) {
				flatten(n, k, v)
				continue
			}
			n.WithChild(k, liftElement(v))
		}
	}
	return n
}

// scalar converts a JSON leaf. Objects and arrays report false.
func scalar(v any) (ast.Value, bool) {
	switch v := v.(type) {
	case nil:
		return ast.NullValue(), true
	case bool:
		return ast.BoolValue(v), true
	case int64:
		return ast.IntValue(v), true
	case int:
		return ast.IntValue(int64(v)), true
	case float64:
		return ast.FloatValue(v), true
	case string:
		return ast.StringValue(v), true
	}
	if s, ok := v.(fmt.Stringer); ok {
		// big numbers and other parser extensions
		return ast.StringValue(s.String()), true
	}
	return ast.Value{}, false
}

func scalarList(v []any) (ast.Value, bool) {
	items := make([]ast.Value, len(v))
	for i, it := range v {
		val, ok := scalar(it)
		if !ok {
			if nested, ok := it.([]any); ok {
				if val, ok = scalarList(nested); ok {
					items[i] = val
					continue
				}
			}
			return ast.Value{}, false
		}
		items[i] = val
	}
	return ast.ListValue(items...), true
}

// flattenable reports whether m holds only scalars, scalar lists and
// further flattenable objects.
func flattenable(m map[string]any) bool {
	for _, v := range m {
		if _, ok := scalar(v); ok {
			continue
		}
		switch v := v.(type) {
		case []any:
			if _, ok := scalarList(v); !ok {
				return false
			}
		case map[string]any:
			if _, _, isNode := nodeType(v); isNode || !flattenable(v) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func flatten(n *ast.Node, prefix string, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := prefix + "." + k
		switch v := m[k].(type) {
		case map[string]any:
			flatten(n, name, v)
		case []any:
			val, _ := scalarList(v)
			n.WithField(name, val)
		default:
			val, _ := scalar(v)
			n.WithField(name, val)
		}
	}
}
