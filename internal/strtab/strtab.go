// Package strtab implements the deduplicating leaf-value dictionary that
// precedes the node stream.
//
// A table is filled in one collection pass and then frozen by Finish.
// Final indices follow first-insertion order, so the index space is
// dense and every list value is preceded by its items.
package strtab

import (
	"errors"
	"fmt"

	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/walk"
)

var (
	// ErrFinished is returned when inserting into a finished table.
	ErrFinished = errors.New("strtab: insert after finish")

	// ErrNotFinished is returned when looking up indices before Finish.
	ErrNotFinished = errors.New("strtab: table not finished")

	// ErrUnknownValue is returned for a lookup of a value never added.
	ErrUnknownValue = errors.New("strtab: value not in table")
)

type Table struct {
	index    map[string]int
	values   []ast.Value
	finished bool
}

func New() *Table {
	return &Table{index: make(map[string]int)}
}

// FromValues builds a finished table from values already in index order,
// as read back by a decoder.
func FromValues(values []ast.Value) *Table {
	t := &Table{index: make(map[string]int, len(values)), values: values, finished: true}
	for i, v := range values {
		if _, ok := t.index[v.Key()]; !ok {
			t.index[v.Key()] = i
		}
	}
	return t
}

// Add registers v. List items are registered before the list itself.
func (t *Table) Add(v ast.Value) error {
	if t.finished {
		return fmt.Errorf("%w: %s", ErrFinished, v)
	}
	if v.Kind == ast.List {
		for _, it := range v.Items {
			if err := t.Add(it); err != nil {
				return err
			}
		}
	}
	k := v.Key()
	if _, ok := t.index[k]; ok {
		return nil
	}
	t.index[k] = len(t.values)
	t.values = append(t.values, v)
	return nil
}

// AddName registers a type, field or slot name.
func (t *Table) AddName(name string) error {
	return t.Add(ast.StringValue(name))
}

// Finish freezes the table. It is idempotent.
func (t *Table) Finish() { t.finished = true }

func (t *Table) Finished() bool { return t.finished }

func (t *Table) Len() int { return len(t.values) }

// At returns the value stored at final index i.
func (t *Table) At(i int) (ast.Value, bool) {
	if i < 0 || i >= len(t.values) {
		return ast.Value{}, false
	}
	return t.values[i], true
}

// Values returns the entries in final index order. The slice must not be
// modified.
func (t *Table) Values() []ast.Value { return t.values }

// Index returns the final index of v.
func (t *Table) Index(v ast.Value) (int, error) {
	if !t.finished {
		return 0, ErrNotFinished
	}
	i, ok := t.index[v.Key()]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownValue, v)
	}
	return i, nil
}

// NameIndex is Index for names.
func (t *Table) NameIndex(name string) (int, error) {
	return t.Index(ast.StringValue(name))
}

// Collect walks root once, registering per node its type, then each field
// name and value, then each slot name, and returns the finished table.
func Collect(root *ast.Node) (*Table, error) {
	t := New()
	err := walk.Walk(root, func(ev walk.Event, n *ast.Node, _ walk.Attrs) (walk.Directive, error) {
		if ev != walk.Begin {
			return walk.Descend(), nil
		}
		if err := t.AddNode(n); err != nil {
			return walk.Abort(), err
		}
		return walk.Descend(), nil
	})
	if err != nil {
		return nil, err
	}
	t.Finish()
	return t, nil
}

// AddNode registers the names and values carried by a single node.
func (t *Table) AddNode(n *ast.Node) error {
	if err := t.AddName(n.Type); err != nil {
		return err
	}
	for _, f := range n.Fields {
		if err := t.AddName(f.Name); err != nil {
			return err
		}
		if err := t.Add(f.Value); err != nil {
			return err
		}
	}
	for _, s := range n.Slots {
		if err := t.AddName(s.Name); err != nil {
			return err
		}
	}
	return nil
}
