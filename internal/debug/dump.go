// Package debug renders lifted trees for inspection.
package debug

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/walk"
)

// MaxValueLen truncates long field values in dumps.
const MaxValueLen = 40

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	if len(s) <= MaxValueLen {
		return s
	}
	return s[:MaxValueLen-3] + "..."
}

func fields(n *ast.Node) string {
	var b strings.Builder
	for i, f := range n.Fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", f.Name, truncate(f.Value.String()))
	}
	return b.String()
}

// Dump writes one line per node: indentation by depth, the slot it sits
// in, its type and fields, and the parent's type.
func Dump(w io.Writer, root *ast.Node) error {
	var werr error
	err := walk.Walk(root, func(ev walk.Event, n *ast.Node, a walk.Attrs) (walk.Directive, error) {
		indent := strings.Repeat("  ", a.Depth)
		switch ev {
		case walk.Begin:
			parent := "-"
			if a.Parent != nil {
				parent = a.Parent.Type
			}
			_, werr = fmt.Fprintf(w, "%s%s: %s [%s] #%d <%s>\n", indent, a.DispName, n.Type, fields(n), a.Number, parent)
		case walk.EmptyArray:
			_, werr = fmt.Fprintf(w, "%s%s: []\n", indent, a.DispName)
		}
		if werr != nil {
			return walk.Abort(), werr
		}
		return walk.Descend(), nil
	})
	return err
}

// TypeIndex maps each type tag to the pre-order numbers of its nodes.
func TypeIndex(root *ast.Node) (map[string]*roaring.Bitmap, error) {
	idx := make(map[string]*roaring.Bitmap)
	err := walk.Walk(root, func(ev walk.Event, n *ast.Node, a walk.Attrs) (walk.Directive, error) {
		if ev == walk.Begin {
			bm, ok := idx[n.Type]
			if !ok {
				bm = roaring.New()
				idx[n.Type] = bm
			}
			bm.Add(uint32(a.Number))
		}
		return walk.Descend(), nil
	})
	return idx, err
}

// DumpTypeSorted lists subtrees grouped by type, most frequent type first,
// so repeated shapes sit next to each other.
func DumpTypeSorted(w io.Writer, root *ast.Node) error {
	idx, err := TypeIndex(root)
	if err != nil {
		return err
	}
	byNumber := make(map[uint32]*ast.Node)
	err = walk.Walk(root, func(ev walk.Event, n *ast.Node, a walk.Attrs) (walk.Directive, error) {
		if ev == walk.Begin {
			byNumber[uint32(a.Number)] = n
		}
		return walk.Descend(), nil
	})
	if err != nil {
		return err
	}

	types := make([]string, 0, len(idx))
	for t := range idx {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		ci, cj := idx[types[i]].GetCardinality(), idx[types[j]].GetCardinality()
		if ci != cj {
			return ci > cj
		}
		return types[i] < types[j]
	})

	for _, t := range types {
		bm := idx[t]
		if _, err := fmt.Fprintf(w, "%s (%d)\n", t, bm.GetCardinality()); err != nil {
			return err
		}
		it := bm.Iterator()
		for it.HasNext() {
			num := it.Next()
			n := byNumber[num]
			if _, err := fmt.Fprintf(w, "  #%d size=%d %s\n", num, n.Size(), truncate(n.String())); err != nil {
				return err
			}
		}
	}
	return nil
}
