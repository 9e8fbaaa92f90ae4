package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/cut"
	"github.com/agentic-research/treepress/internal/strtab"
)

// Record describes one written record, for Dump and reports.
type Record struct {
	Offset  int
	Op      Op
	Summary string
}

// Encoder appends records to an in-memory byte sequence.
type Encoder struct {
	buf     []byte
	table   *strtab.Table
	records []Record
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// WriteHeader writes the stream header.
func (e *Encoder) WriteHeader(subtreeCap, templateCap int) {
	e.buf = appendHeader(e.buf, Header{
		Magic:            Magic,
		Version:          Version,
		SubtreeCapacity:  subtreeCap,
		TemplateCapacity: templateCap,
	})
}

// WriteStringTable emits the finished table; every later record refers
// to it by index.
func (e *Encoder) WriteStringTable(t *strtab.Table) error {
	if !t.Finished() {
		return strtab.ErrNotFinished
	}
	e.table = t
	vals := t.Values()
	e.buf = binary.AppendUvarint(e.buf, uint64(len(vals)))
	for _, v := range vals {
		if err := e.appendValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) appendValue(v ast.Value) error {
	switch v.Kind {
	case ast.Null:
		e.buf = append(e.buf, tagNull)
	case ast.Bool:
		if v.Bool {
			e.buf = append(e.buf, tagTrue)
		} else {
			e.buf = append(e.buf, tagFalse)
		}
	case ast.Int:
		e.buf = append(e.buf, tagInt)
		e.buf = binary.AppendVarint(e.buf, v.Int)
	case ast.Float:
		e.buf = append(e.buf, tagFloat)
		e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v.Float))
	case ast.String:
		e.buf = append(e.buf, tagStr)
		e.buf = binary.AppendUvarint(e.buf, uint64(len(v.Str)))
		e.buf = append(e.buf, v.Str...)
	case ast.List:
		e.buf = append(e.buf, tagList)
		e.buf = binary.AppendUvarint(e.buf, uint64(len(v.Items)))
		for _, it := range v.Items {
			if err := e.appendIndex(it); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("codec: cannot encode value kind %s", v.Kind)
	}
	return nil
}

func (e *Encoder) appendIndex(v ast.Value) error {
	if e.table == nil {
		return strtab.ErrNotFinished
	}
	i, err := e.table.Index(v)
	if err != nil {
		return err
	}
	e.buf = binary.AppendUvarint(e.buf, uint64(i))
	return nil
}

func (e *Encoder) appendName(name string) error {
	return e.appendIndex(ast.StringValue(name))
}

func (e *Encoder) appendOp(op Op, count int) {
	if count < nibbleMax {
		e.buf = append(e.buf, byte(op)<<4|byte(count))
		return
	}
	e.buf = append(e.buf, byte(op)<<4|nibbleMax)
	e.buf = binary.AppendUvarint(e.buf, uint64(count-nibbleMax))
}

func (e *Encoder) begin(op Op, summary string) {
	e.records = append(e.records, Record{Offset: len(e.buf), Op: op, Summary: summary})
}

func (e *Encoder) appendFields(fields []ast.Field) error {
	for _, f := range fields {
		if err := e.appendName(f.Name); err != nil {
			return err
		}
		if err := e.appendIndex(f.Value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) appendLayout(n *ast.Node) error {
	e.buf = binary.AppendUvarint(e.buf, uint64(len(n.Slots)))
	for _, s := range n.Slots {
		if err := e.appendName(s.Name); err != nil {
			return err
		}
		switch {
		case s.Seq:
			e.buf = append(e.buf, slotSeq)
			e.buf = binary.AppendUvarint(e.buf, uint64(len(s.Nodes)))
		case s.Node == nil:
			e.buf = append(e.buf, slotNull)
		default:
			e.buf = append(e.buf, slotNode)
		}
	}
	return nil
}

// WriteDirectNode writes n's type, fields and slot layout. Its children
// are expected to follow as independent records in traversal order.
func (e *Encoder) WriteDirectNode(n *ast.Node) error {
	e.begin(OpDirect, n.Summary())
	e.appendOp(OpDirect, 0)
	if err := e.appendName(n.Type); err != nil {
		return err
	}
	e.buf = binary.AppendUvarint(e.buf, uint64(len(n.Fields)))
	if err := e.appendFields(n.Fields); err != nil {
		return err
	}
	return e.appendLayout(n)
}

// WriteSubtreeRef writes a reference to a concrete prior subtree followed
// by its cuts. Nodes carried by top, child, child_array and children cuts
// must be encoded next, in cut order.
func (e *Encoder) WriteSubtreeRef(depthDelta, revIndex int, cuts []cut.Cut) error {
	e.begin(OpSubtreeRef, fmt.Sprintf("dd=%d ri=%d cuts=%v", depthDelta, revIndex, cut.Positions(cuts)))
	e.appendOp(OpSubtreeRef, len(cuts))
	e.buf = binary.AppendVarint(e.buf, int64(depthDelta))
	e.buf = binary.AppendUvarint(e.buf, uint64(revIndex))
	for _, c := range cuts {
		if err := e.writeCut(c); err != nil {
			return err
		}
	}
	return nil
}

// WriteTemplateRef writes a reference to a template: one field map per
// hole, then the explicit field cuts.
func (e *Encoder) WriteTemplateRef(depthDelta, revIndex int, holes []*cut.Fields, cuts []cut.Cut) error {
	e.begin(OpTemplateRef, fmt.Sprintf("dd=%d ri=%d holes=%d cuts=%v", depthDelta, revIndex, len(holes), cut.Positions(cuts)))
	e.appendOp(OpTemplateRef, len(cuts))
	e.buf = binary.AppendVarint(e.buf, int64(depthDelta))
	e.buf = binary.AppendUvarint(e.buf, uint64(revIndex))
	for _, h := range holes {
		if err := e.WriteFieldMap(h.Query, h.Values); err != nil {
			return err
		}
	}
	for _, c := range cuts {
		if _, ok := c.(*cut.Fields); !ok {
			return fmt.Errorf("%w: template reference with %s cut", cut.ErrBadCut, c.Kind())
		}
		if err := e.writeCut(c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeCut(c cut.Cut) error {
	e.buf = append(e.buf, byte(c.Kind()))
	e.buf = binary.AppendUvarint(e.buf, uint64(c.Pos()))
	switch c := c.(type) {
	case *cut.Top:
		return nil
	case *cut.Fields:
		return e.WriteFieldMap(c.Query, c.Values)
	case *cut.Children:
		return e.appendLayout(c.Node)
	case *cut.Child:
		e.buf = binary.AppendUvarint(e.buf, uint64(c.Slot))
		if c.Node == nil {
			e.buf = append(e.buf, 0)
		} else {
			e.buf = append(e.buf, 1)
		}
		return nil
	case *cut.ChildArray:
		e.buf = binary.AppendUvarint(e.buf, uint64(c.Slot))
		e.buf = binary.AppendUvarint(e.buf, uint64(len(c.Nodes)))
		return nil
	default:
		return fmt.Errorf("%w: %T", cut.ErrUnknownCut, c)
	}
}

// WriteFieldMap writes name→value overrides for the node at a cut or
// template hole. shape is only used to label the record.
func (e *Encoder) WriteFieldMap(shape *ast.Node, values []ast.Field) error {
	label := "-"
	if shape != nil {
		label = shape.Type
	}
	e.begin(OpFieldMap, fmt.Sprintf("%s entries=%d", label, len(values)))
	e.appendOp(OpFieldMap, len(values))
	return e.appendFields(values)
}

// WriteEmptyArray marks a zero-length child sequence.
func (e *Encoder) WriteEmptyArray(name string) error {
	e.begin(OpEmptyArray, name)
	e.appendOp(OpEmptyArray, 0)
	return e.appendName(name)
}

// Bytes returns the encoded stream. The slice aliases the encoder buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) Len() int { return len(e.buf) }

// Records returns the records written so far.
func (e *Encoder) Records() []Record { return e.records }

// Dump writes a one-line-per-record listing of the node stream.
func (e *Encoder) Dump(w io.Writer) error {
	for _, r := range e.records {
		if _, err := fmt.Fprintf(w, "%08x %-12s %s\n", r.Offset, r.Op, r.Summary); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d records, %d bytes\n", len(e.records), len(e.buf))
	return err
}
