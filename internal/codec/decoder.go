package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/cut"
	"github.com/agentic-research/treepress/internal/depthcache"
	"github.com/agentic-research/treepress/internal/strtab"
)

// Decoder rebuilds a tree from a stream, replaying the encoder's history.
type Decoder struct {
	data  []byte
	off   int
	table *strtab.Table
	cache *depthcache.Cache
	nodes int
	limit int
}

// MaxNodes bounds the size of a decoded tree. References let a short
// stream describe a very large tree; corrupt input must not exhaust memory.
// The encoder refuses larger trees.
const MaxNodes = 1 << 22

// grow counts n more nodes of the output tree.
func (d *Decoder) grow(n int) error {
	d.nodes += n
	if d.nodes > d.limit {
		return fmt.Errorf("%w: tree exceeds %d nodes", ErrCorrupt, d.limit)
	}
	return nil
}

// Decode parses a complete stream. Trailing bytes are an error.
func Decode(data []byte) (*ast.Node, error) {
	return decode(data, MaxNodes)
}

func decode(data []byte, limit int) (*ast.Node, error) {
	h, off, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	d := &Decoder{
		data:  data,
		off:   off,
		limit: limit,
		cache: depthcache.New(depthcache.Config{
			SubtreeCapacity:  h.SubtreeCapacity,
			TemplateCapacity: h.TemplateCapacity,
		}),
	}
	if err := d.readStringTable(); err != nil {
		return nil, err
	}
	root, err := d.node(0)
	if err != nil {
		return nil, err
	}
	if d.off != len(d.data) {
		return nil, d.fail("trailer", fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(d.data)-d.off))
	}
	return root, nil
}

// Table returns the decoded string table.
func (d *Decoder) Table() *strtab.Table { return d.table }

func (d *Decoder) fail(op string, err error) error {
	var fe *FormatError
	if errors.As(err, &fe) {
		return err
	}
	return &FormatError{Offset: d.off, Op: op, Err: err}
}

func (d *Decoder) readByte() (byte, error) {
	if d.off >= len(d.data) {
		return 0, ErrTruncated
	}
	b := d.data[d.off]
	d.off++
	return b, nil
}

func (d *Decoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.data[d.off:])
	if n == 0 {
		return 0, ErrTruncated
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: varint overflow", ErrCorrupt)
	}
	d.off += n
	return v, nil
}

func (d *Decoder) varint() (int64, error) {
	v, n := binary.Varint(d.data[d.off:])
	if n == 0 {
		return 0, ErrTruncated
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: varint overflow", ErrCorrupt)
	}
	d.off += n
	return v, nil
}

// count reads a length; every counted item takes at least one byte, so a
// count beyond the remaining input is corrupt.
func (d *Decoder) count() (int, error) {
	v, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(len(d.data)-d.off) {
		return 0, fmt.Errorf("%w: count %d exceeds input", ErrCorrupt, v)
	}
	return int(v), nil
}

func (d *Decoder) op() (Op, int, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, 0, err
	}
	op, n := Op(b>>4), int(b&0x0f)
	if n == nibbleMax {
		ext, err := d.count()
		if err != nil {
			return 0, 0, err
		}
		n += ext
	}
	return op, n, nil
}

func (d *Decoder) readStringTable() error {
	n, err := d.count()
	if err != nil {
		return d.fail("string table", err)
	}
	vals := make([]ast.Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.value(vals)
		if err != nil {
			return d.fail("string table", err)
		}
		vals = append(vals, v)
	}
	d.table = strtab.FromValues(vals)
	return nil
}

func (d *Decoder) value(prior []ast.Value) (ast.Value, error) {
	tag, err := d.readByte()
	if err != nil {
		return ast.Value{}, err
	}
	switch tag {
	case tagNull:
		return ast.NullValue(), nil
	case tagFalse:
		return ast.BoolValue(false), nil
	case tagTrue:
		return ast.BoolValue(true), nil
	case tagInt:
		i, err := d.varint()
		return ast.IntValue(i), err
	case tagFloat:
		if len(d.data)-d.off < 8 {
			return ast.Value{}, ErrTruncated
		}
		bits := binary.LittleEndian.Uint64(d.data[d.off:])
		d.off += 8
		return ast.FloatValue(math.Float64frombits(bits)), nil
	case tagStr:
		n, err := d.count()
		if err != nil {
			return ast.Value{}, err
		}
		s := string(d.data[d.off : d.off+n])
		d.off += n
		return ast.StringValue(s), nil
	case tagList:
		n, err := d.count()
		if err != nil {
			return ast.Value{}, err
		}
		items := make([]ast.Value, n)
		for i := range items {
			idx, err := d.uvarint()
			if err != nil {
				return ast.Value{}, err
			}
			if idx >= uint64(len(prior)) {
				return ast.Value{}, fmt.Errorf("%w: list item %d not yet defined", ErrCorrupt, idx)
			}
			items[i] = prior[idx]
		}
		return ast.ListValue(items...), nil
	}
	return ast.Value{}, fmt.Errorf("%w: value tag %d", ErrCorrupt, tag)
}

func (d *Decoder) indexed() (ast.Value, error) {
	i, err := d.uvarint()
	if err != nil {
		return ast.Value{}, err
	}
	v, ok := d.table.At(int(i))
	if !ok || i > math.MaxInt32 {
		return ast.Value{}, fmt.Errorf("%w: string table index %d", ErrCorrupt, i)
	}
	return v, nil
}

func (d *Decoder) name() (string, error) {
	v, err := d.indexed()
	if err != nil {
		return "", err
	}
	if v.Kind != ast.String {
		return "", fmt.Errorf("%w: name is a %s", ErrCorrupt, v.Kind)
	}
	return v.Str, nil
}

func (d *Decoder) fields(n int) ([]ast.Field, error) {
	if n == 0 {
		return nil, nil
	}
	out := make([]ast.Field, n)
	for i := range out {
		name, err := d.name()
		if err != nil {
			return nil, err
		}
		v, err := d.indexed()
		if err != nil {
			return nil, err
		}
		out[i] = ast.Field{Name: name, Value: v}
	}
	return out, nil
}

// layout reads slot descriptors. Present single slots and sequence
// entries are left nil for the caller to fill.
func (d *Decoder) layout() ([]ast.Slot, error) {
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	slots := make([]ast.Slot, n)
	present := make([]bool, n)
	for i := range slots {
		name, err := d.name()
		if err != nil {
			return nil, err
		}
		kind, err := d.readByte()
		if err != nil {
			return nil, err
		}
		slots[i].Name = name
		switch kind {
		case slotNode:
			present[i] = true
		case slotNull:
		case slotSeq:
			l, err := d.count()
			if err != nil {
				return nil, err
			}
			slots[i].Seq = true
			slots[i].Nodes = make([]*ast.Node, l)
		default:
			return nil, fmt.Errorf("%w: slot kind %d", ErrCorrupt, kind)
		}
	}
	// A present single slot holds a placeholder until its record is read.
	for i := range slots {
		if present[i] {
			slots[i].Node = placeholder
		}
	}
	return slots, nil
}

// placeholder marks a present single slot whose child is still pending.
var placeholder = &ast.Node{}

type pending struct {
	depth int
	set   func(*ast.Node) error
}

// pendingSlots lists the children a freshly read layout still needs.
func pendingSlots(slots []ast.Slot, depth int) []pending {
	var out []pending
	for i := range slots {
		s := &slots[i]
		if s.Seq {
			nodes := s.Nodes
			for j := range nodes {
				out = append(out, pending{depth: depth, set: func(n *ast.Node) error { nodes[j] = n; return nil }})
			}
			continue
		}
		if s.Node == placeholder {
			out = append(out, pending{depth: depth, set: func(n *ast.Node) error { s.Node = n; return nil }})
		}
	}
	return out
}

func (d *Decoder) node(depth int) (*ast.Node, error) {
	start := d.off
	op, n, err := d.op()
	if err != nil {
		return nil, d.fail("node", err)
	}
	var out *ast.Node
	switch op {
	case OpDirect:
		out, err = d.direct(depth)
	case OpSubtreeRef:
		out, err = d.subtreeRef(depth, n)
	case OpTemplateRef:
		out, err = d.templateRef(depth, n)
	default:
		d.off = start
		err = fmt.Errorf("%w: %s record where a node was expected", ErrCorrupt, op)
	}
	if err != nil {
		return nil, d.fail(op.String(), err)
	}
	return out, nil
}

func (d *Decoder) direct(depth int) (*ast.Node, error) {
	typ, err := d.name()
	if err != nil {
		return nil, err
	}
	if typ == "" {
		return nil, fmt.Errorf("%w: empty type tag", ast.ErrMalformed)
	}
	nf, err := d.count()
	if err != nil {
		return nil, err
	}
	if err := d.grow(1); err != nil {
		return nil, err
	}
	n := &ast.Node{Type: typ}
	if n.Fields, err = d.fields(nf); err != nil {
		return nil, err
	}
	if n.Slots, err = d.layout(); err != nil {
		return nil, err
	}
	for i := range n.Slots {
		s := &n.Slots[i]
		switch {
		case s.Seq && len(s.Nodes) == 0:
			if err := d.emptyArray(s.Name); err != nil {
				return nil, err
			}
		case s.Seq:
			for j := range s.Nodes {
				if s.Nodes[j], err = d.node(depth + 1); err != nil {
					return nil, err
				}
			}
		case s.Node == placeholder:
			if s.Node, err = d.node(depth + 1); err != nil {
				return nil, err
			}
		}
	}
	d.cache.PushTree(depth, n)
	return n, nil
}

func (d *Decoder) emptyArray(slot string) error {
	op, _, err := d.op()
	if err != nil {
		return err
	}
	if op != OpEmptyArray {
		return fmt.Errorf("%w: expected EMPTY_ARRAY for %s, got %s", ErrCorrupt, slot, op)
	}
	name, err := d.name()
	if err != nil {
		return err
	}
	if name != slot {
		return fmt.Errorf("%w: EMPTY_ARRAY for %s, expected %s", ErrCorrupt, name, slot)
	}
	return nil
}

func (d *Decoder) fieldMap() ([]ast.Field, error) {
	op, n, err := d.op()
	if err != nil {
		return nil, err
	}
	if op != OpFieldMap {
		return nil, fmt.Errorf("%w: expected FIELD_MAP, got %s", ErrCorrupt, op)
	}
	return d.fields(n)
}

func (d *Decoder) address(depth int) (int, int, error) {
	dd, err := d.varint()
	if err != nil {
		return 0, 0, err
	}
	ri, err := d.uvarint()
	if err != nil {
		return 0, 0, err
	}
	if dd > math.MaxInt32 || dd < -math.MaxInt32 || ri > math.MaxInt32 {
		return 0, 0, fmt.Errorf("%w: reference out of range", ErrCorrupt)
	}
	return depth - int(dd), int(ri), nil
}

func (d *Decoder) subtreeRef(depth, ncuts int) (*ast.Node, error) {
	target, ri, err := d.address(depth)
	if err != nil {
		return nil, err
	}
	prior, err := d.cache.Subtree(target, ri)
	if err != nil {
		return nil, err
	}
	d.cache.UseSubtreeEntry(target, ri)

	shape := prior.Clone()
	sites := cut.Sites(shape)
	var (
		todo       []pending
		holes      []int
		fieldsOnly = ncuts > 0
	)
	for i := 0; i < ncuts; i++ {
		kind, err := d.readByte()
		if err != nil {
			return nil, err
		}
		pos, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		site, err := cut.Lookup(sites, int(min(pos, math.MaxInt32)))
		if err != nil {
			return nil, err
		}
		if cut.Kind(kind) != cut.KindFields {
			fieldsOnly = false
		}
		switch cut.Kind(kind) {
		case cut.KindTop:
			if site.Parent == nil {
				return nil, fmt.Errorf("%w: top cut at the reference root", ErrCorrupt)
			}
			todo = append(todo, pending{depth: depth + site.Depth, set: func(n *ast.Node) error {
				if !site.Replace(n) {
					return fmt.Errorf("%w: top cut target at position %d no longer exists", ErrCorrupt, pos)
				}
				return nil
			}})
		case cut.KindFields:
			vals, err := d.fieldMap()
			if err != nil {
				return nil, err
			}
			if err := cut.ApplyFields(site.Node, vals); err != nil {
				return nil, err
			}
			holes = append(holes, int(pos))
		case cut.KindChildren:
			slots, err := d.layout()
			if err != nil {
				return nil, err
			}
			site.Node.Slots = slots
			todo = append(todo, pendingSlots(site.Node.Slots, depth+site.Depth+1)...)
		case cut.KindChild:
			slot, err := d.slot(site.Node, false)
			if err != nil {
				return nil, err
			}
			present, err := d.readByte()
			if err != nil {
				return nil, err
			}
			slot.Node = nil
			if present != 0 {
				todo = append(todo, pending{depth: depth + site.Depth + 1, set: func(n *ast.Node) error { slot.Node = n; return nil }})
			}
		case cut.KindChildArray:
			slot, err := d.slot(site.Node, true)
			if err != nil {
				return nil, err
			}
			l, err := d.count()
			if err != nil {
				return nil, err
			}
			nodes := make([]*ast.Node, l)
			slot.Nodes = nodes
			for j := range nodes {
				todo = append(todo, pending{depth: depth + site.Depth + 1, set: func(n *ast.Node) error { nodes[j] = n; return nil }})
			}
		default:
			return nil, fmt.Errorf("%w: kind byte %d", cut.ErrUnknownCut, kind)
		}
	}

	before := d.nodes
	for _, p := range todo {
		child, err := d.node(p.depth)
		if err != nil {
			return nil, err
		}
		if err := p.set(child); err != nil {
			return nil, err
		}
	}

	// Substituted nodes were counted as they were decoded; recount the
	// whole result so that the total stays exact.
	d.nodes = before
	if err := d.grow(shape.Size()); err != nil {
		return nil, err
	}

	d.cache.PushTree(depth, shape)
	if fieldsOnly {
		d.cache.PushTemplate(depth, &depthcache.Template{
			Shape:     prior,
			Holes:     holes,
			StepCount: prior.Size(),
			CutCount:  len(holes),
		})
	}
	return shape, nil
}

func (d *Decoder) slot(n *ast.Node, seq bool) (*ast.Slot, error) {
	i, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	return cut.SlotAt(n, int(min(i, math.MaxInt32)), seq)
}

func (d *Decoder) templateRef(depth, ncuts int) (*ast.Node, error) {
	target, ri, err := d.address(depth)
	if err != nil {
		return nil, err
	}
	t, err := d.cache.Template(target, ri)
	if err != nil {
		return nil, err
	}
	d.cache.UseTemplateEntry(target, ri)
	if err := d.grow(t.StepCount); err != nil {
		return nil, err
	}

	shape := t.Shape.Clone()
	sites := cut.Sites(shape)
	apply := func(pos int) error {
		site, err := cut.Lookup(sites, pos)
		if err != nil {
			return err
		}
		vals, err := d.fieldMap()
		if err != nil {
			return err
		}
		return cut.ApplyFields(site.Node, vals)
	}
	for _, h := range t.Holes {
		if err := apply(h); err != nil {
			return nil, err
		}
	}
	for i := 0; i < ncuts; i++ {
		kind, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if cut.Kind(kind) != cut.KindFields {
			return nil, fmt.Errorf("%w: %s cut in a template reference", ErrCorrupt, cut.Kind(kind))
		}
		pos, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		if err := apply(int(min(pos, math.MaxInt32))); err != nil {
			return nil, err
		}
	}
	d.cache.PushTree(depth, shape)
	return shape, nil
}
