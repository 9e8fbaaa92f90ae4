// Package press drives one compression run: a pre-pass that numbers the
// tree and collects its string table, then a single walk that encodes each
// node directly or as a reference into the per-depth history.
package press

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/codec"
	"github.com/agentic-research/treepress/internal/cut"
	"github.com/agentic-research/treepress/internal/depthcache"
	"github.com/agentic-research/treepress/internal/strtab"
	"github.com/agentic-research/treepress/internal/walk"
)

var (
	ErrRunUsed = errors.New("press: run already used")
	// ErrBadConfig is depthcache.ErrBadConfig, re-exported for callers of
	// this package.
	ErrBadConfig = depthcache.ErrBadConfig
	// ErrTooLarge is returned for trees the decoder would refuse.
	ErrTooLarge = errors.New("press: tree too large")
)

// Event describes one node record as it is written.
type Event struct {
	Number     int
	Depth      int
	Type       string
	Op         codec.Op
	DepthDelta int
	RevIndex   int
	Benefit    int
	Cuts       int
	Offset     int
}

// Sink observes node records. A failing sink aborts the run.
type Sink interface {
	Record(ev Event) error
}

// Options configures a run. The zero value uses depthcache.DefaultConfig,
// no logging and no sink.
type Options struct {
	Cache  depthcache.Config
	Logger *slog.Logger
	Sink   Sink
}

// frame tracks the node whose children are being walked: its own depth,
// the template it derived (pushed at End), and the depths of explicit
// substitution steps, which need not be direct children.
type frame struct {
	depth   int
	derived *depthcache.Template
	depths  []int
	next    int
}

// Run holds the state of a single compression. It is not safe for
// concurrent use; concurrent compressions each need their own Run.
type Run struct {
	cfg   depthcache.Config
	log   *slog.Logger
	sink  Sink
	table *strtab.Table
	enc   *codec.Encoder
	cache *depthcache.Cache
	model *cut.Model

	frames []frame
	stats  Stats
	used   bool
}

func NewRun(opts Options) *Run {
	cfg := opts.Cache
	if cfg == (depthcache.Config{}) {
		cfg = depthcache.DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Run{
		cfg:   cfg,
		log:   log,
		sink:  opts.Sink,
		enc:   codec.NewEncoder(),
		cache: depthcache.New(cfg),
		stats: newStats(),
	}
}

// Compress encodes root and returns the stream. On error no bytes are
// returned.
func Compress(root *ast.Node, opts Options) ([]byte, error) {
	return NewRun(opts).Compress(root)
}

// Decompress is the inverse of Compress.
func Decompress(data []byte) (*ast.Node, error) {
	return codec.Decode(data)
}

func (r *Run) Compress(root *ast.Node) ([]byte, error) {
	if r.used {
		return nil, ErrRunUsed
	}
	r.used = true
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ast.Validate(root); err != nil {
		return nil, err
	}
	if size := root.Size(); size > codec.MaxNodes {
		return nil, fmt.Errorf("%w: %d nodes, limit %d", ErrTooLarge, size, codec.MaxNodes)
	}
	if err := walk.Number(root); err != nil {
		return nil, err
	}
	table, err := strtab.Collect(root)
	if err != nil {
		return nil, fmt.Errorf("collect string table: %w", err)
	}
	r.table = table
	r.model = cut.NewModel(table)

	r.enc.WriteHeader(r.cfg.SubtreeCapacity, r.cfg.TemplateCapacity)
	if err := r.enc.WriteStringTable(table); err != nil {
		return nil, fmt.Errorf("write string table: %w", err)
	}
	r.log.Debug("string table", "entries", table.Len(), "bytes", r.enc.Len())

	if err := walk.Walk(root, r.visit); err != nil {
		return nil, err
	}
	r.stats.Bytes = r.enc.Len()
	r.log.Debug("done", "nodes", r.stats.Nodes, "records", len(r.enc.Records()), "bytes", r.stats.Bytes)
	return r.enc.Bytes(), nil
}

// Encoder exposes the run's encoder, for record dumps.
func (r *Run) Encoder() *codec.Encoder { return r.enc }

// Table returns the string table collected by the pre-pass.
func (r *Run) Table() *strtab.Table { return r.table }

func (r *Run) Stats() Stats { return r.stats }

func (r *Run) visit(ev walk.Event, n *ast.Node, a walk.Attrs) (walk.Directive, error) {
	switch ev {
	case walk.Begin:
		return r.begin(n)
	case walk.End:
		r.end(n)
	case walk.EmptyArray:
		r.stats.EmptyArrays++
		if err := r.enc.WriteEmptyArray(a.Name); err != nil {
			return walk.Abort(), fmt.Errorf("empty array %s: %w", a.Name, err)
		}
	}
	return walk.Descend(), nil
}

func (r *Run) depth() int {
	if len(r.frames) == 0 {
		return 0
	}
	f := &r.frames[len(r.frames)-1]
	if f.next < len(f.depths) {
		d := f.depths[f.next]
		f.next++
		return d
	}
	return f.depth + 1
}

func (r *Run) begin(n *ast.Node) (walk.Directive, error) {
	depth := r.depth()
	r.stats.Nodes++
	ev := Event{
		Number: n.Attrs.Number,
		Depth:  depth,
		Type:   n.Type,
		Offset: r.enc.Len(),
	}

	m, ok := r.cache.Search(r.model, depth, n)
	if !ok {
		r.log.Debug("begin", "type", n.Type, "depth", depth, "op", codec.OpDirect)
		if err := r.enc.WriteDirectNode(n); err != nil {
			return walk.Abort(), fmt.Errorf("direct %s: %w", n.Type, err)
		}
		r.stats.Direct++
		r.frames = append(r.frames, frame{depth: depth})
		ev.Op = codec.OpDirect
		return walk.Descend(), r.emit(ev)
	}

	target := depth - m.DepthDelta
	r.log.Debug("begin", "type", n.Type, "depth", depth, "op", m.Kind,
		"dd", m.DepthDelta, "ri", m.RevIndex, "benefit", m.Benefit,
		"steps", m.StepCount, "cuts", m.CutCount)
	switch m.Kind {
	case depthcache.SubtreeRef:
		if err := r.enc.WriteSubtreeRef(m.DepthDelta, m.RevIndex, m.Cuts); err != nil {
			return walk.Abort(), fmt.Errorf("subtree ref %s: %w", n.Type, err)
		}
		r.cache.UseSubtreeEntry(target, m.RevIndex)
		r.stats.SubtreeRefs++
		ev.Op = codec.OpSubtreeRef
	case depthcache.TemplateRef:
		if err := r.enc.WriteTemplateRef(m.DepthDelta, m.RevIndex, m.HoleMaps, m.Cuts); err != nil {
			return walk.Abort(), fmt.Errorf("template ref %s: %w", n.Type, err)
		}
		r.cache.UseTemplateEntry(target, m.RevIndex)
		r.stats.TemplateRefs++
		r.stats.FieldMaps += len(m.HoleMaps)
		ev.Op = codec.OpTemplateRef
	}
	r.stats.Referenced.Add(uint32(n.Attrs.Number))
	if m.Derived != nil {
		r.stats.TemplatesDerived++
	}

	steps, depths, err := r.steps(m, depth)
	if err != nil {
		return walk.Abort(), err
	}
	r.frames = append(r.frames, frame{depth: depth, derived: m.Derived, depths: depths})

	ev.DepthDelta, ev.RevIndex, ev.Benefit, ev.Cuts = m.DepthDelta, m.RevIndex, m.Benefit, len(m.Cuts)
	return walk.Visit(steps), r.emit(ev)
}

// steps lists the nodes carried by m's cuts, in cut order, with the depth
// each will be encoded at.
func (r *Run) steps(m depthcache.Match, depth int) ([]walk.Step, []int, error) {
	var (
		sites  []cut.Site
		steps  []walk.Step
		depths []int
	)
	at := func(pos int) (int, error) {
		if sites == nil {
			sites = cut.Sites(m.Tree)
		}
		s, err := cut.Lookup(sites, pos)
		return depth + s.Depth, err
	}
	add := func(name string, n *ast.Node, d int) {
		if n != nil {
			steps = append(steps, walk.Step{Name: name, Node: n})
			depths = append(depths, d)
		}
	}

	for _, c := range m.Cuts {
		r.stats.Cuts[c.Kind()]++
		r.log.Debug("cut", "kind", c.Kind(), "pos", c.Pos(), "why", c.Reason())
		switch c := c.(type) {
		case *cut.Fields:
			r.stats.FieldMaps++
		case *cut.Top:
			d, err := at(c.Position)
			if err != nil {
				return nil, nil, err
			}
			add(fmt.Sprintf("@%d", c.Position), c.Node, d)
		case *cut.Children:
			d, err := at(c.Position)
			if err != nil {
				return nil, nil, err
			}
			c.Node.ForEachChild(func(name string, ch *ast.Node) { add(name, ch, d+1) })
		case *cut.Child:
			d, err := at(c.Position)
			if err != nil {
				return nil, nil, err
			}
			add(fmt.Sprintf("@%d.%d", c.Position, c.Slot), c.Node, d+1)
		case *cut.ChildArray:
			d, err := at(c.Position)
			if err != nil {
				return nil, nil, err
			}
			for i, ch := range c.Nodes {
				add(fmt.Sprintf("@%d.%d.%d", c.Position, c.Slot, i), ch, d+1)
			}
		default:
			return nil, nil, fmt.Errorf("%w: %T", cut.ErrUnknownCut, c)
		}
	}
	return steps, depths, nil
}

func (r *Run) end(n *ast.Node) {
	f := r.frames[len(r.frames)-1]
	r.frames = r.frames[:len(r.frames)-1]
	r.cache.PushTree(f.depth, n)
	if f.derived != nil {
		r.cache.PushTemplate(f.depth, f.derived)
	}
	r.log.Debug("end", "type", n.Type, "depth", f.depth, "template", f.derived != nil)
}

func (r *Run) emit(ev Event) error {
	if r.sink == nil {
		return nil
	}
	if err := r.sink.Record(ev); err != nil {
		return fmt.Errorf("record sink: %w", err)
	}
	return nil
}
