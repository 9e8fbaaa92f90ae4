// Package depthcache keeps the bounded, per-depth history of emitted
// subtrees and derived templates, and answers which recent entry near a
// given depth is the cheapest reference for a node.
//
// An encoder and its decoder must drive two caches with the same Config
// through the same sequence of pushes; Search is only used on the encoder
// side.
package depthcache

import (
	"errors"
	"fmt"

	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/cut"
)

var (
	// ErrNoEntry is returned when a (depth, reverse index) address does not
	// resolve, which means the stream and the history have diverged.
	ErrNoEntry   = errors.New("depthcache: no entry at address")
	ErrBadConfig = errors.New("depthcache: invalid configuration")
)

// Limits on Config. With at most MaxCapacity entries per ring and a depth
// delta of at most MaxDepthWindow, the address of a reference without cuts
// fits in one byte each, so its record is never longer than the smallest
// DIRECT record and a verbatim repeat inside the window always matches.
const (
	MaxCapacity    = 128
	MaxDepthWindow = 63
)

// Config sizes the history.
type Config struct {
	SubtreeCapacity  int
	TemplateCapacity int
	DepthWindow      int
}

// DefaultConfig returns the capacities used when none are configured.
func DefaultConfig() Config {
	return Config{SubtreeCapacity: 32, TemplateCapacity: 8, DepthWindow: 2}
}

// Validate checks c against the limits above. The stream header carries
// the capacities, so the decoder applies the same check.
func (c Config) Validate() error {
	switch {
	case c.SubtreeCapacity <= 0 || c.SubtreeCapacity > MaxCapacity:
		return fmt.Errorf("%w: subtree capacity %d outside 1..%d", ErrBadConfig, c.SubtreeCapacity, MaxCapacity)
	case c.TemplateCapacity < 0 || c.TemplateCapacity > MaxCapacity:
		return fmt.Errorf("%w: template capacity %d outside 0..%d", ErrBadConfig, c.TemplateCapacity, MaxCapacity)
	case c.DepthWindow < 0 || c.DepthWindow > MaxDepthWindow:
		return fmt.Errorf("%w: depth window %d outside 0..%d", ErrBadConfig, c.DepthWindow, MaxDepthWindow)
	}
	return nil
}

// Template is a subtree shape whose field values at Holes are supplied by
// every reference to it.
type Template struct {
	Shape     *ast.Node
	Holes     []int
	StepCount int
	CutCount  int
}

// NewTemplate derives a template from a match whose cuts are all *cut.Fields.
func NewTemplate(shape *ast.Node, cuts []cut.Cut) *Template {
	holes := cut.Positions(cuts)
	return &Template{
		Shape:     shape,
		Holes:     holes,
		StepCount: shape.Size(),
		CutCount:  len(holes),
	}
}

type level struct {
	trees     ring[*ast.Node]
	templates ring[*Template]
}

// Cache is owned by a single run.
type Cache struct {
	cfg    Config
	levels []*level
}

func New(cfg Config) *Cache {
	return &Cache{cfg: cfg}
}

func (c *Cache) Config() Config { return c.cfg }

func (c *Cache) level(depth int) *level {
	for len(c.levels) <= depth {
		c.levels = append(c.levels, &level{
			trees:     newRing[*ast.Node](c.cfg.SubtreeCapacity),
			templates: newRing[*Template](c.cfg.TemplateCapacity),
		})
	}
	return c.levels[depth]
}

func (c *Cache) peek(depth int) *level {
	if depth < 0 || depth >= len(c.levels) {
		return nil
	}
	return c.levels[depth]
}

// PushTree records a finished subtree at depth.
func (c *Cache) PushTree(depth int, n *ast.Node) {
	c.level(depth).trees.push(n)
}

// PushTemplate records a derived template at depth.
func (c *Cache) PushTemplate(depth int, t *Template) {
	c.level(depth).templates.push(t)
}

// Subtree resolves a subtree address.
func (c *Cache) Subtree(depth, rev int) (*ast.Node, error) {
	if l := c.peek(depth); l != nil {
		if e, ok := l.trees.at(rev); ok {
			return e.value, nil
		}
	}
	return nil, fmt.Errorf("%w: subtree depth=%d rev=%d", ErrNoEntry, depth, rev)
}

// Template resolves a template address.
func (c *Cache) Template(depth, rev int) (*Template, error) {
	if l := c.peek(depth); l != nil {
		if e, ok := l.templates.at(rev); ok {
			return e.value, nil
		}
	}
	return nil, fmt.Errorf("%w: template depth=%d rev=%d", ErrNoEntry, depth, rev)
}

// UseSubtreeEntry counts a reference to a subtree entry.
func (c *Cache) UseSubtreeEntry(depth, rev int) {
	if l := c.peek(depth); l != nil {
		if e, ok := l.trees.at(rev); ok {
			e.uses++
		}
	}
}

// UseTemplateEntry counts a reference to a template entry.
func (c *Cache) UseTemplateEntry(depth, rev int) {
	if l := c.peek(depth); l != nil {
		if e, ok := l.templates.at(rev); ok {
			e.uses++
		}
	}
}

// SubtreeUses reports how often a subtree entry was referenced.
func (c *Cache) SubtreeUses(depth, rev int) int {
	if l := c.peek(depth); l != nil {
		if e, ok := l.trees.at(rev); ok {
			return e.uses
		}
	}
	return 0
}

// TemplateUses reports how often a template entry was referenced.
func (c *Cache) TemplateUses(depth, rev int) int {
	if l := c.peek(depth); l != nil {
		if e, ok := l.templates.at(rev); ok {
			return e.uses
		}
	}
	return 0
}

// Len reports how many subtrees and templates are buffered at depth.
func (c *Cache) Len(depth int) (trees, templates int) {
	if l := c.peek(depth); l != nil {
		return l.trees.len(), l.templates.len()
	}
	return 0, 0
}
