package ingest

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/treepress/internal/ast"
)

// Lifter abstracts over JSON (data) and tree-sitter (code) input.
// It turns raw bytes into the node model the compressor consumes.
type Lifter interface {
	Lift(ctx context.Context, src []byte) (*ast.Node, error)
}

// SitterLifter lifts source code in one tree-sitter language.
type SitterLifter struct {
	Lang *sitter.Language
}

func (l SitterLifter) Lift(ctx context.Context, src []byte) (*ast.Node, error) {
	return ParseSource(ctx, l.Lang, src)
}

// JSONLifter lifts ESTree-style JSON, optionally narrowed by a JSONPath.
type JSONLifter struct {
	Selector string
}

func (l JSONLifter) Lift(_ context.Context, src []byte) (*ast.Node, error) {
	return LiftJSON(src, l.Selector)
}

var (
	_ Lifter = SitterLifter{}
	_ Lifter = JSONLifter{}
)
