package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/treepress/api"
	"github.com/agentic-research/treepress/internal/ast"
)

// ErrUnsupported is returned for files no lifter handles.
var ErrUnsupported = errors.New("ingest: unsupported input")

// LifterFor picks the lifter for path, honouring cfg.Language and
// cfg.Select.
func LifterFor(path string, cfg api.Config) (Lifter, string, error) {
	name, lang, ok := detect(path, cfg.Language)
	if !ok {
		if cfg.Language != "" {
			return nil, "", fmt.Errorf("%w: language %q", ErrUnsupported, cfg.Language)
		}
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	if name == LangJSON {
		return JSONLifter{Selector: cfg.Select}, name, nil
	}
	return SitterLifter{Lang: lang}, name, nil
}

// LoadTree reads path from fs and lifts it.
func LoadTree(ctx context.Context, fs billy.Filesystem, path string, cfg api.Config) (*ast.Node, error) {
	lifter, _, err := LifterFor(path, cfg)
	if err != nil {
		return nil, err
	}
	src, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	root, err := lifter.Lift(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("lift %s: %w", path, err)
	}
	return root, nil
}
