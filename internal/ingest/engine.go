package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/treepress/api"
	"github.com/agentic-research/treepress/internal/press"
)

// OutputExt is appended to every compressed file name.
const OutputExt = ".tp"

// Result describes one compressed file.
type Result struct {
	Path     string
	Language string
	InBytes  int64
	OutBytes int
	Stats    press.Stats
}

// Ratio is output size over input size.
func (r Result) Ratio() float64 {
	if r.InBytes == 0 {
		return 0
	}
	return float64(r.OutBytes) / float64(r.InBytes)
}

// Engine drives batch compression. Each file gets its own run, so files
// are compressed in parallel without sharing any history.
type Engine struct {
	Config api.Config
	Logger *slog.Logger
}

func NewEngine(cfg api.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Config: cfg, Logger: logger}
}

// CompressFile lifts and compresses one file of src, writing
// <path>.tp into dst.
func (e *Engine) CompressFile(ctx context.Context, src, dst billy.Filesystem, path string) (Result, error) {
	res := Result{Path: path}
	_, lang, err := LifterFor(path, e.Config)
	if err != nil {
		return res, err
	}
	res.Language = lang
	info, err := src.Stat(path)
	if err != nil {
		return res, err
	}
	res.InBytes = info.Size()

	root, err := LoadTree(ctx, src, path, e.Config)
	if err != nil {
		return res, err
	}
	run := press.NewRun(press.Options{
		Cache:  e.Config.Cache(),
		Logger: e.Logger.With("file", path),
	})
	data, err := run.Compress(root)
	if err != nil {
		return res, fmt.Errorf("compress %s: %w", path, err)
	}
	res.OutBytes = len(data)
	res.Stats = run.Stats()

	out := path + OutputExt
	if err := dst.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return res, err
	}
	if err := util.WriteFile(dst, out, data, 0o644); err != nil {
		return res, fmt.Errorf("write %s: %w", out, err)
	}
	return res, nil
}

// CompressDir compresses every supported file under root. Unsupported
// files are skipped. The first failure cancels the remaining work.
// Results are sorted by path.
func (e *Engine) CompressDir(ctx context.Context, src, dst billy.Filesystem, root string) ([]Result, error) {
	var paths []string
	err := util.Walk(src, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if e.Config.Language == "" && !Supported(p) {
			e.Logger.Debug("skip", "file", p)
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	results := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if e.Config.Workers > 0 {
		g.SetLimit(e.Config.Workers)
	}
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.CompressFile(ctx, src, dst, p)
			if err != nil {
				return err
			}
			results[i] = res
			e.Logger.Info("compressed", "file", p, "in", res.InBytes, "out", res.OutBytes)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
