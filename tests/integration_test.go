package tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/treepress/api"
	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/codec"
	"github.com/agentic-research/treepress/internal/depthcache"
	"github.com/agentic-research/treepress/internal/ingest"
	"github.com/agentic-research/treepress/internal/press"
	"github.com/agentic-research/treepress/internal/report"
)

const goHandlers = `package handlers

import "net/http"

func List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
`

const pyModels = `class User:
    def __init__(self, name):
        self.name = name

class Group:
    def __init__(self, name):
        self.name = name
`

const estreeJSON = `{"type":"Program","body":[
 {"type":"ExpressionStatement","expression":{"type":"CallExpression","callee":{"type":"Identifier","name":"log"},"arguments":[{"type":"Literal","value":1}]}},
 {"type":"ExpressionStatement","expression":{"type":"CallExpression","callee":{"type":"Identifier","name":"log"},"arguments":[{"type":"Literal","value":2}]}},
 {"type":"ExpressionStatement","expression":{"type":"CallExpression","callee":{"type":"Identifier","name":"log"},"arguments":[{"type":"Literal","value":3}]}}
]}`

// setup writes a small mixed-language source tree.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"svc/handlers.go":  goHandlers,
		"svc/models.py":    pyModels,
		"ast/program.json": estreeJSON,
		"README.md":        "# ignored\n",
	}
	for p, body := range files {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	return dir
}

func TestBatchRoundTrip(t *testing.T) {
	srcDir, dstDir := setup(t), t.TempDir()
	src, dst := osfs.New(srcDir), osfs.New(dstDir)
	cfg := api.DefaultConfig()

	results, err := ingest.NewEngine(cfg, nil).CompressDir(context.Background(), src, dst, ".")
	require.NoError(t, err)
	require.Len(t, results, 3)

	langs := map[string]string{}
	for _, res := range results {
		langs[res.Path] = res.Language
		assert.Positive(t, res.Stats.Refs(), res.Path)

		data, err := os.ReadFile(filepath.Join(dstDir, res.Path+ingest.OutputExt))
		require.NoError(t, err)
		got, err := codec.Decode(data)
		require.NoError(t, err, res.Path)

		want, err := ingest.LoadTree(context.Background(), src, res.Path, cfg)
		require.NoError(t, err)
		assert.True(t, ast.Equal(want, got), res.Path)
	}
	assert.Equal(t, map[string]string{
		filepath.Join("ast", "program.json"): "json",
		filepath.Join("svc", "handlers.go"):  "go",
		filepath.Join("svc", "models.py"):    "python",
	}, langs)
}

func TestTemplatesOnRepeatedStatements(t *testing.T) {
	root, err := ingest.LiftJSON([]byte(estreeJSON), "$.body")
	require.NoError(t, err)

	run := press.NewRun(press.Options{})
	data, err := run.Compress(root)
	require.NoError(t, err)
	st := run.Stats()
	assert.Equal(t, 1, st.SubtreeRefs)
	assert.Equal(t, 1, st.TemplateRefs)
	assert.Equal(t, 1, st.TemplatesDerived)

	got, err := press.Decompress(data)
	require.NoError(t, err)
	assert.True(t, ast.Equal(root, got))
}

func TestSmallHistoryStillRoundTrips(t *testing.T) {
	srcDir := setup(t)
	src := osfs.New(srcDir)
	for _, cfg := range []press.Options{
		{Cache: depthcache.Config{SubtreeCapacity: 1}},
		{Cache: depthcache.Config{SubtreeCapacity: 2, TemplateCapacity: 1, DepthWindow: 1}},
		{Cache: depthcache.Config{SubtreeCapacity: 64, TemplateCapacity: 16, DepthWindow: 4}},
	} {
		root, err := ingest.LoadTree(context.Background(), src, filepath.Join("svc", "handlers.go"), api.DefaultConfig())
		require.NoError(t, err)
		data, err := press.Compress(root, cfg)
		require.NoError(t, err)
		got, err := press.Decompress(data)
		require.NoError(t, err)
		assert.True(t, ast.Equal(root, got), "%+v", cfg.Cache)
	}
}

func TestReportMatchesStats(t *testing.T) {
	srcDir := setup(t)
	root, err := ingest.LoadTree(context.Background(), osfs.New(srcDir), filepath.Join("svc", "models.py"), api.DefaultConfig())
	require.NoError(t, err)

	w, err := report.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	require.NoError(t, w.BeginRun("models.py"))

	run := press.NewRun(press.Options{Sink: w})
	_, err = run.Compress(root)
	require.NoError(t, err)
	require.NoError(t, w.FinishRun(run.Stats()))

	counts, err := w.OpCounts(w.RunID())
	require.NoError(t, err)
	st := run.Stats()
	assert.Equal(t, st.Direct, counts["DIRECT"])
	assert.Equal(t, st.SubtreeRefs, counts["SUBTREE_REF"])
	assert.Equal(t, st.TemplateRefs, counts["TEMPLATE_REF"])
	assert.Equal(t, st.Nodes, st.Direct+st.Refs())
}
