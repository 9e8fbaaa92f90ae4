package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/press"
)

func program(names ...string) *ast.Node {
	body := make([]*ast.Node, len(names))
	for i, name := range names {
		body[i] = ast.New("Identifier").WithField("name", ast.StringValue(name))
	}
	return ast.New("Program").WithSeq("body", body...)
}

func compressInto(t *testing.T, w *Writer, name string, root *ast.Node) press.Stats {
	t.Helper()
	require.NoError(t, w.BeginRun(name))
	run := press.NewRun(press.Options{Sink: w})
	_, err := run.Compress(root)
	require.NoError(t, err)
	require.NoError(t, w.FinishRun(run.Stats()))
	return run.Stats()
}

func TestWriterRecordsRuns(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	compressInto(t, w, "first", program("x", "x", "y"))
	first := w.RunID()
	st := compressInto(t, w, "second", program("a", "b", "c"))
	second := w.RunID()
	assert.NotEqual(t, first, second)

	counts, err := w.OpCounts(first)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"DIRECT": 3, "SUBTREE_REF": 1}, counts)

	counts, err = w.OpCounts(second)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"DIRECT": 4}, counts)

	var (
		nodes, direct, bytes int
		name                 string
	)
	row := w.db.QueryRow(`SELECT name, nodes, direct, bytes FROM runs WHERE id = ?`, second)
	require.NoError(t, row.Scan(&name, &nodes, &direct, &bytes))
	assert.Equal(t, "second", name)
	assert.Equal(t, st.Nodes, nodes)
	assert.Equal(t, st.Direct, direct)
	assert.Equal(t, st.Bytes, bytes)

	var ri, depth int
	row = w.db.QueryRow(`SELECT reverse_index, depth FROM records WHERE run_id = ? AND op = 'SUBTREE_REF'`, first)
	require.NoError(t, row.Scan(&ri, &depth))
	assert.Equal(t, 0, ri)
	assert.Equal(t, 1, depth)
}

func TestWriterBatches(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	w.batchSize = 2

	names := make([]string, 9)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	compressInto(t, w, "batched", program(names...))

	counts, err := w.OpCounts(w.RunID())
	require.NoError(t, err)
	assert.Equal(t, 10, counts["DIRECT"])
}

func TestRecordOutsideRun(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	assert.Error(t, w.Record(press.Event{Type: "X"}))
}

func TestRecordFailsWhenBatchCannotCommit(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	w.batchSize = 1

	require.NoError(t, w.BeginRun("orphan"))
	w.runID = 999 // no such run: the deferred foreign key fails at commit

	err = w.Record(press.Event{Type: "X"})
	assert.ErrorContains(t, err, "commit records")

	_, err = press.Compress(program("x"), press.Options{Sink: w})
	assert.Error(t, err)
}
