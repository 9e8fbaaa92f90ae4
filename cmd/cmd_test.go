package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestCompressDecompress(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tree.json")
	src := `{"type":"Program","body":[{"type":"Identifier","name":"x"},{"type":"Identifier","name":"x"}]}`
	require.NoError(t, os.WriteFile(input, []byte(src), 0o644))

	report := filepath.Join(dir, "report.db")
	out := execute(t, "compress", input, "--stats", "--report", report)
	assert.Contains(t, out, "subtree_refs=1")
	assert.Contains(t, out, "Wrote "+input+".tp")
	_, err := os.Stat(report)
	require.NoError(t, err)

	doc, err := oj.ParseString(execute(t, "decompress", input+".tp"))
	require.NoError(t, err)
	want, err := oj.ParseString(src)
	require.NoError(t, err)
	assert.Equal(t, want, doc)

	out = execute(t, "dump", input+".tp")
	assert.Contains(t, out, "body.1: Identifier")
}

func TestBatch(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.json"), []byte(`{"type":"A","items":[]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "skip.txt"), []byte("-"), 0o644))

	out := execute(t, "batch", src, dst, "--workers", "1")
	assert.Contains(t, out, "1 files")
	_, err := os.Stat(filepath.Join(dst, "a.json.tp"))
	assert.NoError(t, err)
}
