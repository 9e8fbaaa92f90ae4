package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/codec"
	"github.com/agentic-research/treepress/internal/press"
	"github.com/agentic-research/treepress/internal/walk"
)

const goSource = `package main

import "fmt"

func add(a, b int) int {
	return a + b
}

func sub(a, b int) int {
	return a - b
}

func main() {
	fmt.Println(add(1, 2), sub(3, 4))
}
`

const pySource = `def add(a, b):
    return a + b

def sub(a, b):
    return a - b

print(add(1, 2), sub(3, 4))
`

func findAll(t *testing.T, root *ast.Node, typ string) []*ast.Node {
	t.Helper()
	var out []*ast.Node
	err := walk.Walk(root, func(ev walk.Event, n *ast.Node, _ walk.Attrs) (walk.Directive, error) {
		if ev == walk.Begin && n.Type == typ {
			out = append(out, n)
		}
		return walk.Descend(), nil
	})
	require.NoError(t, err)
	return out
}

func liftGo(t *testing.T, src string) *ast.Node {
	t.Helper()
	lang, ok := LanguageByName("go")
	require.True(t, ok)
	root, err := ParseSource(context.Background(), lang, []byte(src))
	require.NoError(t, err)
	require.NoError(t, ast.Validate(root))
	return root
}

func TestLiftSitterGo(t *testing.T) {
	root := liftGo(t, goSource)
	assert.Equal(t, "source_file", root.Type)

	funcs := findAll(t, root, "function_declaration")
	require.Len(t, funcs, 3)
	_, ok := funcs[0].Field(TextField)
	assert.False(t, ok, "inner nodes carry no text")

	var nameNode *ast.Node
	funcs[0].ForEachChild(func(slot string, ch *ast.Node) {
		if slot == "name" {
			nameNode = ch
		}
	})
	require.NotNil(t, nameNode)
	assert.Equal(t, "identifier", nameNode.Type)
	text, ok := nameNode.Field(TextField)
	require.True(t, ok)
	assert.Equal(t, ast.StringValue("add"), text)

	bins := findAll(t, root, "binary_expression")
	require.Len(t, bins, 2)
	op, ok := bins[0].Field("operator")
	require.True(t, ok)
	assert.Equal(t, ast.StringValue("+"), op)
	op, _ = bins[1].Field("operator")
	assert.Equal(t, ast.StringValue("-"), op)
}

func TestLiftSitterRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		lang, src string
	}{
		{"go", goSource},
		{"python", pySource},
	} {
		t.Run(tc.lang, func(t *testing.T) {
			lang, ok := LanguageByName(tc.lang)
			require.True(t, ok)
			root, err := ParseSource(context.Background(), lang, []byte(tc.src))
			require.NoError(t, err)

			run := press.NewRun(press.Options{})
			data, err := run.Compress(root)
			require.NoError(t, err)
			assert.Positive(t, run.Stats().Refs(), "the two functions share most of their shape")

			got, err := codec.Decode(data)
			require.NoError(t, err)
			assert.True(t, ast.Equal(root, got))
		})
	}
}

func TestLiftSitterNil(t *testing.T) {
	_, err := LiftSitter(nil, nil)
	assert.ErrorIs(t, err, ast.ErrMalformed)
}
