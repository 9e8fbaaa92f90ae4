package walk

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/treepress/internal/ast"
)

func sample() *ast.Node {
	return ast.New("Program").
		WithSeq("body",
			ast.New("Call").
				WithChild("callee", ast.New("Identifier").WithField("name", ast.StringValue("f"))).
				WithSeq("args"),
			ast.New("Return").WithChild("value", nil),
		)
}

func trace(root *ast.Node, v func(ev Event, n *ast.Node, a Attrs) Directive) ([]string, error) {
	var out []string
	err := Walk(root, func(ev Event, n *ast.Node, a Attrs) (Directive, error) {
		typ := "-"
		if n != nil {
			typ = n.Type
		}
		out = append(out, fmt.Sprintf("%s %s %s d=%d #%d", ev, a.Name, typ, a.Depth, a.Number))
		if v != nil {
			return v(ev, n, a), nil
		}
		return Descend(), nil
	})
	return out, err
}

func TestWalkOrder(t *testing.T) {
	got, err := trace(sample(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"begin <root> Program d=0 #0",
		"begin body.0 Call d=1 #1",
		"begin callee Identifier d=2 #2",
		"end callee Identifier d=2 #2",
		"empty_array args - d=2 #0",
		"end body.0 Call d=1 #1",
		"begin body.1 Return d=1 #3",
		"end body.1 Return d=1 #3",
		"end <root> Program d=0 #0",
	}, got)
}

func TestWalkVisitOverridesChildren(t *testing.T) {
	extra := ast.New("Literal").WithField("value", ast.IntValue(1))
	got, err := trace(sample(), func(ev Event, n *ast.Node, a Attrs) Directive {
		if ev == Begin && n.Type == "Call" {
			return Visit([]Step{{Name: "@1", Node: extra}, {Name: "skipped", Node: nil}})
		}
		return Descend()
	})
	require.NoError(t, err)
	assert.Contains(t, got, "begin @1 Literal d=2 #2")
	assert.NotContains(t, got, "begin callee Identifier d=2 #2")
	for _, line := range got {
		assert.NotContains(t, line, "empty_array", "explicit steps never report empty arrays")
	}
}

func TestWalkSkipAndAbort(t *testing.T) {
	got, err := trace(sample(), func(ev Event, n *ast.Node, a Attrs) Directive {
		if ev == Begin && n.Type == "Call" {
			return Skip()
		}
		return Descend()
	})
	require.NoError(t, err)
	assert.Contains(t, got, "end body.0 Call d=1 #1")
	assert.NotContains(t, got, "begin callee Identifier d=2 #2")

	got, err = trace(sample(), func(ev Event, n *ast.Node, a Attrs) Directive {
		if ev == Begin && n.Type == "Call" {
			return Abort()
		}
		return Descend()
	})
	require.NoError(t, err)
	assert.Equal(t, "begin body.0 Call d=1 #1", got[len(got)-1])
}

func TestWalkVisitorError(t *testing.T) {
	boom := errors.New("boom")
	err := Walk(sample(), func(ev Event, n *ast.Node, a Attrs) (Directive, error) {
		if ev == End && n != nil && n.Type == "Identifier" {
			return Descend(), boom
		}
		return Descend(), nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestWalkMalformed(t *testing.T) {
	err := Walk(ast.New(""), func(Event, *ast.Node, Attrs) (Directive, error) { return Descend(), nil })
	assert.ErrorIs(t, err, ast.ErrMalformed)

	bad := ast.New("Program").WithSeq("body", ast.New("X"), nil)
	err = Walk(bad, func(Event, *ast.Node, Attrs) (Directive, error) { return Descend(), nil })
	assert.ErrorIs(t, err, ast.ErrMalformed)
}

func TestNumber(t *testing.T) {
	root := sample()
	require.NoError(t, Number(root))
	call := root.Slots[0].Nodes[0]
	assert.Equal(t, ast.Attrs{Depth: 1, Number: 1}, call.Attrs)
	assert.Equal(t, ast.Attrs{Depth: 2, Number: 2}, call.Slots[0].Node.Attrs)
	assert.Equal(t, ast.Attrs{Depth: 1, Number: 3}, root.Slots[0].Nodes[1].Attrs)
}
