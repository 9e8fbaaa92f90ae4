package ast

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ident(name string) *Node {
	return New("Identifier").WithField("name", StringValue(name))
}

func TestNodeBuildersAndSize(t *testing.T) {
	call := New("Call").
		WithChild("callee", ident("f")).
		WithSeq("args", ident("a"), ident("b")).
		WithChild("receiver", nil)

	assert.Equal(t, 4, call.Size())
	assert.Equal(t, 3, call.NumChildren())

	var names []string
	call.ForEachChild(func(name string, _ *Node) { names = append(names, name) })
	assert.Equal(t, []string{"callee", "args.0", "args.1"}, names)

	empty := New("Block").WithSeq("body")
	require.NotNil(t, empty.Slots[0].Nodes)
	assert.Empty(t, empty.Slots[0].Nodes)
}

func TestClone(t *testing.T) {
	orig := New("Call").WithChild("callee", ident("f")).WithSeq("args", ident("a"))
	orig.Attrs = Attrs{Depth: 3, Number: 7}

	c := orig.Clone()
	assert.True(t, Equal(orig, c))
	assert.Equal(t, Attrs{}, c.Attrs)

	c.Slots[1].Nodes[0].SetField("name", StringValue("z"))
	v, _ := orig.Slots[1].Nodes[0].Field("name")
	assert.Equal(t, "a", v.Str, "clone must not share children")
}

func TestEqual(t *testing.T) {
	a := New("X").WithField("v", IntValue(1)).WithSeq("s", ident("a"))
	b := New("X").WithField("v", IntValue(1)).WithSeq("s", ident("a"))
	assert.True(t, Equal(a, b))

	b.Slots[0].Nodes[0].SetField("name", StringValue("b"))
	assert.False(t, Equal(a, b))

	c := New("X").WithField("v", IntValue(1)).WithChild("s", ident("a"))
	assert.False(t, Equal(a, c), "single slot and sequence differ")

	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(a, nil))
}

func TestSetField(t *testing.T) {
	n := ident("x")
	assert.True(t, n.SetField("name", StringValue("y")))
	assert.False(t, n.SetField("missing", NullValue()))
	v, ok := n.Field("name")
	require.True(t, ok)
	assert.Equal(t, "y", v.Str)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(New("Program").WithSeq("body", ident("x"))))

	tests := []struct {
		name string
		root *Node
	}{
		{"nil root", nil},
		{"missing type", New("")},
		{"nil sequence entry", New("Program").WithSeq("body", ident("x"), nil)},
		{"untyped child", New("Program").WithChild("expr", New(""))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.root)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestValueIdentity(t *testing.T) {
	assert.NotEqual(t, IntValue(1).Key(), StringValue("1").Key())
	assert.NotEqual(t, IntValue(1).Key(), FloatValue(1).Key())
	assert.NotEqual(t, FloatValue(0).Key(), FloatValue(math.Copysign(0, -1)).Key())
	assert.NotEqual(t, BoolValue(true).Key(), BoolValue(false).Key())
	assert.Equal(t, ListValue(IntValue(1), NullValue()).Key(), ListValue(IntValue(1), NullValue()).Key())
	assert.NotEqual(t, ListValue(StringValue("a,b")).Key(), ListValue(StringValue("a"), StringValue("b")).Key())

	nan := FloatValue(math.NaN())
	assert.True(t, nan.Equal(nan))
	assert.False(t, IntValue(2).Equal(IntValue(3)))
}

func TestString(t *testing.T) {
	n := New("Call").WithChild("callee", ident("f")).WithSeq("args")
	assert.Equal(t, `(Call callee:(Identifier{name="f"}) args:[])`, n.String())
}
