package ast

import (
	"math"
	"strconv"
	"strings"
)

// Kind tags the scalar payload carried by a Value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	List
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case List:
		return "list"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a leaf field value. Lists hold scalar items and are the only
// composite form; the string table registers their items individually.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Items []Value
}

func NullValue() Value               { return Value{Kind: Null} }
func BoolValue(b bool) Value         { return Value{Kind: Bool, Bool: b} }
func IntValue(i int64) Value         { return Value{Kind: Int, Int: i} }
func FloatValue(f float64) Value     { return Value{Kind: Float, Float: f} }
func StringValue(s string) Value     { return Value{Kind: String, Str: s} }
func ListValue(items ...Value) Value { return Value{Kind: List, Items: items} }

// Key returns the identity of the value. Two values with the same key are
// interchangeable in the encoded stream; floats compare by bit pattern so
// that -0 and NaN payloads survive a round trip.
func (v Value) Key() string {
	var b strings.Builder
	v.writeKey(&b)
	return b.String()
}

func (v Value) writeKey(b *strings.Builder) {
	b.WriteByte(byte('0' + v.Kind))
	switch v.Kind {
	case Bool:
		if v.Bool {
			b.WriteByte('t')
		} else {
			b.WriteByte('f')
		}
	case Int:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case Float:
		b.WriteString(strconv.FormatUint(math.Float64bits(v.Float), 16))
	case String:
		b.WriteString(strconv.Itoa(len(v.Str)))
		b.WriteByte(':')
		b.WriteString(v.Str)
	case List:
		b.WriteString(strconv.Itoa(len(v.Items)))
		b.WriteByte('[')
		for _, it := range v.Items {
			it.writeKey(b)
			b.WriteByte(',')
		}
		b.WriteByte(']')
	}
}

// Equal reports whether v and o have the same identity.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Null:
		return true
	case Bool:
		return v.Bool == o.Bool
	case Int:
		return v.Int == o.Int
	case Float:
		return math.Float64bits(v.Float) == math.Float64bits(o.Float)
	case String:
		return v.Str == o.Str
	case List:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(v.Bool)
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case String:
		return strconv.Quote(v.Str)
	case List:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return "?"
}
