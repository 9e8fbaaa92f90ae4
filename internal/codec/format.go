// Package codec reads and writes the treepress binary format: a header, a
// string table, and a single pre-order node stream whose references are
// resolved against a per-depth history that encoder and decoder build in
// the same order.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/agentic-research/treepress/internal/depthcache"
)

const (
	// Magic is "TPRS" in little-endian byte order.
	Magic   = 0x53525054
	Version = 1
)

// Op is the high nibble of a record's first byte.
type Op uint8

const (
	OpDirect      Op = 1
	OpSubtreeRef  Op = 2
	OpTemplateRef Op = 3
	OpFieldMap    Op = 4
	OpEmptyArray  Op = 5
)

func (o Op) String() string {
	switch o {
	case OpDirect:
		return "DIRECT"
	case OpSubtreeRef:
		return "SUBTREE_REF"
	case OpTemplateRef:
		return "TEMPLATE_REF"
	case OpFieldMap:
		return "FIELD_MAP"
	case OpEmptyArray:
		return "EMPTY_ARRAY"
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// String table value tags.
const (
	tagNull  byte = 0
	tagFalse byte = 1
	tagTrue  byte = 2
	tagInt   byte = 3
	tagFloat byte = 4
	tagStr   byte = 5
	tagList  byte = 6
)

// Slot descriptor kinds.
const (
	slotNode byte = 0
	slotNull byte = 1
	slotSeq  byte = 2
)

// nibbleMax marks a count that continues in a trailing varint.
const nibbleMax = 15

var (
	ErrBadMagic           = errors.New("codec: bad magic")
	ErrUnsupportedVersion = errors.New("codec: unsupported version")
	ErrTruncated          = errors.New("codec: truncated input")
	ErrCorrupt            = errors.New("codec: corrupt stream")
)

// FormatError locates a decoding failure.
type FormatError struct {
	Offset int
	Op     string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("codec: offset %d (%s): %v", e.Offset, e.Op, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Header opens every stream. The capacities configure the decoder's
// history so it mirrors the encoder's.
type Header struct {
	Magic            uint32
	Version          uint8
	SubtreeCapacity  int
	TemplateCapacity int
}

func appendHeader(buf []byte, h Header) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, h.Magic)
	buf = append(buf, h.Version)
	buf = binary.AppendUvarint(buf, uint64(h.SubtreeCapacity))
	return binary.AppendUvarint(buf, uint64(h.TemplateCapacity))
}

// ReadHeader parses the header at the start of data and returns the
// number of bytes consumed.
func ReadHeader(data []byte) (Header, int, error) {
	if len(data) < 5 {
		return Header{}, 0, &FormatError{Offset: 0, Op: "header", Err: ErrTruncated}
	}
	h := Header{
		Magic:   binary.LittleEndian.Uint32(data[0:4]),
		Version: data[4],
	}
	if h.Magic != Magic {
		return h, 0, &FormatError{Offset: 0, Op: "header", Err: fmt.Errorf("%w: %#x", ErrBadMagic, h.Magic)}
	}
	if h.Version != Version {
		return h, 0, &FormatError{Offset: 4, Op: "header", Err: fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)}
	}
	off := 5
	for _, dst := range []*int{&h.SubtreeCapacity, &h.TemplateCapacity} {
		v, n := binary.Uvarint(data[off:])
		if n <= 0 || v > depthcache.MaxCapacity {
			return h, 0, &FormatError{Offset: off, Op: "header", Err: fmt.Errorf("%w: capacity out of range", ErrCorrupt)}
		}
		*dst = int(v)
		off += n
	}
	if h.SubtreeCapacity == 0 {
		return h, 0, &FormatError{Offset: 5, Op: "header", Err: fmt.Errorf("%w: zero subtree capacity", ErrCorrupt)}
	}
	return h, off, nil
}
