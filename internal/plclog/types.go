package plclog

import (
	"encoding/binary"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// HeaderFixedSize covers magic, endian flag, version, id and word count.
	HeaderFixedSize = 17
	TimestampSize   = 12
	WordSize        = 2

	SentinelRecord     = 0x00
	SentinelTerminator = 0xFF

	// SupportedVersion is the only layout revision this package understands.
	SupportedVersion = 0
)

var (
	Magic = [4]byte{0x61, 0x0B, 0xE7, 0xEC}

	flagBigEndian    = [3]byte{'P', 'N', 'L'}
	flagLittleEndian = [3]byte{'L', 'N', 'P'}
)

// ByteOrder is the header-selected interpretation of multi-byte values.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

// Binary returns the matching encoding/binary implementation.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Flag returns the three byte token stored in the file header.
func (o ByteOrder) Flag() [3]byte {
	if o == LittleEndian {
		return flagLittleEndian
	}
	return flagBigEndian
}

// Header is the fixed preamble of a log file.
type Header struct {
	ByteOrder ByteOrder
	Version   uint8
	LogID     [8]byte
	WordCount uint8
	TypeList  []byte
}

// PayloadSize is the number of payload bytes carried by every record.
func (h Header) PayloadSize() int {
	return int(h.WordCount) * WordSize
}

// Size is the encoded header length including the type list.
func (h Header) Size() int64 {
	return int64(HeaderFixedSize) + int64(h.WordCount)
}

// IdentifierText renders the log id as text. Invalid UTF-8 is replaced and
// trailing NUL padding is dropped; the raw bytes stay in LogID.
func (h Header) IdentifierText() string {
	raw := strings.TrimRight(string(h.LogID[:]), "\x00")
	if utf8.ValidString(raw) {
		return raw
	}
	return strings.ToValidUTF8(raw, "\uFFFD")
}

// FieldDescriptor locates one value inside a record payload.
type FieldDescriptor struct {
	Tag    byte
	Offset int
	Width  int
}

// Column is the header token used by the tabular output, e.g. "d:4".
func (f FieldDescriptor) Column() string {
	return string(rune(f.Tag)) + ":" + strconv.Itoa(f.Offset)
}

// Layout is the ordered field list decoded from a type list.
type Layout struct {
	Fields []FieldDescriptor
}

// Span is the number of payload bytes covered by the layout.
func (l Layout) Span() int {
	if len(l.Fields) == 0 {
		return 0
	}
	last := l.Fields[len(l.Fields)-1]
	return last.Offset + last.Width
}

// Columns lists the header tokens in declaration order.
func (l Layout) Columns() []string {
	out := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		out[i] = f.Column()
	}
	return out
}

// ValueKind identifies how a field was rendered.
type ValueKind uint8

const (
	KindUnsigned ValueKind = iota
	KindSigned
	KindFloat
	KindBits
	KindHex
)

func (k ValueKind) String() string {
	switch k {
	case KindUnsigned:
		return "unsigned"
	case KindSigned:
		return "signed"
	case KindFloat:
		return "float"
	case KindBits:
		return "bits"
	default:
		return "hex"
	}
}

// Value is a decoded field.
type Value struct {
	Kind ValueKind
	Text string
}

// Record is one decoded log entry.
type Record struct {
	Offset    int64
	Timestamp Timestamp
	Payload   []byte
	Values    []Value
}

// Texts returns the rendered values in field order.
func (r Record) Texts() []string {
	out := make([]string, len(r.Values))
	for i, v := range r.Values {
		out[i] = v.Text
	}
	return out
}
