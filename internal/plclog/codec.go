package plclog

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

type decodeFunc func(order ByteOrder, raw []byte) (Value, error)

// Tags without an entry fall back to a hex dump, including 'x' which marks
// an ignored field.
var decoders = map[byte]decodeFunc{
	'u': decodeUnsigned,
	'd': decodeSigned,
	'f': decodeFloat,
	'b': decodeBits,
}

// KindOf reports how fields tagged tag are rendered.
func KindOf(tag byte) ValueKind {
	switch tag {
	case 'u':
		return KindUnsigned
	case 'd':
		return KindSigned
	case 'f':
		return KindFloat
	case 'b':
		return KindBits
	default:
		return KindHex
	}
}

// DecodeValue renders raw, which must be exactly fd.Width bytes long.
func DecodeValue(order ByteOrder, fd FieldDescriptor, raw []byte) (Value, error) {
	if len(raw) != fd.Width {
		return Value{}, fmt.Errorf("%w: field %s has %d bytes, want %d", ErrTruncated, fd.Column(), len(raw), fd.Width)
	}
	if dec, ok := decoders[fd.Tag]; ok {
		return dec(order, raw)
	}
	return decodeHex(raw), nil
}

// Decode slices a payload per field and decodes every value.
func (l Layout) Decode(order ByteOrder, payload []byte) ([]Value, error) {
	if len(payload) < l.Span() {
		return nil, fmt.Errorf("%w: payload has %d bytes, layout spans %d", ErrTruncated, len(payload), l.Span())
	}
	values := make([]Value, len(l.Fields))
	for i, fd := range l.Fields {
		v, err := DecodeValue(order, fd, payload[fd.Offset:fd.Offset+fd.Width])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Column(), err)
		}
		values[i] = v
	}
	return values, nil
}

// mostSignificantFirst returns raw ordered big-endian, copying only when the
// input is little-endian.
func mostSignificantFirst(order ByteOrder, raw []byte) []byte {
	if order == BigEndian {
		return raw
	}
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[len(raw)-1-i] = b
	}
	return out
}

func uintOf(be []byte) uint64 {
	var v uint64
	for _, b := range be {
		v = v<<8 | uint64(b)
	}
	return v
}

func decodeUnsigned(order ByteOrder, raw []byte) (Value, error) {
	be := mostSignificantFirst(order, raw)
	if len(be) <= 8 {
		return Value{Kind: KindUnsigned, Text: strconv.FormatUint(uintOf(be), 10)}, nil
	}
	return Value{Kind: KindUnsigned, Text: new(big.Int).SetBytes(be).String()}, nil
}

func decodeSigned(order ByteOrder, raw []byte) (Value, error) {
	be := mostSignificantFirst(order, raw)
	if len(be) == 0 {
		return Value{Kind: KindSigned, Text: "0"}, nil
	}
	if len(be) <= 8 {
		shift := uint(64 - 8*len(be))
		v := int64(uintOf(be)<<shift) >> shift
		return Value{Kind: KindSigned, Text: strconv.FormatInt(v, 10)}, nil
	}
	x := new(big.Int).SetBytes(be)
	if be[0]&0x80 != 0 {
		x.Sub(x, new(big.Int).Lsh(big.NewInt(1), uint(8*len(be))))
	}
	return Value{Kind: KindSigned, Text: x.String()}, nil
}

func decodeFloat(order ByteOrder, raw []byte) (Value, error) {
	bo := order.Binary()
	var f float64
	switch len(raw) {
	case 2:
		f = float64(float16.Frombits(bo.Uint16(raw)).Float32())
	case 4:
		f = float64(math.Float32frombits(bo.Uint32(raw)))
	case 8:
		f = math.Float64frombits(bo.Uint64(raw))
	default:
		return Value{}, fmt.Errorf("%w: %d bytes (want 2, 4 or 8)", ErrFloatWidth, len(raw))
	}
	return Value{Kind: KindFloat, Text: FormatFloat(f)}, nil
}

// FormatFloat renders f with 8 significant digits in the shorter of fixed
// and exponent notation, trailing zeros removed.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', 8, 64)
}

// decodeBits renders every bit of the field, most significant first, with an
// underscore between nibbles: 10*width-1 characters in total.
func decodeBits(order ByteOrder, raw []byte) (Value, error) {
	be := mostSignificantFirst(order, raw)
	if len(be) == 0 {
		return Value{Kind: KindBits}, nil
	}
	var b strings.Builder
	b.Grow(10*len(be) - 1)
	for i, octet := range be {
		if i > 0 {
			b.WriteByte('_')
		}
		fmt.Fprintf(&b, "%04b_%04b", octet>>4, octet&0x0F)
	}
	return Value{Kind: KindBits, Text: b.String()}, nil
}

// decodeHex dumps the raw bytes in file order, grouped per word from the
// right: "00ab 12cd".
func decodeHex(raw []byte) Value {
	var b strings.Builder
	for i := range raw {
		if i > 0 && (len(raw)-i)%WordSize == 0 {
			b.WriteByte(' ')
		}
		b.WriteString(hex.EncodeToString(raw[i : i+1]))
	}
	return Value{Kind: KindHex, Text: b.String()}
}
