package plclog

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, order ByteOrder, list string, payload []byte) []string {
	t.Helper()
	layout, err := ParseTypeList([]byte(list))
	require.NoError(t, err)
	values, err := layout.Decode(order, payload)
	require.NoError(t, err)
	return Record{Values: values}.Texts()
}

func TestDecodeSignedPair(t *testing.T) {
	got := decodeAll(t, BigEndian, "dd", []byte{0x00, 0x01, 0xFF, 0xFF})
	assert.Equal(t, []string{"1", "-1"}, got)
}

func TestDecodeBitsSingleWord(t *testing.T) {
	got := decodeAll(t, BigEndian, "1b", []byte{0x00, 0xAB})
	require.Len(t, got, 1)
	assert.Equal(t, "0000_0000_1010_1011", got[0])
	assert.Len(t, got[0], 10*2-1)
}

func TestDecodeValueByTag(t *testing.T) {
	tests := []struct {
		name  string
		order ByteOrder
		tag   byte
		raw   []byte
		want  string
		kind  ValueKind
	}{
		{name: "unsigned be", order: BigEndian, tag: 'u', raw: []byte{0x12, 0x34}, want: "4660", kind: KindUnsigned},
		{name: "unsigned le", order: LittleEndian, tag: 'u', raw: []byte{0x34, 0x12}, want: "4660", kind: KindUnsigned},
		{name: "unsigned max dword", order: BigEndian, tag: 'u', raw: []byte{0xFF, 0xFF, 0xFF, 0xFF}, want: "4294967295", kind: KindUnsigned},
		{name: "signed negative le", order: LittleEndian, tag: 'd', raw: []byte{0xFE, 0xFF}, want: "-2", kind: KindSigned},
		{name: "signed min int32", order: BigEndian, tag: 'd', raw: []byte{0x80, 0x00, 0x00, 0x00}, want: "-2147483648", kind: KindSigned},
		{name: "signed int64", order: BigEndian, tag: 'd', raw: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x85}, want: "-123", kind: KindSigned},
		{name: "half float", order: BigEndian, tag: 'f', raw: []byte{0x3E, 0x00}, want: "1.5", kind: KindFloat},
		{name: "single float", order: BigEndian, tag: 'f', raw: []byte{0x3D, 0xCC, 0xCC, 0xCD}, want: "0.1", kind: KindFloat},
		{name: "single float le", order: LittleEndian, tag: 'f', raw: []byte{0xCD, 0xCC, 0xCC, 0x3D}, want: "0.1", kind: KindFloat},
		{name: "double exponent", order: BigEndian, tag: 'f', raw: f64(123456789.0), want: "1.2345679e+08", kind: KindFloat},
		{name: "double small", order: BigEndian, tag: 'f', raw: f64(-2.5e-7), want: "-2.5e-07", kind: KindFloat},
		{name: "bits le", order: LittleEndian, tag: 'b', raw: []byte{0x01, 0x80}, want: "1000_0000_0000_0001", kind: KindBits},
		{name: "bits dword", order: BigEndian, tag: 'b', raw: []byte{0xF0, 0x0F, 0x00, 0x01}, want: "1111_0000_0000_1111_0000_0000_0000_0001", kind: KindBits},
		{name: "ignored field", order: BigEndian, tag: 'x', raw: []byte{0x00, 0x01, 0xFF, 0xFF}, want: "0001 ffff", kind: KindHex},
		{name: "unknown tag", order: LittleEndian, tag: '?', raw: []byte{0xAB, 0xCD}, want: "abcd", kind: KindHex},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fd := FieldDescriptor{Tag: tc.tag, Width: len(tc.raw)}
			v, err := DecodeValue(tc.order, fd, tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.Text)
			assert.Equal(t, tc.kind, v.Kind)
		})
	}
}

func TestDecodeValueWideIntegers(t *testing.T) {
	ones := bytes.Repeat([]byte{0xFF}, 18)
	v, err := DecodeValue(BigEndian, FieldDescriptor{Tag: 'u', Width: 18}, ones)
	require.NoError(t, err)
	assert.Equal(t, "22300745198530623141535718272648361505980415", v.Text)

	v, err = DecodeValue(BigEndian, FieldDescriptor{Tag: 'd', Width: 18}, ones)
	require.NoError(t, err)
	assert.Equal(t, "-1", v.Text)

	raw := make([]byte, 10)
	raw[0] = 0x05
	v, err = DecodeValue(LittleEndian, FieldDescriptor{Tag: 'd', Width: 10}, raw)
	require.NoError(t, err)
	assert.Equal(t, "5", v.Text)
}

func TestDecodeFloatRejectsWidth(t *testing.T) {
	for _, width := range []int{6, 10, 12} {
		_, err := DecodeValue(BigEndian, FieldDescriptor{Tag: 'f', Width: width}, make([]byte, width))
		assert.ErrorIs(t, err, ErrFloatWidth)
	}
}

func TestDecodeValueWidthMismatch(t *testing.T) {
	_, err := DecodeValue(BigEndian, FieldDescriptor{Tag: 'u', Width: 4}, []byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeByteOrderSensitivity(t *testing.T) {
	payload := []byte{0x00, 0x01, 0x12, 0x34, 0x56, 0x78}
	be := decodeAll(t, BigEndian, "u2d", payload)
	le := decodeAll(t, LittleEndian, "u2d", payload)
	assert.Equal(t, []string{"1", "305419896"}, be)
	assert.Equal(t, []string{"256", "2018915346"}, le)
	assert.NotEqual(t, be, le)

	// Palindromic words read the same either way.
	pal := []byte{0x7F, 0x7F}
	assert.Equal(t, decodeAll(t, BigEndian, "u", pal), decodeAll(t, LittleEndian, "u", pal))
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "-0"},
		{100, "100"},
		{12345678.9, "12345679"},
		{1e8, "1e+08"},
		{0.0001, "0.0001"},
		{0.00001, "1e-05"},
		{math.Pi, "3.1415927"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
		{math.NaN(), "nan"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatFloat(tc.in))
	}
}

func f64(v float64) []byte {
	buf := make([]byte, 8)
	BigEndian.Binary().PutUint64(buf, math.Float64bits(v))
	return buf
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnsigned, KindOf('u'))
	assert.Equal(t, KindSigned, KindOf('d'))
	assert.Equal(t, KindFloat, KindOf('f'))
	assert.Equal(t, KindBits, KindOf('b'))
	assert.Equal(t, KindHex, KindOf('x'))
	assert.Equal(t, KindHex, KindOf('q'))
}
