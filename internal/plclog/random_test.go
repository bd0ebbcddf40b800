package plclog

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGeometry(t *testing.T) {
	hdr, err := NewHeader(BigEndian, "geo", 3, "u2d")
	require.NoError(t, err)
	assert.Equal(t, int64(19), RecordStride(hdr))
	assert.Equal(t, int64(20), RecordOffset(hdr, 0))
	assert.Equal(t, int64(20+2*19), RecordOffset(hdr, 2))
	assert.Equal(t, int64(0), RecordCount(hdr, 10))
	assert.Equal(t, int64(2), RecordCount(hdr, 20+2*19+1))
}

func TestReadRecordAt(t *testing.T) {
	entries := make([]testEntry, 5)
	for i := range entries {
		ts := sampleTS
		ts.Second = uint8(i)
		entries[i] = testEntry{ts: ts, payload: []byte{0, byte(i), 0xFF, 0xFF}}
	}
	data := buildLog(t, LittleEndian, "ra", 2, "ud", entries, true)
	ra := bytes.NewReader(data)

	hdr, layout, warnings, err := ReadHeaderAt(ra)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	rec, err := ReadRecordAt(ra, hdr, layout, 3)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), rec.Timestamp.Second)
	assert.Equal(t, RecordOffset(hdr, 3), rec.Offset)
	assert.Equal(t, []string{"768", "-1"}, rec.Texts())

	_, err = ReadRecordAt(ra, hdr, layout, 5)
	assert.ErrorIs(t, err, io.EOF)
	_, err = ReadRecordAt(ra, hdr, layout, 6)
	assert.ErrorIs(t, err, io.EOF)
	_, err = ReadRecordAt(ra, hdr, layout, -1)
	assert.Error(t, err)
}

func TestReadRecordAtMatchesDecoder(t *testing.T) {
	data := buildLog(t, BigEndian, "cmp", 2, "dd", threeEntries(), false)
	d := NewDecoder(bytes.NewReader(data))
	seq, err := collect(t, d)
	require.NoError(t, err)

	ra := bytes.NewReader(data)
	hdr, layout, _, err := ReadHeaderAt(ra)
	require.NoError(t, err)
	for i, want := range seq {
		got, err := ReadRecordAt(ra, hdr, layout, int64(i))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReadRecordAtFailures(t *testing.T) {
	data := buildLog(t, BigEndian, "bad", 1, "u", []testEntry{{ts: sampleTS, payload: []byte{0, 1}}}, true)
	ra := bytes.NewReader(data)
	hdr, layout, _, err := ReadHeaderAt(ra)
	require.NoError(t, err)

	truncated := bytes.NewReader(data[:len(data)-3])
	_, err = ReadRecordAt(truncated, hdr, layout, 0)
	assert.ErrorIs(t, err, ErrTruncated)

	corrupt := append([]byte(nil), data...)
	corrupt[hdr.Size()] = 0x42
	_, err = ReadRecordAt(bytes.NewReader(corrupt), hdr, layout, 0)
	require.ErrorIs(t, err, ErrSentinel)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, hdr.Size(), fe.Offset)
}
