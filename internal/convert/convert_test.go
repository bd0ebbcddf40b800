package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/plclog/internal/common"
	"example.com/plclog/internal/plclog"
	"example.com/plclog/internal/source"
)

func makeLog(t *testing.T, order plclog.ByteOrder, records int, terminate bool) []byte {
	t.Helper()
	hdr, err := plclog.NewHeader(order, "press-01", 3, "u2d")
	require.NoError(t, err)
	var buf bytes.Buffer
	w, err := plclog.NewWriter(&buf, hdr)
	require.NoError(t, err)
	for i := 0; i < records; i++ {
		ts := plclog.Timestamp{Year: 2024, Month: 5, Day: 17, Weekday: 6, Hour: 8, Minute: 30, Second: uint8(i % 60), Nanosecond: uint32(i)}
		payload := make([]byte, 6)
		order.Binary().PutUint16(payload[0:2], uint16(i))
		order.Binary().PutUint32(payload[2:6], uint32(int32(-i)))
		require.NoError(t, w.WriteRecord(ts, payload))
	}
	if terminate {
		require.NoError(t, w.Close())
	}
	return buf.Bytes()
}

func writeLog(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOutputPath(t *testing.T) {
	tests := map[string]string{
		"20240517_0830.bin":          "20240517_0830.csv",
		"logs/20240517_0830_2.bin":   "logs/20240517_0830_2.csv",
		"dump":                       "dump.csv",
		"data.bin.bak":               "data.csv",
		filepath.Join("a.bin", "x"): filepath.Join("a.bin", "x") + ".csv",
	}
	for in, want := range tests {
		assert.Equal(t, want, OutputPath(in), in)
	}
}

func TestConvert(t *testing.T) {
	data := makeLog(t, plclog.BigEndian, 2, true)
	var out bytes.Buffer
	m := common.NewMetrics()
	sum, err := Convert(context.Background(), bytes.NewReader(data), &out, Options{Metrics: m})
	require.NoError(t, err)

	want := "\"press-01\"\n" +
		"Day,Date,Time,u:0,d:2\n" +
		"Fri,2024-05-17,08:30:00.000000000,0,0\n" +
		"Fri,2024-05-17,08:30:01.000000001,1,-1\n"
	assert.Equal(t, want, out.String())

	assert.True(t, sum.OK())
	assert.Equal(t, int64(2), sum.Records)
	assert.True(t, sum.Terminated)
	assert.Empty(t, sum.Warnings)
	assert.Equal(t, "press-01", sum.LogID)
	assert.Equal(t, "70726573732d3031", sum.LogIDHex)
	assert.Equal(t, "big", sum.ByteOrder)
	assert.Equal(t, "u2d", sum.TypeList)
	assert.Equal(t, []string{"u:0", "d:2"}, sum.Columns)
	assert.Equal(t, "Fri,2024-05-17,08:30:00.000000000", sum.FirstTimestamp)
	assert.Equal(t, "Fri,2024-05-17,08:30:01.000000001", sum.LastTimestamp)
	assert.Equal(t, int64(len(data)), sum.BytesRead)
	assert.Equal(t, int64(out.Len()), sum.OutputBytes)
	assert.Len(t, sum.OutputSHA256, 64)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Records)
	assert.Equal(t, int64(len(data)-1), snap.Bytes)
}

func TestConvertMissingTerminator(t *testing.T) {
	data := makeLog(t, plclog.LittleEndian, 3, false)
	var out bytes.Buffer
	var seen []plclog.Warning
	sum, err := Convert(context.Background(), bytes.NewReader(data), &out, Options{
		OnWarning: func(w plclog.Warning) { seen = append(seen, w) },
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Records)
	assert.False(t, sum.Terminated)
	require.Len(t, seen, 1)
	assert.Equal(t, plclog.WarnMissingTerminator, seen[0].Kind)
	assert.Equal(t, seen, sum.Warnings)
	assert.Equal(t, 5, strings.Count(out.String(), "\n"))
}

func TestConvertBadMagicWritesNothing(t *testing.T) {
	data := makeLog(t, plclog.BigEndian, 2, true)
	data[0] = 0
	var out bytes.Buffer
	sum, err := Convert(context.Background(), bytes.NewReader(data), &out, Options{})
	require.ErrorIs(t, err, plclog.ErrBadMagic)
	assert.Zero(t, out.Len())
	assert.Zero(t, sum.Records)
	assert.False(t, sum.OK())
}

func TestConvertFileRemovesOutputOnHeaderError(t *testing.T) {
	dir := t.TempDir()
	data := makeLog(t, plclog.BigEndian, 2, true)
	data[0] = 0
	in := writeLog(t, dir, "20240517_0830.bin", data)
	for _, compress := range []bool{false, true} {
		sum, err := ConvertFile(context.Background(), in, "", Options{Compress: compress})
		require.ErrorIs(t, err, plclog.ErrBadMagic)
		assert.Empty(t, sum.Output)
		assert.NotEmpty(t, sum.Error)
		assert.NoFileExists(t, filepath.Join(dir, "20240517_0830.csv"))
		assert.NoFileExists(t, filepath.Join(dir, "20240517_0830.csv.zst"))
	}
}

func TestConvertKeepsPartialOutput(t *testing.T) {
	data := makeLog(t, plclog.BigEndian, 3, true)
	hdr, err := plclog.NewHeader(plclog.BigEndian, "", 3, "u2d")
	require.NoError(t, err)
	data[plclog.RecordOffset(hdr, 2)] = 0x42
	var out bytes.Buffer
	sum, err := Convert(context.Background(), bytes.NewReader(data), &out, Options{})
	require.ErrorIs(t, err, plclog.ErrSentinel)
	assert.Equal(t, int64(2), sum.Records)
	assert.Equal(t, 4, strings.Count(out.String(), "\n"))
	assert.Contains(t, sum.Error, "unexpected byte")
}

func TestConvertCancelled(t *testing.T) {
	data := makeLog(t, plclog.BigEndian, 5, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Convert(ctx, bytes.NewReader(data), &bytes.Buffer{}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvertFileCompressed(t *testing.T) {
	dir := t.TempDir()
	in := writeLog(t, dir, "20240517_0830.bin", makeLog(t, plclog.BigEndian, 4, true))

	plain, err := ConvertFile(context.Background(), in, "", Options{Mmap: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20240517_0830.csv"), plain.Output)
	want, err := os.ReadFile(plain.Output)
	require.NoError(t, err)

	packed, err := ConvertFile(context.Background(), in, "", Options{Compress: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20240517_0830.csv.zst"), packed.Output)
	assert.Equal(t, plain.OutputSHA256, packed.OutputSHA256)

	raw, err := os.ReadFile(packed.Output)
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	got, err := dec.DecodeAll(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestConvertFileMissingInput(t *testing.T) {
	sum, err := ConvertFile(context.Background(), filepath.Join(t.TempDir(), "gone.bin"), "", Options{})
	var ioErr *plclog.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open", ioErr.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, sum.OK())
}

func TestBatch(t *testing.T) {
	root := t.TempDir()
	inDir := filepath.Join(root, "in")
	writeLog(t, inDir, "a/20240517_0830.bin", makeLog(t, plclog.BigEndian, 2, true))
	writeLog(t, inDir, "b/20240517_0830.bin", makeLog(t, plclog.LittleEndian, 1, false))
	writeLog(t, inDir, "c/broken.bin", []byte{0x61, 0x0B})
	writeLog(t, inDir, "notes.txt", []byte("ignored"))

	inputs, err := FindLogs(inDir)
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	outDir := filepath.Join(root, "out")
	var streamed []string
	sums, err := Batch(context.Background(), inputs, outDir, Options{}, func(s Summary) error {
		streamed = append(streamed, s.Input)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sums, 3)
	assert.Equal(t, inputs, streamed)

	assert.True(t, sums[0].OK())
	assert.Equal(t, filepath.Join(outDir, "20240517_0830.csv"), sums[0].Output)
	assert.True(t, sums[1].OK())
	assert.Equal(t, filepath.Join(outDir, "20240517_0830_2.csv"), sums[1].Output)
	assert.Len(t, sums[1].Warnings, 1)
	assert.False(t, sums[2].OK())
	assert.Contains(t, sums[2].Error, "incomplete")
	assert.Empty(t, sums[2].Output)
	assert.NoFileExists(t, filepath.Join(outDir, "broken.csv"))

	b, err := json.Marshal(sums[1])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"missing-terminator"`)
}

func TestInspect(t *testing.T) {
	data := makeLog(t, plclog.LittleEndian, 10, true)
	src := source.FromBytes("x.bin", data)
	info, err := Inspect(src)
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Records)
	assert.True(t, info.Terminated)
	assert.Empty(t, info.Warnings)
	assert.Equal(t, int64(19), info.Stride)
	assert.Equal(t, int64(1), info.TrailBytes)
	assert.Equal(t, "Fri,2024-05-17,08:30:09.000000009", info.LastTimestamp)
	assert.Equal(t, []string{"u:0 width 2", "d:2 width 4"}, info.Fields)

	info, err = Inspect(source.FromBytes("y.bin", data[:len(data)-7]))
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Records)
	assert.False(t, info.Terminated)
	require.Len(t, info.Warnings, 1)
	assert.Equal(t, int64(19-7+1), info.TrailBytes)
}

func TestInspectIgnoresDataAfterTerminator(t *testing.T) {
	data := makeLog(t, plclog.BigEndian, 4, true)
	garbage := bytes.Repeat([]byte{0x5A}, 3*19+5)
	info, err := Inspect(source.FromBytes("tail.bin", append(append([]byte{}, data...), garbage...)))
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Records)
	assert.True(t, info.Terminated)
	assert.Empty(t, info.Warnings)
	assert.Equal(t, int64(1+len(garbage)), info.TrailBytes)
	assert.Equal(t, "Fri,2024-05-17,08:30:03.000000003", info.LastTimestamp)
}

func TestInspectBadSentinel(t *testing.T) {
	data := makeLog(t, plclog.LittleEndian, 3, true)
	data[len(data)-1-19] = 0x7E
	info, err := Inspect(source.FromBytes("bad.bin", data))
	require.ErrorIs(t, err, plclog.ErrSentinel)
	assert.NotEmpty(t, info.Error)
}
