package plclog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var ErrWriterClosed = errors.New("log writer already terminated")

// Writer produces files in the logger's binary format.
type Writer struct {
	w          io.Writer
	hdr        Header
	terminated bool
}

// NewHeader builds a header from a textual id and type list. The id is
// truncated or NUL padded to 8 bytes and the type list is NUL padded to
// wordCount bytes.
func NewHeader(order ByteOrder, id string, wordCount uint8, typeList string) (Header, error) {
	if len(typeList) > int(wordCount) {
		return Header{}, fmt.Errorf("type list %q longer than %d bytes", typeList, wordCount)
	}
	hdr := Header{ByteOrder: order, WordCount: wordCount}
	copy(hdr.LogID[:], id)
	hdr.TypeList = make([]byte, wordCount)
	copy(hdr.TypeList, typeList)
	return hdr, nil
}

// EncodeHeader serializes hdr. It does not validate the type list.
func EncodeHeader(hdr Header) []byte {
	buf := make([]byte, 0, hdr.Size())
	buf = append(buf, Magic[:]...)
	flag := hdr.ByteOrder.Flag()
	buf = append(buf, flag[:]...)
	buf = append(buf, hdr.Version)
	buf = append(buf, hdr.LogID[:]...)
	buf = append(buf, hdr.WordCount)
	list := make([]byte, hdr.WordCount)
	copy(list, hdr.TypeList)
	return append(buf, list...)
}

// NewWriter writes hdr to w and returns a writer for its records.
func NewWriter(w io.Writer, hdr Header) (*Writer, error) {
	if _, err := w.Write(EncodeHeader(hdr)); err != nil {
		return nil, err
	}
	return &Writer{w: w, hdr: hdr}, nil
}

// WriteRecord appends one entry. payload must be exactly 2*wordCount bytes.
func (w *Writer) WriteRecord(ts Timestamp, payload []byte) error {
	if w.terminated {
		return ErrWriterClosed
	}
	if len(payload) != w.hdr.PayloadSize() {
		return fmt.Errorf("payload has %d bytes, want %d", len(payload), w.hdr.PayloadSize())
	}
	buf := make([]byte, 0, RecordStride(w.hdr))
	buf = append(buf, SentinelRecord)
	buf = append(buf, ts.Encode(w.hdr.ByteOrder)...)
	buf = append(buf, payload...)
	_, err := w.w.Write(buf)
	return err
}

// Close writes the terminator. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.terminated {
		return nil
	}
	w.terminated = true
	_, err := w.w.Write([]byte{SentinelTerminator})
	return err
}

// LogFileName names the file for the ten minute window containing ts.
// attempt 1 yields "20240102_1350.bin"; attempts 2..9 add "_N" the way the
// logger does when the name is taken.
func LogFileName(ts Timestamp, attempt int) string {
	base := fmt.Sprintf("%04d%02d%02d_%02d%02d", ts.Year, ts.Month, ts.Day, ts.Hour, 10*(ts.Minute/10))
	if attempt <= 1 {
		return base + ".bin"
	}
	return fmt.Sprintf("%s_%d.bin", base, attempt)
}

// SameWindow reports whether two timestamps belong to the same log file.
func SameWindow(a, b Timestamp) bool {
	return a.Year == b.Year && a.Month == b.Month && a.Day == b.Day &&
		a.Hour == b.Hour && a.Minute/10 == b.Minute/10
}

// CreateLogFile creates a new log in dir named after ts, trying the suffixed
// names when earlier ones exist.
func CreateLogFile(dir string, ts Timestamp) (*os.File, error) {
	var lastErr error
	for attempt := 1; attempt <= 9; attempt++ {
		path := filepath.Join(dir, LogFileName(ts, attempt))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
