package plclog

import (
	"errors"
	"fmt"
	"io"
)

// RecordStride is the encoded size of one record: sentinel, timestamp and
// payload. It is fixed once the header is known.
func RecordStride(hdr Header) int64 {
	return 1 + TimestampSize + int64(hdr.PayloadSize())
}

// RecordOffset is the file offset of record index's sentinel byte.
func RecordOffset(hdr Header, index int64) int64 {
	return hdr.Size() + index*RecordStride(hdr)
}

// RecordCount reports how many complete records fit in a file of size
// bytes, ignoring whether they are terminated.
func RecordCount(hdr Header, size int64) int64 {
	body := size - hdr.Size()
	if body <= 0 {
		return 0
	}
	return body / RecordStride(hdr)
}

// ReadHeaderAt parses the header from a random access source.
func ReadHeaderAt(ra io.ReaderAt) (Header, Layout, []Warning, error) {
	return ReadHeader(io.NewSectionReader(ra, 0, HeaderFixedSize+255))
}

// ReadRecordAt decodes record index without walking the records before it.
// The sentinel must mark a record; the terminator yields io.EOF.
func ReadRecordAt(ra io.ReaderAt, hdr Header, layout Layout, index int64) (Record, error) {
	if index < 0 {
		return Record{}, fmt.Errorf("record index %d out of range", index)
	}
	off := RecordOffset(hdr, index)
	buf := make([]byte, RecordStride(hdr))
	n, err := ra.ReadAt(buf, off)
	if n == 0 && errors.Is(err, io.EOF) {
		return Record{}, io.EOF
	}
	if n > 0 && buf[0] == SentinelTerminator {
		return Record{}, io.EOF
	}
	if n < len(buf) {
		if err != nil && !errors.Is(err, io.EOF) {
			return Record{}, &IOError{Name: sourceNameAt(ra), Op: "read record", Err: err}
		}
		return Record{}, formatErr(off+int64(n), ErrTruncated, "record %d", index)
	}
	if buf[0] != SentinelRecord {
		return Record{}, formatErr(off, ErrSentinel, "0x%02X", buf[0])
	}
	ts, err := DecodeTimestamp(hdr.ByteOrder, buf[1:1+TimestampSize])
	if err != nil {
		return Record{}, &FormatError{Offset: off + 5, Err: err}
	}
	payload := buf[1+TimestampSize:]
	values, err := layout.Decode(hdr.ByteOrder, payload)
	if err != nil {
		return Record{}, &FormatError{Offset: off + 1 + TimestampSize, Err: err}
	}
	return Record{Offset: off, Timestamp: ts, Payload: payload, Values: values}, nil
}

func sourceNameAt(ra io.ReaderAt) string {
	if n, ok := ra.(namer); ok {
		return n.Name()
	}
	return ""
}
