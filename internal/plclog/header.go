package plclog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ParseHeader decodes a header from buf, which must hold at least the fixed
// part and the full type list. The returned warnings are non-fatal.
func ParseHeader(buf []byte) (Header, Layout, []Warning, error) {
	var hdr Header
	if len(buf) < HeaderFixedSize {
		return hdr, Layout{}, nil, formatErr(int64(len(buf)), ErrTruncated, "header")
	}
	if !bytes.Equal(buf[0:4], Magic[:]) {
		return hdr, Layout{}, nil, formatErr(0, ErrBadMagic, "magic % x", buf[0:4])
	}
	order, err := parseEndianFlag(buf[4:7])
	if err != nil {
		return hdr, Layout{}, nil, err
	}
	hdr.ByteOrder = order
	hdr.Version = buf[7]
	copy(hdr.LogID[:], buf[8:16])
	hdr.WordCount = buf[16]

	var warnings []Warning
	if hdr.Version > SupportedVersion {
		warnings = append(warnings, Warning{
			Kind:    WarnVersion,
			Offset:  7,
			Message: fmt.Sprintf("unsupported log version %d", hdr.Version),
		})
	}

	end := HeaderFixedSize + int(hdr.WordCount)
	if len(buf) < end {
		return hdr, Layout{}, warnings, formatErr(int64(len(buf)), ErrTruncated, "type list")
	}
	hdr.TypeList = append([]byte(nil), buf[HeaderFixedSize:end]...)

	layout, err := ParseTypeList(hdr.TypeList)
	if err != nil {
		return hdr, Layout{}, warnings, err
	}
	if err := layout.CheckSpan(hdr.WordCount); err != nil {
		return hdr, Layout{}, warnings, fmt.Errorf("type list %q: %w", hdr.TypeList, err)
	}
	if err := layout.CheckFloatWidths(); err != nil {
		return hdr, Layout{}, warnings, err
	}
	return hdr, layout, warnings, nil
}

// ReadHeader consumes exactly the header bytes from r.
func ReadHeader(r io.Reader) (Header, Layout, []Warning, error) {
	buf := make([]byte, HeaderFixedSize, HeaderFixedSize+255)
	if err := readFull(r, buf[:4], 0, "magic"); err != nil {
		return Header{}, Layout{}, nil, err
	}
	if !bytes.Equal(buf[0:4], Magic[:]) {
		return Header{}, Layout{}, nil, formatErr(0, ErrBadMagic, "magic % x", buf[0:4])
	}
	if err := readFull(r, buf[4:7], 4, "endian flag"); err != nil {
		return Header{}, Layout{}, nil, err
	}
	if _, err := parseEndianFlag(buf[4:7]); err != nil {
		return Header{}, Layout{}, nil, err
	}
	if err := readFull(r, buf[7:], 7, "header"); err != nil {
		return Header{}, Layout{}, nil, err
	}
	words := int(buf[16])
	buf = buf[:HeaderFixedSize+words]
	if err := readFull(r, buf[HeaderFixedSize:], HeaderFixedSize, "type list"); err != nil {
		return Header{}, Layout{}, nil, err
	}
	return ParseHeader(buf)
}

func parseEndianFlag(flag []byte) (ByteOrder, error) {
	switch {
	case bytes.Equal(flag, flagBigEndian[:]):
		return BigEndian, nil
	case bytes.Equal(flag, flagLittleEndian[:]):
		return LittleEndian, nil
	default:
		return 0, formatErr(4, ErrEndianFlag, "%q", flag)
	}
}

// readFull reads len(buf) bytes, mapping short reads to ErrTruncated and
// anything else to an IOError.
func readFull(r io.Reader, buf []byte, offset int64, what string) error {
	n, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return formatErr(offset+int64(n), ErrTruncated, "%s", what)
	}
	return &IOError{Name: sourceName(r), Op: "read " + what, Err: err}
}

type namer interface {
	Name() string
}

func sourceName(r io.Reader) string {
	if n, ok := r.(namer); ok {
		return n.Name()
	}
	return ""
}
