package plclog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// State is a position in the record stream state machine.
type State uint8

const (
	StateHeader State = iota
	StateAwaitingSentinel
	StateReadingTimestamp
	StateReadingPayload
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateHeader:
		return "header"
	case StateAwaitingSentinel:
		return "awaiting-sentinel"
	case StateReadingTimestamp:
		return "reading-timestamp"
	case StateReadingPayload:
		return "reading-payload"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

const defaultBufferSize = 64 << 10

// Decoder walks a log file one transition at a time. It is not safe for
// concurrent use.
type Decoder struct {
	r     *countingReader
	state State
	err   error

	hdr    Header
	layout Layout

	warnings  []Warning
	onWarning func(Warning)

	recStart   int64
	ts         Timestamp
	pending    Record
	ready      bool
	records    int64
	terminated bool
}

// NewDecoder reads from r, buffering it unless it already is a *bufio.Reader.
func NewDecoder(r io.Reader) *Decoder {
	name := sourceName(r)
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, defaultBufferSize)
	}
	return &Decoder{r: &countingReader{r: br, name: name}}
}

// OnWarning registers a callback invoked as each warning is raised.
func (d *Decoder) OnWarning(fn func(Warning)) {
	d.onWarning = fn
}

// State reports the current state.
func (d *Decoder) State() State { return d.state }

// Offset is the number of bytes consumed so far.
func (d *Decoder) Offset() int64 { return d.r.n }

// Records is the number of records decoded so far.
func (d *Decoder) Records() int64 { return d.records }

// Terminated reports whether the explicit end marker was read.
func (d *Decoder) Terminated() bool { return d.terminated }

// Warnings returns every warning raised so far.
func (d *Decoder) Warnings() []Warning {
	out := make([]Warning, len(d.warnings))
	copy(out, d.warnings)
	return out
}

// Err returns the fatal error that moved the decoder to StateFailed.
func (d *Decoder) Err() error { return d.err }

// Header parses the header if that has not happened yet.
func (d *Decoder) Header() (Header, Layout, error) {
	if d.state == StateHeader {
		if err := d.Step(); err != nil {
			return Header{}, Layout{}, err
		}
	}
	if d.err != nil {
		return Header{}, Layout{}, d.err
	}
	return d.hdr, d.layout, nil
}

// Next returns the next record, or io.EOF once the stream has ended.
func (d *Decoder) Next() (Record, error) {
	for {
		switch d.state {
		case StateDone:
			return Record{}, io.EOF
		case StateFailed:
			return Record{}, d.err
		}
		if err := d.Step(); err != nil {
			return Record{}, err
		}
		if d.ready {
			d.ready = false
			rec := d.pending
			d.pending = Record{}
			return rec, nil
		}
	}
}

// Step performs exactly one state transition. In StateDone it returns
// io.EOF and in StateFailed the fatal error.
func (d *Decoder) Step() error {
	switch d.state {
	case StateHeader:
		return d.readHeader()
	case StateAwaitingSentinel:
		return d.readSentinel()
	case StateReadingTimestamp:
		return d.readTimestamp()
	case StateReadingPayload:
		return d.readPayload()
	case StateDone:
		return io.EOF
	default:
		return d.err
	}
}

func (d *Decoder) readHeader() error {
	hdr, layout, warnings, err := ReadHeader(d.r)
	for _, w := range warnings {
		d.warn(w)
	}
	if err != nil {
		return d.fail(err)
	}
	d.hdr, d.layout = hdr, layout
	d.state = StateAwaitingSentinel
	return nil
}

func (d *Decoder) readSentinel() error {
	var b [1]byte
	pos := d.r.n
	n, err := io.ReadFull(d.r, b[:])
	if n == 0 {
		if errors.Is(err, io.EOF) {
			d.warn(Warning{
				Kind:    WarnMissingTerminator,
				Offset:  pos,
				Message: fmt.Sprintf("%s is missing entries: stream ended at %d without a terminator", d.label(), pos),
			})
			d.state = StateDone
			return nil
		}
		return d.fail(&IOError{Name: d.r.name, Op: "read sentinel", Err: err})
	}
	switch b[0] {
	case SentinelRecord:
		d.recStart = pos
		d.state = StateReadingTimestamp
		return nil
	case SentinelTerminator:
		d.terminated = true
		d.state = StateDone
		return nil
	default:
		return d.fail(formatErr(pos, ErrSentinel, "0x%02X", b[0]))
	}
}

func (d *Decoder) readTimestamp() error {
	pos := d.r.n
	buf := make([]byte, TimestampSize)
	if err := readFull(d.r, buf, pos, "timestamp"); err != nil {
		return d.fail(err)
	}
	ts, err := DecodeTimestamp(d.hdr.ByteOrder, buf)
	if err != nil {
		return d.fail(&FormatError{Offset: pos + 4, Err: err})
	}
	d.ts = ts
	d.state = StateReadingPayload
	return nil
}

func (d *Decoder) readPayload() error {
	pos := d.r.n
	payload := make([]byte, d.hdr.PayloadSize())
	if err := readFull(d.r, payload, pos, "payload"); err != nil {
		return d.fail(err)
	}
	values, err := d.layout.Decode(d.hdr.ByteOrder, payload)
	if err != nil {
		return d.fail(&FormatError{Offset: pos, Err: err})
	}
	d.pending = Record{Offset: d.recStart, Timestamp: d.ts, Payload: payload, Values: values}
	d.ready = true
	d.records++
	d.state = StateAwaitingSentinel
	return nil
}

func (d *Decoder) warn(w Warning) {
	d.warnings = append(d.warnings, w)
	if d.onWarning != nil {
		d.onWarning(w)
	}
}

func (d *Decoder) fail(err error) error {
	d.state = StateFailed
	d.err = err
	return err
}

func (d *Decoder) label() string {
	if d.r.name != "" {
		return d.r.name
	}
	return "log"
}

type countingReader struct {
	r    io.Reader
	n    int64
	name string
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) Name() string { return c.name }
