package plclog

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat matches every *FormatError.
	ErrFormat = errors.New("malformed log file")

	ErrBadMagic     = errors.New("not a valid log file")
	ErrEndianFlag   = errors.New("invalid endian flag")
	ErrTypeList     = errors.New("invalid type list")
	ErrTypeListSpan = errors.New("type list does not span the declared word count")
	ErrSentinel     = errors.New("unexpected byte")
	ErrTruncated    = errors.New("incomplete")
	ErrFloatWidth   = errors.New("unsupported float width")
	ErrWeekday      = errors.New("weekday code out of range")
)

// FormatError reports a fatal violation of the file layout at Offset.
type FormatError struct {
	Offset int64
	Err    error
	Detail string
}

func (e *FormatError) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at %d", msg, e.Offset)
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatErr(offset int64, cause error, format string, args ...interface{}) *FormatError {
	return &FormatError{Offset: offset, Err: cause, Detail: fmt.Sprintf(format, args...)}
}

// IOError wraps a failure of the underlying stream.
type IOError struct {
	Name string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// WarningKind classifies non-fatal findings.
type WarningKind string

const (
	WarnVersion           WarningKind = "unsupported-version"
	WarnMissingTerminator WarningKind = "missing-terminator"
)

// Warning is a non-fatal finding; decoding continues after it is raised.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Offset  int64       `json:"offset"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return w.Message
}
