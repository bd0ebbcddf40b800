// Package tabular renders decoded log records as comma separated text.
package tabular

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"example.com/plclog/internal/plclog"
)

var (
	ErrNoHeader      = errors.New("tabular: record written before header")
	ErrHeaderWritten = errors.New("tabular: header already written")
)

// Writer emits the identifier line, the column header and one row per
// record. Output is buffered; call Flush when done.
type Writer struct {
	bw      *bufio.Writer
	cw      *csv.Writer
	columns int
	started bool
	rows    int64
	row     []string
}

func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{bw: bw, cw: csv.NewWriter(bw)}
}

// QuoteIdentifier wraps id in double quotes, doubling embedded quotes.
func QuoteIdentifier(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// HeaderColumns is the second output line split into its cells.
func HeaderColumns(layout plclog.Layout) []string {
	return append([]string{"Day", "Date", "Time"}, layout.Columns()...)
}

// WriteHeader writes the identifier and column lines.
func (w *Writer) WriteHeader(hdr plclog.Header, layout plclog.Layout) error {
	if w.started {
		return ErrHeaderWritten
	}
	w.started = true
	w.columns = len(layout.Fields)
	w.row = make([]string, 0, 3+w.columns)
	if _, err := w.bw.WriteString(QuoteIdentifier(hdr.IdentifierText()) + "\n"); err != nil {
		return err
	}
	return w.cw.Write(HeaderColumns(layout))
}

// WriteRecord appends one row.
func (w *Writer) WriteRecord(rec plclog.Record) error {
	if !w.started {
		return ErrNoHeader
	}
	ts := rec.Timestamp.Columns()
	w.row = append(w.row[:0], ts[:]...)
	for _, v := range rec.Values {
		w.row = append(w.row, v.Text)
	}
	if err := w.cw.Write(w.row); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows is the number of records written.
func (w *Writer) Rows() int64 { return w.rows }

func (w *Writer) Flush() error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return err
	}
	return w.bw.Flush()
}
