package common

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks the progress of one conversion. The decoder side updates
// the counters while a progress printer reads snapshots concurrently.
type Metrics struct {
	bytes      atomic.Int64
	totalBytes atomic.Int64
	records    atomic.Int64
	warnings   atomic.Int64

	mu    sync.Mutex
	start time.Time
	end   time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Start marks the beginning of the run. Later calls are ignored.
func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
	}
	m.mu.Unlock()
}

// Stop freezes the elapsed time.
func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

// AddRecord counts one decoded record occupying size bytes of input.
func (m *Metrics) AddRecord(size int64) {
	if size <= 0 {
		return
	}
	m.bytes.Add(size)
	m.records.Add(1)
}

// AddBytes counts input consumed outside of records, such as the header.
func (m *Metrics) AddBytes(n int64) {
	if n > 0 {
		m.bytes.Add(n)
	}
}

func (m *Metrics) IncWarning() {
	m.warnings.Add(1)
}

// SetTotalBytes sets the input size used for the completion ratio.
func (m *Metrics) SetTotalBytes(total int64) {
	if total < 0 {
		total = 0
	}
	m.totalBytes.Store(total)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Bytes:      m.bytes.Load(),
		TotalBytes: m.totalBytes.Load(),
		Records:    m.records.Load(),
		Warnings:   m.warnings.Load(),
	}
	m.mu.Lock()
	switch {
	case m.start.IsZero():
	case m.end.IsZero():
		s.Duration = time.Since(m.start)
	default:
		s.Duration = m.end.Sub(m.start)
	}
	m.mu.Unlock()
	return s
}

type MetricsSnapshot struct {
	Duration   time.Duration
	Bytes      int64
	TotalBytes int64
	Records    int64
	Warnings   int64
}

func (s MetricsSnapshot) RecordsPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Records) / s.Duration.Seconds()
}

func (s MetricsSnapshot) BytesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Duration.Seconds()
}

// Completion is the consumed share of TotalBytes, clamped to [0, 1].
func (s MetricsSnapshot) Completion() float64 {
	if s.TotalBytes <= 0 || s.Bytes <= 0 {
		return 0
	}
	if s.Bytes >= s.TotalBytes {
		return 1
	}
	return float64(s.Bytes) / float64(s.TotalBytes)
}

var byteUnits = []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	v := float64(b) / unit
	i := 0
	for v >= unit && i < len(byteUnits)-1 {
		v /= unit
		i++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[i])
}

func formatProgressLine(s MetricsSnapshot) string {
	var sb strings.Builder
	if s.TotalBytes > 0 {
		fmt.Fprintf(&sb, "Progress: %6.2f%% (%s / %s)", s.Completion()*100, FormatBytes(s.Bytes), FormatBytes(s.TotalBytes))
	} else {
		fmt.Fprintf(&sb, "Processed: %s", FormatBytes(s.Bytes))
	}
	fmt.Fprintf(&sb, " %d records %.0f rec/s", s.Records, s.RecordsPerSecond())
	if s.Warnings > 0 {
		fmt.Fprintf(&sb, " %d warnings", s.Warnings)
	}
	return sb.String()
}

// StartProgressPrinter redraws a progress line on w every interval until
// the returned stop function is called.
func StartProgressPrinter(w io.Writer, m *Metrics, interval time.Duration) func() {
	if m == nil || w == nil {
		return func() {}
	}
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		width := 0
		for {
			select {
			case <-ticker.C:
				line := formatProgressLine(m.Snapshot())
				fmt.Fprintf(w, "\r%-*s", width, line)
				if len(line) > width {
					width = len(line)
				}
			case <-done:
				if width > 0 {
					fmt.Fprintf(w, "\r%s\r\n", strings.Repeat(" ", width))
				}
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-finished
	}
}
