package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/plclog/internal/convert"
	"example.com/plclog/internal/plclog"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds the Prometheus collectors of one server.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	conversionsTotal   *prometheus.CounterVec
	conversionDuration prometheus.Histogram
	recordsTotal       prometheus.Counter
	inputBytesTotal    prometheus.Counter
	warningsTotal      *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg, or on a fresh registry when
// reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plclog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plclog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		conversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plclog_conversions_total",
				Help: "Total number of log conversions",
			},
			[]string{"status"},
		),
		conversionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plclog_conversion_duration_seconds",
				Help:    "Log conversion duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		recordsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plclog_records_total",
				Help: "Total number of decoded log records",
			},
		),
		inputBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plclog_input_bytes_total",
				Help: "Total number of log bytes consumed",
			},
		),
		warningsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plclog_warnings_total",
				Help: "Total number of non-fatal decode warnings",
			},
			[]string{"kind"},
		),
	}
}

// Registry is the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordConversion records one finished conversion.
func (m *Metrics) RecordConversion(sum convert.Summary) {
	status := statusSuccess
	if !sum.OK() {
		status = statusError
	}
	m.conversionsTotal.WithLabelValues(status).Inc()
	m.conversionDuration.Observe(sum.Duration.Seconds())
	m.recordsTotal.Add(float64(sum.Records))
	m.inputBytesTotal.Add(float64(sum.BytesRead))
}

// RecordWarning counts a decode warning by kind.
func (m *Metrics) RecordWarning(w plclog.Warning) {
	m.warningsTotal.WithLabelValues(string(w.Kind)).Inc()
}

// Instrument is chi middleware recording request counts and latency by
// route pattern.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// responseWriter captures the status code while keeping streaming working.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
