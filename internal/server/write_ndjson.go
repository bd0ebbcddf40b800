package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"example.com/plclog/internal/report"
)

// NDJSONWriter streams one JSON object per line, flushing after each so
// clients see per-file results while a batch is still converting.
type NDJSONWriter struct {
	mu      sync.Mutex
	enc     *json.Encoder
	flusher http.Flusher
}

func NewNDJSONWriter(w http.ResponseWriter) *NDJSONWriter {
	flusher, _ := w.(http.Flusher)
	return &NDJSONWriter{enc: json.NewEncoder(w), flusher: flusher}
}

// WriteResult writes one converted file as a "file" line.
func (w *NDJSONWriter) WriteResult(res FileResult) error {
	return w.WriteObject(struct {
		Type string `json:"type"`
		FileResult
	}{Type: "file", FileResult: res})
}

// WriteDone writes the closing "done" line with the batch tally.
func (w *NDJSONWriter) WriteDone(b report.Batch) error {
	return w.WriteObject(struct {
		Type      string `json:"type"`
		Converted int    `json:"converted"`
		Failed    int    `json:"failed"`
	}{Type: "done", Converted: b.Converted, Failed: b.Failed})
}

func (w *NDJSONWriter) WriteObject(v any) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
