package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"

	"example.com/plclog/internal/common"
	"example.com/plclog/internal/convert"
	"example.com/plclog/internal/plclog"
	"example.com/plclog/internal/report"
)

// Server coordinates HTTP handlers and manages the artifacts produced by
// conversion requests.
type Server struct {
	artifacts  *ArtifactStore
	workDir    string
	uploadsDir string
	opts       Options
	metrics    *Metrics
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// FileResult is the per-input entry of a /convert response.
type FileResult struct {
	Name      string          `json:"name"`
	Summary   convert.Summary `json:"summary"`
	Artifacts []ArtifactRef   `json:"artifacts,omitempty"`
}

// NewServer constructs a Server rooted at a temporary workspace directory.
func NewServer(opts Options) (*Server, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(opts.StorageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(opts.StorageDir, "plclogd-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	return &Server{
		artifacts:  &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:    workDir,
		uploadsDir: uploadsDir,
		opts:       opts,
		metrics:    NewMetrics(opts.Registry),
	}, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	art := Artifact{
		ID:          ksuid.New().String(),
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[art.ID] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

// newJobDir makes a directory holding one input and its outputs.
func (s *Server) newJobDir() (string, error) {
	return os.MkdirTemp(s.uploadsDir, "job-")
}

// convertInput converts the stored upload at path, registering the CSV,
// the JSON summary and optionally a PDF report as artifacts.
func (s *Server) convertInput(r *http.Request, path, name string, params convertParams) FileResult {
	res := FileResult{Name: name}
	out := filepath.Join(filepath.Dir(path), filepath.Base(convert.OutputPath(strings.TrimSuffix(name, ".zst"))))
	if params.compress {
		out += ".zst"
	}
	opts := convert.Options{
		Compress: params.compress,
		Mmap:     s.opts.Mmap,
		OnWarning: func(w plclog.Warning) {
			s.metrics.RecordWarning(w)
		},
	}
	sum, err := convert.ConvertFile(r.Context(), path, out, opts)
	sum.Input = name
	if sum.Output != "" {
		sum.Output = filepath.Base(out)
	}
	res.Summary = sum
	s.metrics.RecordConversion(sum)
	if err != nil {
		common.Warnf("convert %s: %v", name, err)
	}
	if sum.OutputBytes > 0 {
		if art, aerr := s.addArtifact(out, sum.Output, "", "csv"); aerr == nil {
			res.Artifacts = append(res.Artifacts, toRef(art))
		}
	}

	sumPath := strings.TrimSuffix(out, filepath.Ext(out)) + ".summary.json"
	if err := report.SaveSummaryJSON(sum, sumPath); err == nil {
		if art, aerr := s.addArtifact(sumPath, filepath.Base(sumPath), "application/json", "summary"); aerr == nil {
			res.Artifacts = append(res.Artifacts, toRef(art))
		}
	}
	if params.pdf {
		pdfPath := strings.TrimSuffix(sumPath, ".json") + ".pdf"
		if err := report.SaveSummaryPDF(sum, params.lang, pdfPath); err != nil {
			common.Warnf("pdf %s: %v", name, err)
		} else if art, aerr := s.addArtifact(pdfPath, filepath.Base(pdfPath), "application/pdf", "report"); aerr == nil {
			res.Artifacts = append(res.Artifacts, toRef(art))
		}
	}
	return res
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseConvertParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	inputs, err := s.collectInputs(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(inputs) == 0 {
		http.Error(w, "no input provided", http.StatusBadRequest)
		return
	}

	if params.format == "csv" {
		if len(inputs) != 1 {
			http.Error(w, "format=csv takes exactly one input", http.StatusBadRequest)
			return
		}
		s.serveCSV(w, r, inputs[0], params)
		return
	}

	if params.stream {
		writer := NewNDJSONWriter(w)
		w.Header().Set("Content-Type", "application/x-ndjson")
		sums := make([]convert.Summary, 0, len(inputs))
		for _, in := range inputs {
			if err := r.Context().Err(); err != nil {
				return
			}
			res := s.convertInput(r, in.path, in.name, params)
			sums = append(sums, res.Summary)
			if err := writer.WriteResult(res); err != nil {
				common.Warnf("stream %s: %v", in.name, err)
				return
			}
		}
		if err := writer.WriteDone(report.NewBatch(sums)); err != nil {
			common.Warnf("stream done: %v", err)
		}
		return
	}

	results := make([]FileResult, 0, len(inputs))
	for _, in := range inputs {
		results = append(results, s.convertInput(r, in.path, in.name, params))
	}
	status := http.StatusOK
	if len(results) == 1 && !results[0].Summary.OK() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, struct {
		Files []FileResult `json:"files"`
	}{Files: results})
}

// serveCSV converts one input and answers with the CSV itself. Record and
// warning counts travel in headers.
func (s *Server) serveCSV(w http.ResponseWriter, r *http.Request, in storedInput, params convertParams) {
	params.compress = false
	params.pdf = false
	res := s.convertInput(r, in.path, in.name, params)
	sum := res.Summary
	if !sum.OK() {
		writeJSON(w, statusFor(sum), res)
		return
	}
	var csvRef *ArtifactRef
	for i := range res.Artifacts {
		if res.Artifacts[i].Kind == "csv" {
			csvRef = &res.Artifacts[i]
		}
	}
	if csvRef == nil {
		http.Error(w, "csv output missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("X-Plclog-Records", fmt.Sprintf("%d", sum.Records))
	w.Header().Set("X-Plclog-Warnings", fmt.Sprintf("%d", len(sum.Warnings)))
	w.Header().Set("X-Plclog-Artifact", csvRef.ID)
	s.serveArtifact(w, r, csvRef.ID)
}

func statusFor(sum convert.Summary) int {
	if sum.OK() {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	var refs []ArtifactRef
	for _, in := range multipartFiles(r) {
		stored, err := s.storeUpload(in.name, in.open)
		if err != nil {
			http.Error(w, fmt.Sprintf("save upload %s: %v", in.name, err), http.StatusBadRequest)
			return
		}
		art, err := s.addArtifact(stored.path, stored.name, "", "upload")
		if err != nil {
			http.Error(w, fmt.Sprintf("save upload %s: %v", in.name, err), http.StatusInternalServerError)
			return
		}
		refs = append(refs, toRef(art))
	}
	if len(refs) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs})
}

func (s *Server) handleArtifactList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Artifacts []ArtifactRef `json:"artifacts"`
	}{Artifacts: s.listArtifacts()})
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, chi.URLParam(r, "id"))
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, id string) {
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		return "application/json"
	case ".ndjson":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".zst":
		return "application/zstd"
	default:
		return "application/octet-stream"
	}
}
