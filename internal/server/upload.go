package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"example.com/plclog/internal/report"
)

type convertParams struct {
	format   string
	stream   bool
	compress bool
	pdf      bool
	lang     report.Language
}

type storedInput struct {
	path string
	name string
}

type namedFile struct {
	name string
	open func() (io.ReadCloser, error)
}

func (s *Server) parseConvertParams(r *http.Request) (convertParams, error) {
	q := r.URL.Query()
	p := convertParams{format: strings.ToLower(q.Get("format"))}
	switch p.format {
	case "", "json":
		p.format = "json"
	case "csv":
	default:
		return p, fmt.Errorf("unsupported format %q", p.format)
	}
	var err error
	if p.stream, err = boolParam(q.Get("stream")); err != nil {
		return p, fmt.Errorf("stream: %w", err)
	}
	if p.pdf, err = boolParam(q.Get("pdf")); err != nil {
		return p, fmt.Errorf("pdf: %w", err)
	}
	p.compress = s.opts.Compress
	if v := q.Get("compress"); v != "" {
		if p.compress, err = boolParam(v); err != nil {
			return p, fmt.Errorf("compress: %w", err)
		}
	}
	lang := q.Get("lang")
	if lang == "" {
		lang = s.opts.Lang
	}
	if p.lang, err = report.ParseLanguage(lang); err != nil {
		return p, err
	}
	return p, nil
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// collectInputs stores every input of a /convert request: multipart files,
// a JSON list of uploaded artifact ids, or the raw body named by ?name=.
func (s *Server) collectInputs(r *http.Request) ([]storedInput, error) {
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, fmt.Errorf("parse multipart: %w", err)
		}
		var out []storedInput
		for _, f := range multipartFiles(r) {
			in, err := s.storeUpload(f.name, f.open)
			if err != nil {
				return nil, fmt.Errorf("save upload %s: %w", f.name, err)
			}
			out = append(out, in)
		}
		return out, nil
	case strings.HasPrefix(ct, "application/json"):
		var req struct {
			Inputs []string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		out := make([]storedInput, 0, len(req.Inputs))
		for _, id := range req.Inputs {
			art, ok := s.getArtifact(id)
			if !ok || art.Kind != "upload" {
				return nil, fmt.Errorf("unknown upload %q", id)
			}
			in, err := s.storeUpload(art.Name, func() (io.ReadCloser, error) { return os.Open(art.Path) })
			if err != nil {
				return nil, err
			}
			out = append(out, in)
		}
		return out, nil
	default:
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "upload.bin"
		}
		in, err := s.storeUpload(name, func() (io.ReadCloser, error) { return io.NopCloser(r.Body), nil })
		if err != nil {
			return nil, err
		}
		return []storedInput{in}, nil
	}
}

func multipartFiles(r *http.Request) []namedFile {
	if r.MultipartForm == nil {
		return nil
	}
	// Map order is random; keep results stable across identical requests.
	fields := make([]string, 0, len(r.MultipartForm.File))
	for field := range r.MultipartForm.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var out []namedFile
	for _, field := range fields {
		for _, fh := range r.MultipartForm.File[field] {
			fh := fh
			out = append(out, namedFile{
				name: fh.Filename,
				open: func() (io.ReadCloser, error) { return openHeader(fh) },
			})
		}
	}
	return out
}

func openHeader(fh *multipart.FileHeader) (io.ReadCloser, error) {
	if fh == nil {
		return nil, errors.New("nil file header")
	}
	return fh.Open()
}

// storeUpload copies an input into its own job directory, keeping only the
// base of the client supplied name.
func (s *Server) storeUpload(name string, open func() (io.ReadCloser, error)) (storedInput, error) {
	name = filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if name == "/" || name == "." {
		name = "upload.bin"
	}
	src, err := open()
	if err != nil {
		return storedInput{}, err
	}
	defer src.Close()
	dir, err := s.newJobDir()
	if err != nil {
		return storedInput{}, err
	}
	path := filepath.Join(dir, name)
	dest, err := os.Create(path)
	if err != nil {
		return storedInput{}, err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(path)
		return storedInput{}, err
	}
	if err := dest.Close(); err != nil {
		return storedInput{}, err
	}
	return storedInput{path: path, name: name}, nil
}
