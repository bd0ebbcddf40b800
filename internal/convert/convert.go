// Package convert turns binary PLC logs into CSV files.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"example.com/plclog/internal/common"
	"example.com/plclog/internal/plclog"
	"example.com/plclog/internal/source"
	"example.com/plclog/internal/tabular"
)

const ctxCheckInterval = 1024

// Options tunes a conversion.
type Options struct {
	// Compress writes the CSV through zstd and appends .zst to the output.
	Compress bool `yaml:"compress"`
	// Mmap maps plain inputs into memory.
	Mmap bool `yaml:"mmap"`

	Metrics   *common.Metrics       `yaml:"-"`
	OnWarning func(plclog.Warning) `yaml:"-"`
}

// OutputPath derives the CSV name for in: everything from the last ".bin"
// in the file name is replaced by ".csv"; names without it get ".csv"
// appended.
func OutputPath(in string) string {
	dir, base := filepath.Split(in)
	if i := strings.LastIndex(base, ".bin"); i >= 0 {
		return dir + base[:i] + ".csv"
	}
	return in + ".csv"
}

// Convert decodes src and writes CSV to dst. Rows already written stay
// written when decoding fails part way; the returned summary covers them.
func Convert(ctx context.Context, src io.Reader, dst io.Writer, opts Options) (Summary, error) {
	sum := Summary{StartedAt: time.Now().UTC(), Input: sourceName(src)}
	start := time.Now()
	m := opts.Metrics
	if m != nil {
		m.Start()
		defer m.Stop()
	}

	dec := plclog.NewDecoder(src)
	dec.OnWarning(func(w plclog.Warning) {
		if m != nil {
			m.IncWarning()
		}
		if opts.OnWarning != nil {
			opts.OnWarning(w)
		}
	})

	hasher := common.NewHasher()
	tw := tabular.NewWriter(io.MultiWriter(dst, hasher))
	finish := func(err error) (Summary, error) {
		if ferr := tw.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("write output: %w", ferr)
		}
		sum.Warnings = dec.Warnings()
		sum.Terminated = dec.Terminated()
		sum.BytesRead = dec.Offset()
		sum.Records = tw.Rows()
		sum.OutputBytes = hasher.Size()
		sum.OutputSHA256 = hasher.Sum()
		sum.Duration = time.Since(start)
		if err != nil {
			sum.Error = err.Error()
		}
		return sum, err
	}

	hdr, layout, err := dec.Header()
	if err != nil {
		return finish(err)
	}
	sum.setHeader(hdr, layout)
	if m != nil {
		m.AddBytes(hdr.Size())
	}
	if err := tw.WriteHeader(hdr, layout); err != nil {
		return finish(fmt.Errorf("write output: %w", err))
	}

	stride := plclog.RecordStride(hdr)
	var last plclog.Timestamp
	for {
		if tw.Rows()%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return finish(err)
			}
		}
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(err)
		}
		if err := tw.WriteRecord(rec); err != nil {
			return finish(fmt.Errorf("write output: %w", err))
		}
		if tw.Rows() == 1 {
			sum.FirstTimestamp = rec.Timestamp.String()
		}
		last = rec.Timestamp
		if m != nil {
			m.AddRecord(stride)
		}
	}
	if tw.Rows() > 0 {
		sum.LastTimestamp = last.String()
	}
	return finish(nil)
}

// ConvertFile converts the log at in. An empty out selects OutputPath(in),
// with ".zst" appended when compressing.
func ConvertFile(ctx context.Context, in, out string, opts Options) (Summary, error) {
	if out == "" {
		out = OutputPath(strings.TrimSuffix(in, source.ZstdExt))
		if opts.Compress {
			out += source.ZstdExt
		}
	}
	src, err := source.Open(in, source.Options{Mmap: opts.Mmap})
	if err != nil {
		err = &plclog.IOError{Name: in, Op: "open", Err: err}
		return Summary{Input: in, Error: err.Error()}, err
	}
	defer src.Close()
	if opts.Metrics != nil {
		opts.Metrics.SetTotalBytes(src.Size())
	}

	f, err := os.Create(out)
	if err != nil {
		err = &plclog.IOError{Name: out, Op: "create", Err: err}
		return Summary{Input: in, Error: err.Error()}, err
	}
	var dst io.Writer = f
	var enc *zstd.Encoder
	if opts.Compress {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return Summary{Input: in, Error: err.Error()}, err
		}
		dst = enc
	}

	sum, convErr := Convert(ctx, src, dst, opts)
	sum.Input = in
	sum.Output = out
	if enc != nil {
		if err := enc.Close(); err != nil && convErr == nil {
			convErr = &plclog.IOError{Name: out, Op: "compress", Err: err}
		}
	}
	if err := f.Close(); err != nil && convErr == nil {
		convErr = &plclog.IOError{Name: out, Op: "close", Err: err}
	}
	if convErr != nil {
		sum.Error = convErr.Error()
		// Nothing was decoded; leave no empty file behind.
		if sum.OutputBytes == 0 {
			os.Remove(out)
			sum.Output = ""
		}
	}
	return sum, convErr
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
