package convert

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"example.com/plclog/internal/common"
	"example.com/plclog/internal/source"
)

// FindLogs lists the .bin and .bin.zst files below dir in lexical order.
func FindLogs(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(strings.TrimSuffix(d.Name(), source.ZstdExt))
		if strings.HasSuffix(name, ".bin") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Batch converts inputs one after another into outDir. A failing file is
// recorded in its summary and does not stop the batch; emit, when set,
// sees every summary as soon as it is ready. The error is non-nil only if
// the batch could not run or ctx was cancelled.
func Batch(ctx context.Context, inputs []string, outDir string, opts Options, emit func(Summary) error) ([]Summary, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	used := make(map[string]int)
	summaries := make([]Summary, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		out := filepath.Join(outDir, uniqueName(used, filepath.Base(defaultOutput(in, opts))))
		sum, err := ConvertFile(ctx, in, out, opts)
		if err != nil {
			if ctx.Err() != nil {
				return summaries, ctx.Err()
			}
			common.Warnf("%s: %v", in, err)
		} else {
			common.Logf("converted %s -> %s (%d records)", in, out, sum.Records)
		}
		summaries = append(summaries, sum)
		if emit != nil {
			if err := emit(sum); err != nil {
				return summaries, err
			}
		}
	}
	return summaries, nil
}

func defaultOutput(in string, opts Options) string {
	out := OutputPath(strings.TrimSuffix(in, source.ZstdExt))
	if opts.Compress {
		out += source.ZstdExt
	}
	return out
}

// uniqueName suffixes repeated names so inputs from different directories
// do not overwrite each other.
func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := ".csv"
	if strings.HasSuffix(name, ".csv"+source.ZstdExt) {
		ext = ".csv" + source.ZstdExt
	}
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n+1, ext)
}
