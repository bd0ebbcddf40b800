package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/plclog/internal/common"
	"example.com/plclog/internal/convert"
	"example.com/plclog/internal/manifest"
	"example.com/plclog/internal/plclog"
	"example.com/plclog/internal/report"
	"example.com/plclog/internal/source"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "convert":
		convertCmd(os.Args[2:])
	case "info":
		infoCmd(os.Args[2:])
	case "batch":
		batchCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "verify":
		verifyCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`plclogctl %s (built %s) <command> [options]

Commands:
  convert   [--out <file.csv>] [--config <options.yaml>] [--compress] [--mmap] [--progress] [--summary <file.json>] [--pdf <file.pdf> --lang <en|de>] <file.bin>...
  info      [--json] <file.bin>
  batch     --in <dir> --out-dir <dir> [--compress] [--pdf --lang <en|de>] [--no-manifest]
  report    --summary <file.summary.json> --pdf <file.pdf> [--lang <en|de>]
  manifest  --inputs <comma-separated> --out <manifest.json> [--sign --key <key.pem> --cert <cert.pem> --jws-out <file>]
  verify    --manifest <manifest.json> [--root <dir>] [--jws <signature.jws> --cert <cert.pem>]
`, version, buildDate)
}

// signalContext is cancelled on SIGINT/SIGTERM so partial output is flushed.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadOptions(path string) (convert.Options, error) {
	var opts convert.Options
	if path == "" {
		return opts, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return opts, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return opts, fmt.Errorf("decode %s: %w", path, err)
	}
	return opts, nil
}

// flagSet reports whether name was given on the command line.
func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printWarning(w plclog.Warning) {
	fmt.Fprintln(os.Stderr, "Warning:", w.Message)
}

func convertCmd(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	out := fs.String("out", "", "output CSV (single input only)")
	configPath := fs.String("config", "", "YAML conversion options")
	compress := fs.Bool("compress", false, "write zstd compressed CSV")
	mmap := fs.Bool("mmap", false, "memory map inputs")
	progressFlag := fs.Bool("progress", false, "display conversion progress updates")
	summaryPath := fs.String("summary", "", "write the JSON summary (single input only)")
	pdfPath := fs.String("pdf", "", "write a PDF report (single input only)")
	lang := fs.String("lang", "en", "report language")
	fs.Parse(args)

	inputs := fs.Args()
	if len(inputs) == 0 {
		fmt.Println("required: at least one input file")
		os.Exit(1)
	}
	if len(inputs) > 1 && (*out != "" || *summaryPath != "" || *pdfPath != "") {
		fmt.Println("--out, --summary and --pdf take a single input")
		os.Exit(1)
	}
	opts, err := loadOptions(*configPath)
	if err != nil {
		fmt.Println("load config:", err)
		os.Exit(1)
	}
	if flagSet(fs, "compress") {
		opts.Compress = *compress
	}
	if flagSet(fs, "mmap") {
		opts.Mmap = *mmap
	}
	language, err := report.ParseLanguage(*lang)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	opts.OnWarning = printWarning

	ctx, cancel := signalContext()
	defer cancel()

	failed := 0
	for _, in := range inputs {
		var stop func()
		if *progressFlag {
			opts.Metrics = common.NewMetrics()
			opts.Metrics.Start()
			stop = common.StartProgressPrinter(os.Stderr, opts.Metrics, 500*time.Millisecond)
		}
		sum, err := convert.ConvertFile(ctx, in, *out, opts)
		if stop != nil {
			opts.Metrics.Stop()
			stop()
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		fmt.Println("Finished writing", sum.Output)
		if *summaryPath != "" {
			if err := report.SaveSummaryJSON(sum, *summaryPath); err != nil {
				fmt.Println("write summary:", err)
				os.Exit(1)
			}
		}
		if *pdfPath != "" {
			if err := report.SaveSummaryPDF(sum, language, *pdfPath); err != nil {
				fmt.Println("write pdf:", err)
				os.Exit(1)
			}
			fmt.Println("Wrote PDF:", *pdfPath)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func infoCmd(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print JSON")
	mmap := fs.Bool("mmap", false, "memory map the input")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Println("required: exactly one input file")
		os.Exit(1)
	}
	src, err := source.Open(fs.Arg(0), source.Options{Mmap: *mmap})
	if err != nil {
		fmt.Println("open:", err)
		os.Exit(1)
	}
	defer src.Close()
	info, err := convert.Inspect(src)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(info)
	} else {
		printInfo(info)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printInfo(info convert.Info) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s\n", info.Input)
	fmt.Fprintf(tw, "Size:\t%s\n", common.FormatBytes(info.Size))
	if info.ByteOrder != "" {
		fmt.Fprintf(tw, "Log ID:\t%q (%s)\n", info.LogID, info.LogIDHex)
		fmt.Fprintf(tw, "Byte order:\t%s\n", info.ByteOrder)
		fmt.Fprintf(tw, "Version:\t%d\n", info.Version)
		fmt.Fprintf(tw, "Words:\t%d\n", info.WordCount)
		fmt.Fprintf(tw, "Type list:\t%s\n", info.TypeList)
		fmt.Fprintf(tw, "Record size:\t%d\n", info.Stride)
		fmt.Fprintf(tw, "Records:\t%d\n", info.Records)
		fmt.Fprintf(tw, "First:\t%s\n", info.FirstTimestamp)
		fmt.Fprintf(tw, "Last:\t%s\n", info.LastTimestamp)
		fmt.Fprintf(tw, "Terminated:\t%t\n", info.Terminated)
		if info.TrailBytes > 0 {
			fmt.Fprintf(tw, "Trailing bytes:\t%d\n", info.TrailBytes)
		}
	}
	for _, f := range info.Fields {
		fmt.Fprintf(tw, "Field:\t%s\n", f)
	}
	tw.Flush()
	for _, w := range info.Warnings {
		fmt.Fprintln(os.Stderr, "Warning:", w.Message)
	}
}

func batchCmd(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	inDir := fs.String("in", ".", "input directory")
	outDir := fs.String("out-dir", "out", "results directory")
	configPath := fs.String("config", "", "YAML conversion options")
	compress := fs.Bool("compress", false, "write zstd compressed CSV")
	pdf := fs.Bool("pdf", false, "write a PDF report per file")
	lang := fs.String("lang", "en", "report language")
	noManifest := fs.Bool("no-manifest", false, "skip manifest.json")
	fs.Parse(args)

	opts, err := loadOptions(*configPath)
	if err != nil {
		fmt.Println("load config:", err)
		os.Exit(1)
	}
	if flagSet(fs, "compress") {
		opts.Compress = *compress
	}
	language, err := report.ParseLanguage(*lang)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	inputs, err := convert.FindLogs(*inDir)
	if err != nil {
		fmt.Println("scan inputs:", err)
		os.Exit(1)
	}
	if len(inputs) == 0 {
		fmt.Println("no .bin files found in", *inDir)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var produced []string
	emit := func(sum convert.Summary) error {
		if sum.OutputBytes > 0 {
			produced = append(produced, sum.Output)
		}
		base := reportBase(sum, *outDir)
		sumPath := base + ".summary.json"
		if err := report.SaveSummaryJSON(sum, sumPath); err != nil {
			return err
		}
		produced = append(produced, sumPath)
		if *pdf {
			pdfPath := base + ".summary.pdf"
			if err := report.SaveSummaryPDF(sum, language, pdfPath); err != nil {
				return err
			}
			produced = append(produced, pdfPath)
		}
		if sum.OK() {
			fmt.Printf("%s: %d records -> %s\n", sum.Input, sum.Records, sum.Output)
		} else {
			fmt.Printf("%s: FAILED %s\n", sum.Input, sum.Error)
		}
		return nil
	}
	sums, err := convert.Batch(ctx, inputs, *outDir, opts, emit)
	if err != nil {
		fmt.Println("batch:", err)
		os.Exit(1)
	}

	b := report.NewBatch(sums)
	batchPath := filepath.Join(*outDir, "batch.json")
	if err := report.SaveBatchJSON(b, batchPath); err != nil {
		fmt.Println("write batch summary:", err)
		os.Exit(1)
	}
	produced = append(produced, batchPath)
	if !*noManifest {
		m, err := manifest.Build(produced)
		if err != nil {
			fmt.Println("manifest build:", err)
			os.Exit(1)
		}
		if err := manifest.Save(m, filepath.Join(*outDir, "manifest.json")); err != nil {
			fmt.Println("manifest save:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Converted %d of %d files\n", b.Converted, len(sums))
	if b.Failed > 0 {
		os.Exit(1)
	}
}

// reportBase is the output path without its ".csv[.zst]" suffix, or one
// derived from the input when no output was created.
func reportBase(sum convert.Summary, outDir string) string {
	out := sum.Output
	if out == "" {
		out = filepath.Join(outDir, filepath.Base(convert.OutputPath(strings.TrimSuffix(sum.Input, source.ZstdExt))))
	}
	out = strings.TrimSuffix(out, source.ZstdExt)
	return strings.TrimSuffix(out, ".csv")
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	summaryPath := fs.String("summary", "", "summary JSON written by convert or batch")
	pdfPath := fs.String("pdf", "", "output PDF report")
	lang := fs.String("lang", "en", "report language")
	fs.Parse(args)
	if *summaryPath == "" || *pdfPath == "" {
		fmt.Println("required: --summary, --pdf")
		os.Exit(1)
	}
	language, err := report.ParseLanguage(*lang)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	sum, err := report.LoadSummaryJSON(*summaryPath)
	if err != nil {
		fmt.Println("load summary:", err)
		os.Exit(1)
	}
	if err := report.SaveSummaryPDF(sum, language, *pdfPath); err != nil {
		fmt.Println("write pdf:", err)
		os.Exit(1)
	}
	fmt.Println("Wrote PDF:", *pdfPath)
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fs.String("inputs", "", "comma-separated paths")
	out := fs.String("out", "manifest.json", "output json")
	sign := fs.Bool("sign", false, "sign manifest (detached JWS over JSON)")
	keyPath := fs.String("key", "", "PEM private key for signing (requires --sign)")
	certPath := fs.String("cert", "", "PEM certificate describing signer (requires --sign)")
	jwsOut := fs.String("jws-out", "", "output JWS file (defaults to manifest path with .jws)")
	fs.Parse(args)

	if *inputs == "" {
		fmt.Println("required: --inputs")
		os.Exit(1)
	}
	var paths []string
	for _, p := range strings.Split(*inputs, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		fmt.Println("no input paths specified")
		os.Exit(1)
	}

	m, err := manifest.Build(paths)
	if err != nil {
		fmt.Println("manifest build:", err)
		os.Exit(1)
	}
	if !*sign {
		if err := manifest.Save(m, *out); err != nil {
			fmt.Println("manifest save:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *out)
		return
	}

	if *keyPath == "" || *certPath == "" {
		fmt.Println("--sign requires --key and --cert")
		os.Exit(1)
	}
	keyBytes, err := os.ReadFile(*keyPath)
	if err != nil {
		fmt.Println("read key:", err)
		os.Exit(1)
	}
	certBytes, err := os.ReadFile(*certPath)
	if err != nil {
		fmt.Println("read cert:", err)
		os.Exit(1)
	}
	sigPath, err := manifest.SaveSigned(m, *out, *jwsOut, keyBytes, certBytes)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println("Wrote", *out)
	fmt.Println("Wrote signature", sigPath)
}

func verifyCmd(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	manifestPath := fs.String("manifest", "", "manifest JSON file")
	root := fs.String("root", "", "directory relative item paths are resolved against")
	jwsPath := fs.String("jws", "", "manifest JWS signature file")
	certPath := fs.String("cert", "", "signer certificate (PEM)")
	fs.Parse(args)

	if *manifestPath == "" {
		fmt.Println("required: --manifest")
		os.Exit(1)
	}
	if (*jwsPath == "") != (*certPath == "") {
		fmt.Println("--jws and --cert go together")
		os.Exit(1)
	}
	if *jwsPath != "" {
		manifestBytes, err := os.ReadFile(*manifestPath)
		if err != nil {
			fmt.Println("read manifest:", err)
			os.Exit(1)
		}
		jwsBytes, err := os.ReadFile(*jwsPath)
		if err != nil {
			fmt.Println("read jws:", err)
			os.Exit(1)
		}
		certBytes, err := os.ReadFile(*certPath)
		if err != nil {
			fmt.Println("read cert:", err)
			os.Exit(1)
		}
		if err := manifest.VerifySignature(manifestBytes, string(jwsBytes), certBytes); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Println("Signature OK")
	}
	m, err := manifest.Load(*manifestPath)
	if err != nil {
		fmt.Println("load manifest:", err)
		os.Exit(1)
	}
	if err := manifest.Verify(m, *root); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("%d files OK\n", len(m.Items))
}
