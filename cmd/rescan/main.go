package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rescanio/rescan/internal/enhance"
	"github.com/rescanio/rescan/internal/export"
	"github.com/rescanio/rescan/internal/pipeline"
	"github.com/rescanio/rescan/internal/raster"
	"github.com/rescanio/rescan/internal/render"
	"github.com/rescanio/rescan/internal/watch"
)

type cliOptions struct {
	input      string
	output     string
	dpi        float64
	colorMode  string
	format     string
	quality    int
	preset     string
	paramsJSON string
	presetPath string
	password   string
	batchSize  int
	budgetMB   float64
	skipFailed bool
	watchMode  bool
	pollEvery  time.Duration
	verbose    bool
}

func main() {
	var o cliOptions
	flag.StringVar(&o.input, "i", "", "input PDF file, or directory in watch mode")
	flag.StringVar(&o.output, "o", "", "output PDF file, or directory in watch mode")
	flag.Float64Var(&o.dpi, "dpi", render.DefaultDPI, "render resolution in dots per inch")
	flag.StringVar(&o.colorMode, "color", "rgb", "color mode: rgb or gray")
	flag.StringVar(&o.format, "format", "png", "page image format: png or jpeg")
	flag.IntVar(&o.quality, "quality", raster.DefaultJPEGQuality, "JPEG quality (1-100)")
	flag.StringVar(&o.preset, "preset", "", "enhancement preset name")
	flag.StringVar(&o.paramsJSON, "params", "", "enhancement parameters as JSON, overrides preset values")
	flag.StringVar(&o.presetPath, "presets", "presets.toml", "preset definitions file")
	flag.StringVar(&o.password, "password", "", "password for encrypted input")
	flag.IntVar(&o.batchSize, "batch", 0, "pages per output file, 0 = single file")
	flag.Float64Var(&o.budgetMB, "budget", 0, "fail when the memory estimate exceeds this many MB, 0 = warn only")
	flag.BoolVar(&o.skipFailed, "skip-failed", false, "skip pages that fail to render instead of aborting")
	flag.BoolVar(&o.watchMode, "watch", false, "watch input directory and reprocess PDFs as they change")
	flag.DurationVar(&o.pollEvery, "poll", 0, "watch mode polling interval for network filesystems, 0 = off")
	flag.BoolVar(&o.verbose, "v", false, "verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if o.input == "" || o.output == "" {
		fmt.Fprintln(os.Stderr, "usage: rescan -i input.pdf -o output.pdf [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	params, err := resolveParams(o)
	if err != nil {
		log.Error("invalid parameters", "error", err)
		os.Exit(1)
	}

	opts := render.Options{
		DPI:       o.dpi,
		ColorMode: render.ColorMode(o.colorMode),
		Format:    raster.Format(o.format),
		Quality:   o.quality,
	}

	worker := pipeline.NewWorker(log, o.budgetMB, nil)
	convert := func(ctx context.Context, input, output string) error {
		return convertFile(ctx, worker, input, output, opts, params, o)
	}

	if o.watchMode {
		runWatch(o, convert, log)
		return
	}

	if err := convert(context.Background(), o.input, o.output); err != nil {
		log.Error("conversion failed", "input", o.input, "error", err)
		os.Exit(1)
	}
}

func resolveParams(o cliOptions) (enhance.Params, error) {
	params := enhance.Defaults()
	if o.preset != "" {
		presets, err := enhance.LoadPresets(o.presetPath)
		if err != nil {
			return params, err
		}
		p, ok := presets[o.preset]
		if !ok {
			names := make([]string, 0, len(presets))
			for name := range presets {
				names = append(names, name)
			}
			return params, fmt.Errorf("unknown preset %q (have: %s)", o.preset, strings.Join(names, ", "))
		}
		params = p
	}
	if o.paramsJSON != "" {
		if err := json.Unmarshal([]byte(o.paramsJSON), &params); err != nil {
			return params, fmt.Errorf("parsing -params: %w", err)
		}
	}
	return params, nil
}

// convertFile runs the full pipeline over one file and writes the resulting
// chunk(s) next to the requested output path.
func convertFile(ctx context.Context, worker *pipeline.Worker, input, output string, opts render.Options, params enhance.Params, o cliOptions) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:        pipeline.NewJobID(data, filepath.Base(input), now),
		Filename:  filepath.Base(input),
		Status:    pipeline.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,

		RenderOpts: opts,
		Params:     params,
		Metadata:   &export.Metadata{Producer: "rescan"},
		BatchSize:  o.batchSize,

		SkipFailedPages: o.skipFailed,
		EnforceBudget:   o.budgetMB > 0,
	}
	job.SetFileData(data, o.password)

	worker.Process(ctx, job)

	snap := job.Snapshot()
	for _, w := range snap.Progress.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if snap.Status == pipeline.StatusFailed {
		return fmt.Errorf("%s", strings.Join(snap.Progress.Errors, "; "))
	}

	chunks := job.Result()
	if len(chunks) == 1 {
		return os.WriteFile(output, chunks[0], 0644)
	}
	base := strings.TrimSuffix(output, filepath.Ext(output))
	for i, chunk := range chunks {
		name := fmt.Sprintf("%s.part%d.pdf", base, i)
		if err := os.WriteFile(name, chunk, 0644); err != nil {
			return err
		}
	}
	return nil
}

func runWatch(o cliOptions, convert watch.ConvertFunc, log *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	err := watch.Run(ctx, watch.Options{
		InputDirs:    []string{o.input},
		OutputDir:    o.output,
		PollInterval: o.pollEvery,
	}, convert, log)
	if err != nil {
		log.Error("watch failed", "error", err)
		os.Exit(1)
	}
}
