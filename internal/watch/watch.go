// Package watch runs a directory watcher that reprocesses PDFs as they
// appear or change. fsnotify covers local filesystems; a polling sweep
// catches network mounts where inotify events never fire.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConvertFunc processes one input PDF into one output PDF.
type ConvertFunc func(ctx context.Context, input, output string) error

// Options configure a watch run.
type Options struct {
	InputDirs []string
	OutputDir string

	// Debounce is how long a file must stay quiet before conversion
	// starts. Editors and sync clients write in bursts.
	Debounce time.Duration

	// PollInterval enables the mtime sweep when > 0.
	PollInterval time.Duration

	// RemoveOrphans deletes outputs whose source PDF is gone.
	RemoveOrphans bool
}

func (o *Options) fillDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
}

// Run watches the input directories until ctx is cancelled. In-flight
// conversions finish before Run returns.
func Run(ctx context.Context, opts Options, convert ConvertFunc, log *slog.Logger) error {
	opts.fillDefaults()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range opts.InputDirs {
		if err := watchRecursive(w, dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		log.Info("watching directory", "dir", dir)
	}

	outLock := newPathLocker()
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup

	runJob := func(input string) {
		output := outputPath(input, opts)
		if output == "" {
			return
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; wg.Done() }()
			outLock.Lock(output)
			defer outLock.Unlock(output)
			if upToDate(input, output) {
				return
			}
			convertOne(ctx, input, output, convert, log)
		}()
	}

	db := newDebouncer(opts.Debounce, runJob)
	defer db.stop()

	initialScan(ctx, opts, convert, outLock, log)

	log.Info("watch ready")

	if opts.PollInterval > 0 {
		go pollLoop(ctx, opts, opts.PollInterval, db.trigger, func(path string) {
			handleDeletion(path, opts, log)
		})
	}

	eventLoop(ctx, w, db, opts, log)

	wg.Wait()
	return nil
}

func convertOne(ctx context.Context, input, output string, convert ConvertFunc, log *slog.Logger) {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error("creating output directory", "dir", dir, "error", err)
			return
		}
	}
	start := time.Now()
	if err := convert(ctx, input, output); err != nil {
		log.Error("conversion failed", "input", input, "error", err)
		return
	}
	log.Info("converted",
		"input", filepath.Base(input),
		"output", filepath.Base(output),
		"duration", time.Since(start).Round(time.Millisecond))
}

func watchRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// initialScan converts stale inputs found at startup. Runs to completion
// before the event loop starts so startup backlog and live events never race
// on the same output.
func initialScan(ctx context.Context, opts Options, convert ConvertFunc, outLock *pathLocker, log *slog.Logger) {
	if opts.RemoveOrphans {
		removeOrphanedOutputs(opts, log)
	}

	jobs := make(map[string]string)
	for _, dir := range opts.InputDirs {
		filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !isPDF(path) {
				return nil
			}
			if out := outputPath(path, opts); out != "" && !upToDate(path, out) {
				jobs[out] = path
			}
			return nil
		})
	}

	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	for out, in := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; wg.Done() }()
			outLock.Lock(out)
			defer outLock.Unlock(out)
			convertOne(ctx, in, out, convert, log)
		}()
	}
	wg.Wait()
}

func eventLoop(ctx context.Context, w *fsnotify.Watcher, db *debouncer, opts Options, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Remove) {
				if isPDF(ev.Name) {
					handleDeletion(ev.Name, opts, log)
				}
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					watchRecursive(w, ev.Name)
					continue
				}
			}
			// Atomic replace shows up as Rename; re-add the parent so the
			// new inode keeps getting events.
			if ev.Has(fsnotify.Rename) {
				if _, err := os.Stat(ev.Name); err != nil {
					continue
				}
				w.Add(filepath.Dir(ev.Name))
			}
			if isPDF(ev.Name) {
				db.trigger(ev.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Error("watcher error", "error", err)
		}
	}
}

// pollLoop walks input directories at a fixed interval, firing onChanged for
// new mtimes and onDeleted for vanished sources.
func pollLoop(ctx context.Context, opts Options, interval time.Duration, onChanged, onDeleted func(path string)) {
	mtimes := make(map[string]time.Time)
	prev := make(map[string]bool)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		seen := make(map[string]bool)
		for _, dir := range opts.InputDirs {
			filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() || !isPDF(path) {
					return nil
				}
				seen[path] = true
				info, err := d.Info()
				if err != nil {
					return nil
				}
				mt := info.ModTime()
				if p, ok := mtimes[path]; !ok || !mt.Equal(p) {
					mtimes[path] = mt
					onChanged(path)
				}
				return nil
			})
		}

		for path := range prev {
			if !seen[path] {
				delete(mtimes, path)
				onDeleted(path)
			}
		}
		prev = seen
	}
}

// outputPath maps an input PDF to its destination under OutputDir, keeping
// the relative layout of the source tree.
func outputPath(input string, opts Options) string {
	dir := sourceDir(input, opts)
	if dir == "" || !isPDF(input) {
		return ""
	}
	rel, err := filepath.Rel(dir, input)
	if err != nil {
		return ""
	}
	return filepath.Join(opts.OutputDir, rel)
}

func sourceDir(path string, opts Options) string {
	for _, dir := range opts.InputDirs {
		if underDir(path, dir) {
			return dir
		}
	}
	return ""
}

func underDir(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	return absPath == absDir || strings.HasPrefix(absPath, absDir+string(filepath.Separator))
}

func upToDate(input, output string) bool {
	in, err := os.Stat(input)
	if err != nil {
		return false
	}
	out, err := os.Stat(output)
	if err != nil {
		return false
	}
	return !out.ModTime().Before(in.ModTime())
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func handleDeletion(path string, opts Options, log *slog.Logger) {
	if !opts.RemoveOrphans {
		return
	}
	out := outputPath(path, opts)
	if out == "" {
		return
	}
	if _, err := os.Stat(out); err != nil {
		return
	}
	if err := os.Remove(out); err != nil {
		log.Error("removing output", "path", out, "error", err)
		return
	}
	log.Info("removed output for deleted source", "output", filepath.Base(out))
	removeEmptyParents(filepath.Dir(out), opts.OutputDir)
}

func removeOrphanedOutputs(opts Options, log *slog.Logger) {
	if opts.OutputDir == "" {
		return
	}
	filepath.WalkDir(opts.OutputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isPDF(path) {
			return nil
		}
		if hasSource(path, opts) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Error("removing orphaned output", "path", path, "error", err)
			return nil
		}
		log.Info("removed orphaned output", "output", filepath.Base(path))
		removeEmptyParents(filepath.Dir(path), opts.OutputDir)
		return nil
	})
}

func hasSource(output string, opts Options) bool {
	rel, err := filepath.Rel(opts.OutputDir, output)
	if err != nil {
		return false
	}
	for _, dir := range opts.InputDirs {
		if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
			return true
		}
	}
	return false
}

func removeEmptyParents(dir, stopDir string) {
	absStop, err := filepath.Abs(stopDir)
	if err != nil {
		return
	}
	for {
		absDir, err := filepath.Abs(dir)
		if err != nil || absDir == absStop {
			return
		}
		if !strings.HasPrefix(absDir, absStop+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
