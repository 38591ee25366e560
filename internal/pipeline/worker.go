package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/rescanio/rescan/internal/document"
	"github.com/rescanio/rescan/internal/enhance"
	"github.com/rescanio/rescan/internal/estimate"
	"github.com/rescanio/rescan/internal/export"
	"github.com/rescanio/rescan/internal/page"
	"github.com/rescanio/rescan/internal/render"
)

// Worker converts a single document job: open, bounds, render, enhance,
// export, validate. Pages are processed strictly sequentially; cancellation
// is checked between pages.
type Worker struct {
	log      *slog.Logger
	budgetMB float64
	stats    *PhaseStats
}

func NewWorker(log *slog.Logger, budgetMB float64, stats *PhaseStats) *Worker {
	return &Worker{
		log:      log,
		budgetMB: budgetMB,
		stats:    stats,
	}
}

// Process runs the full conversion pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: open (and unlock, if a password was supplied).
	job.SetStatus(StatusOpening, "opening")
	doc, err := document.Open(job.fileData)
	if err != nil {
		w.fail(job, log, "opening", err.Error())
		return
	}
	defer doc.Close()

	if doc.NeedsPassword() {
		if job.password == "" {
			w.fail(job, log, "opening", "document is password protected")
			return
		}
		ok, err := doc.Authenticate(job.password)
		if err != nil {
			w.fail(job, log, "opening", err.Error())
			return
		}
		if !ok {
			w.fail(job, log, "opening", "wrong password")
			return
		}
	}

	// Phase 2: physical page geometry.
	job.SetStatus(StatusBounds, "extracting_bounds")
	boundsRes, err := doc.ExtractBounds()
	if err != nil {
		w.fail(job, log, "extracting_bounds", err.Error())
		return
	}
	job.SetTotalPages(len(boundsRes))

	bounds := make([]page.Bounds, len(boundsRes))
	for i, br := range boundsRes {
		bounds[i] = br.Bounds
		if br.Fallback {
			job.AddWarning(fmt.Sprintf("page %d: A4 fallback bounds (%s)", br.PageIndex, br.Reason))
		}
	}

	// Phase 2.5: feasibility. Advisory unless the job enforces the budget.
	feas := estimate.Memory(bounds, job.RenderOpts, w.budgetMB)
	if !feas.Feasible {
		msg := fmt.Sprintf("estimated %.1f MB exceeds budget %.0f MB: %s",
			feas.EstimatedMB, feas.BudgetMB, strings.Join(feas.Suggestions, "; "))
		job.AddWarning(msg)
		if job.EnforceBudget {
			w.fail(job, log, "feasibility", msg)
			return
		}
		log.Warn("feasibility exceeded, proceeding", "estimated_mb", feas.EstimatedMB)
	}

	// Parameter corrections are reported once, not per page.
	params := job.Params
	for _, pw := range params.Clamp() {
		job.AddWarning(pw.String())
	}
	enhanceActive := params != enhance.Defaults()

	// Phase 3: sequential render + enhance, ascending page order.
	job.SetStatus(StatusRendering, "rendering")
	pages := make([]page.ProcessedPage, 0, len(boundsRes))
	for i, br := range boundsRes {
		select {
		case <-ctx.Done():
			w.fail(job, log, "rendering", "canceled")
			return
		default:
		}

		start := time.Now()
		img, err := render.Render(doc, i, br.Bounds, job.RenderOpts)
		w.stats.Record("render", time.Since(start))
		if err != nil {
			if job.SkipFailedPages {
				log.Error("render failed, skipping page", "page", i, "error", err)
				job.AddError(fmt.Sprintf("page %d: %s", i, err))
				job.IncrSkipped()
				continue
			}
			w.fail(job, log, "rendering", err.Error())
			return
		}

		pp := page.ProcessedPage{PageIndex: i, Bounds: br.Bounds, Original: img}
		if enhanceActive {
			start = time.Now()
			processed, _, err := enhance.Process(img, params)
			w.stats.Record("process", time.Since(start))
			if err != nil {
				if job.SkipFailedPages {
					log.Error("processing failed, skipping page", "page", i, "error", err)
					job.AddError(fmt.Sprintf("page %d: %s", i, err))
					job.IncrSkipped()
					continue
				}
				w.fail(job, log, "processing", err.Error())
				return
			}
			pp.Processed = processed
		}

		pages = append(pages, pp)
		job.IncrRendered()
	}

	if len(pages) == 0 {
		w.fail(job, log, "rendering", "no pages could be rendered")
		return
	}

	// Phase 4: re-encode. A single embedding failure aborts the export.
	job.SetStatus(StatusExporting, "exporting")
	start := time.Now()
	chunks, err := export.PDFChunked(pages, job.BatchSize, job.Metadata)
	w.stats.Record("export", time.Since(start))
	if err != nil {
		w.fail(job, log, "exporting", err.Error())
		return
	}

	// Phase 5: structural validation of the produced bytes.
	job.SetStatus(StatusValidating, "validating")
	conf := model.NewDefaultConfiguration()
	for ci, c := range chunks {
		start = time.Now()
		err := api.Validate(bytes.NewReader(c), conf)
		w.stats.Record("validate", time.Since(start))
		if err != nil {
			w.fail(job, log, "validating", fmt.Sprintf("chunk %d: %s", ci, err))
			return
		}
	}

	job.SetResult(chunks)

	snap := job.Snapshot()
	if snap.Progress.PagesSkipped > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("conversion complete",
		"pages", snap.Progress.PagesRendered,
		"skipped", snap.Progress.PagesSkipped,
		"output_bytes", snap.Progress.OutputBytes,
		"chunks", len(chunks),
	)
}

func (w *Worker) fail(job *Job, log *slog.Logger, phase, msg string) {
	log.Error("job failed", "phase", phase, "error", msg)
	job.AddError(msg)
	job.SetStatus(StatusFailed, phase)
}
