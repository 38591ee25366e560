package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rescanio/rescan/internal/enhance"
	"github.com/rescanio/rescan/internal/estimate"
	"github.com/rescanio/rescan/internal/export"
	"github.com/rescanio/rescan/internal/page"
	"github.com/rescanio/rescan/internal/pipeline"
	"github.com/rescanio/rescan/internal/raster"
	"github.com/rescanio/rescan/internal/render"
)

// exportRequest is the body of /export and the "options" form field of
// /convert. Params are raw JSON so an absent blob keeps preset or default
// values instead of zeroing them.
type exportRequest struct {
	DPI       float64         `json:"dpi,omitempty"`
	ColorMode string          `json:"color_mode,omitempty"`
	Format    string          `json:"format,omitempty"`
	Quality   int             `json:"quality,omitempty"`
	BudgetMB  float64         `json:"budget_mb,omitempty"`
	BatchSize int             `json:"batch_size,omitempty"`
	Preset    string          `json:"preset,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`

	Metadata *export.Metadata `json:"metadata,omitempty"`

	SkipFailedPages bool `json:"skip_failed_pages,omitempty"`
	EnforceBudget   bool `json:"enforce_budget,omitempty"`

	Password string `json:"password,omitempty"`
}

func (s *Server) renderOptions(req exportRequest) render.Options {
	opts := render.DefaultOptions()
	opts.DPI = s.cfg.DefaultDPI
	opts.Quality = s.cfg.DefaultJPEGQual
	if req.DPI > 0 {
		opts.DPI = req.DPI
	}
	if req.ColorMode != "" {
		opts.ColorMode = render.ColorMode(req.ColorMode)
	}
	if req.Format != "" {
		opts.Format = raster.Format(req.Format)
	}
	if req.Quality > 0 {
		opts.Quality = req.Quality
	}
	return opts
}

// enhanceParams resolves the preset/params pair of an export request.
func (s *Server) enhanceParams(w http.ResponseWriter, req exportRequest) (enhance.Params, bool) {
	params := enhance.Defaults()
	if req.Preset != "" {
		p, ok := s.presets[req.Preset]
		if !ok {
			jsonError(w, "unknown preset: "+req.Preset, http.StatusBadRequest)
			return params, false
		}
		params = p
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			jsonError(w, "invalid params: "+err.Error(), http.StatusBadRequest)
			return params, false
		}
	}
	return params, true
}

// handleFeasibility estimates the working set of rendering every page of an
// open session at the requested options, against a memory budget.
func (s *Server) handleFeasibility(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	if sess.Doc.NeedsPassword() {
		jsonError(w, "document is password protected", http.StatusLocked)
		return
	}

	var req exportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	results, err := sess.Bounds()
	if err != nil {
		jsonError(w, err.Error(), statusForDocErr(err))
		return
	}
	bounds := make([]page.Bounds, len(results))
	for i, br := range results {
		bounds[i] = br.Bounds
	}

	budget := s.cfg.MemoryBudgetMB
	if req.BudgetMB > 0 {
		budget = req.BudgetMB
	}
	f := estimate.Memory(bounds, s.renderOptions(req), budget)
	writeJSON(w, http.StatusOK, f)
}

// handleExport queues a conversion job for an already open session.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	if sess.Doc.NeedsPassword() {
		jsonError(w, "document is password protected", http.StatusLocked)
		return
	}

	var req exportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	s.submitJob(w, sess.Doc.PlainBytes(), sess.Filename, req)
}

// handleConvert is the one-shot path: upload, convert, poll, download.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	var req exportRequest
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			jsonError(w, "invalid options: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if pw := r.FormValue("password"); pw != "" {
		req.Password = pw
	}

	s.submitJob(w, data, filename, req)
}

func (s *Server) submitJob(w http.ResponseWriter, data []byte, filename string, req exportRequest) {
	params, ok := s.enhanceParams(w, req)
	if !ok {
		return
	}

	batchSize := s.cfg.ExportBatchSize
	if req.BatchSize > 0 {
		batchSize = req.BatchSize
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:        pipeline.NewJobID(data, filename, now),
		Filename:  filename,
		Status:    pipeline.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,

		RenderOpts: s.renderOptions(req),
		Params:     params,
		Metadata:   req.Metadata,
		BatchSize:  batchSize,

		SkipFailedPages: req.SkipFailedPages,
		EnforceBudget:   req.EnforceBudget,
	}
	job.SetFileData(data, req.Password)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}
