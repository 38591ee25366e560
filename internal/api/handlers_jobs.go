package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rescanio/rescan/internal/pipeline"
)

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.job(w, r)
	if job == nil {
		return
	}
	snap := job.Snapshot()
	resp := map[string]any{
		"job_id":     snap.ID,
		"filename":   snap.Filename,
		"status":     snap.Status,
		"phase":      snap.Phase,
		"progress":   snap.Progress,
		"created_at": snap.CreatedAt,
		"updated_at": snap.UpdatedAt,
	}
	if snap.Status == pipeline.StatusCompleted || snap.Status == pipeline.StatusPartial {
		resp["chunks"] = len(job.Result())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleJobDownload streams a finished chunk. Without ?chunk= the first (and
// for unbatched jobs, only) chunk is returned.
func (s *Server) handleJobDownload(w http.ResponseWriter, r *http.Request) {
	job := s.job(w, r)
	if job == nil {
		return
	}

	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusCompleted, pipeline.StatusPartial:
	case pipeline.StatusFailed:
		jsonError(w, "job failed", http.StatusConflict)
		return
	default:
		jsonError(w, "job not finished", http.StatusConflict)
		return
	}

	chunks := job.Result()
	if len(chunks) == 0 {
		jsonError(w, "job produced no output", http.StatusConflict)
		return
	}

	idx := 0
	if v := r.URL.Query().Get("chunk"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n >= len(chunks) {
			jsonError(w, fmt.Sprintf("chunk must be 0..%d", len(chunks)-1), http.StatusBadRequest)
			return
		}
		idx = n
	}

	name := snap.Filename
	if len(chunks) > 1 {
		name = fmt.Sprintf("%s.part%d.pdf", name, idx)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(chunks[idx])))
	w.WriteHeader(http.StatusOK)
	w.Write(chunks[idx])
}

func (s *Server) job(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	id := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(id)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	return job
}
