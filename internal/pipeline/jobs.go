package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/rescanio/rescan/internal/enhance"
	"github.com/rescanio/rescan/internal/export"
	"github.com/rescanio/rescan/internal/render"
)

// JobStatus represents the state of a conversion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusOpening    JobStatus = "opening"
	StatusBounds     JobStatus = "extracting_bounds"
	StatusRendering  JobStatus = "rendering"
	StatusExporting  JobStatus = "exporting"
	StatusValidating JobStatus = "validating"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
)

// Job tracks the state of one document conversion.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Conversion inputs; set once at submit time, read-only afterwards.
	RenderOpts render.Options
	Params     enhance.Params
	Metadata   *export.Metadata
	BatchSize  int

	// SkipFailedPages lets a batch continue past per-page render or
	// processing failures; the skipped pages are surfaced in the errors.
	SkipFailedPages bool
	// EnforceBudget fails the job instead of just warning when the
	// feasibility estimate exceeds the memory budget.
	EnforceBudget bool

	// Internal: not serialized.
	fileData []byte
	password string
	result   [][]byte
}

// Progress tracks per-page conversion progress.
type Progress struct {
	TotalPages    int      `json:"total_pages"`
	PagesRendered int      `json:"pages_rendered"`
	PagesSkipped  int      `json:"pages_skipped"`
	OutputBytes   int64    `json:"output_bytes"`
	Warnings      []string `json:"warnings"`
	Errors        []string `json:"errors"`
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records a per-page or fatal error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Errors = append(j.Progress.Errors, err)
	j.UpdatedAt = time.Now()
}

// AddWarning records a non-fatal data-quality or feasibility warning.
func (j *Job) AddWarning(w string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Warnings = append(j.Progress.Warnings, w)
	j.UpdatedAt = time.Now()
}

// SetTotalPages records the page count once bounds are known.
func (j *Job) SetTotalPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalPages = n
	j.UpdatedAt = time.Now()
}

// IncrRendered atomically bumps the rendered-page counter.
func (j *Job) IncrRendered() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PagesRendered++
	j.UpdatedAt = time.Now()
}

// IncrSkipped atomically bumps the skipped-page counter.
func (j *Job) IncrSkipped() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PagesSkipped++
	j.UpdatedAt = time.Now()
}

// SetFileData sets the uploaded PDF bytes and optional password.
func (j *Job) SetFileData(data []byte, password string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
	j.password = password
}

// SetResult stores the produced PDF chunks.
func (j *Job) SetResult(chunks [][]byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = chunks
	var total int64
	for _, c := range chunks {
		total += int64(len(c))
	}
	j.Progress.OutputBytes = total
	j.UpdatedAt = time.Now()
}

// Result returns the produced PDF chunks (nil until the job completes).
func (j *Job) Result() [][]byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Filename  string    `json:"filename"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	warns := j.Progress.Warnings
	if warns == nil {
		warns = []string{}
	}
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:       j.ID,
		Filename: j.Filename,
		Status:   j.Status,
		Phase:    j.Phase,
		Progress: Progress{
			TotalPages:    j.Progress.TotalPages,
			PagesRendered: j.Progress.PagesRendered,
			PagesSkipped:  j.Progress.PagesSkipped,
			OutputBytes:   j.Progress.OutputBytes,
			Warnings:      warns,
			Errors:        errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// NewJobID derives a job ID from the upload content and submission time.
func NewJobID(data []byte, filename string, now time.Time) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s-%d-%x", filename, now.UnixNano(), sha256.Sum256(data)))
	return fmt.Sprintf("%x", h[:10])
}
