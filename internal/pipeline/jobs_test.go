package pipeline

import (
	"testing"
	"time"
)

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusOpening, "opening"},
		{StatusBounds, "extracting_bounds"},
		{StatusRendering, "rendering"},
		{StatusExporting, "exporting"},
		{StatusValidating, "validating"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_ProgressCounters(t *testing.T) {
	job := &Job{ID: "test-2"}
	job.SetTotalPages(10)
	for range 7 {
		job.IncrRendered()
	}
	for range 2 {
		job.IncrSkipped()
	}
	job.AddWarning("page 3: A4 fallback bounds (missing MediaBox)")
	job.AddError("page 5: render failed")

	snap := job.Snapshot()
	if snap.Progress.TotalPages != 10 {
		t.Errorf("expected 10 total pages, got %d", snap.Progress.TotalPages)
	}
	if snap.Progress.PagesRendered != 7 {
		t.Errorf("expected 7 rendered, got %d", snap.Progress.PagesRendered)
	}
	if snap.Progress.PagesSkipped != 2 {
		t.Errorf("expected 2 skipped, got %d", snap.Progress.PagesSkipped)
	}
	if len(snap.Progress.Warnings) != 1 || len(snap.Progress.Errors) != 1 {
		t.Errorf("expected 1 warning and 1 error, got %d and %d",
			len(snap.Progress.Warnings), len(snap.Progress.Errors))
	}
}

func TestJob_SetResultTracksOutputBytes(t *testing.T) {
	job := &Job{ID: "test-3"}
	job.SetResult([][]byte{make([]byte, 1000), make([]byte, 234)})

	if got := job.Snapshot().Progress.OutputBytes; got != 1234 {
		t.Errorf("expected 1234 output bytes, got %d", got)
	}
	if chunks := job.Result(); len(chunks) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(chunks))
	}
}

func TestJob_SnapshotNeverNilSlices(t *testing.T) {
	job := &Job{ID: "test-4"}
	snap := job.Snapshot()
	if snap.Progress.Warnings == nil || snap.Progress.Errors == nil {
		t.Error("expected empty slices, not nil, in snapshot")
	}
}

func TestJobStore_PutGetCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	job := &Job{ID: "short-lived", UpdatedAt: time.Now()}
	store.Put(job)

	if got := store.Get("short-lived"); got != job {
		t.Fatal("expected to get stored job back")
	}
	if got := store.Get("missing"); got != nil {
		t.Errorf("expected nil for unknown id, got %+v", got)
	}

	time.Sleep(80 * time.Millisecond)
	store.Cleanup()
	if got := store.Get("short-lived"); got != nil {
		t.Error("expected expired job to be cleaned up")
	}
}

func TestNewJobID_Distinct(t *testing.T) {
	now := time.Now()
	a := NewJobID([]byte("aaa"), "a.pdf", now)
	b := NewJobID([]byte("bbb"), "a.pdf", now)
	if a == b {
		t.Error("expected different ids for different content")
	}
	c := NewJobID([]byte("aaa"), "a.pdf", now.Add(time.Nanosecond))
	if a == c {
		t.Error("expected different ids for different submission times")
	}
	if len(a) != 20 {
		t.Errorf("expected 20 hex chars, got %d (%q)", len(a), a)
	}
}
