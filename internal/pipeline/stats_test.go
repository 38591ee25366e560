package pipeline

import (
	"testing"
	"time"
)

func TestPhaseStats_RecordAndSnapshot(t *testing.T) {
	s := NewPhaseStats(time.Hour)
	s.Record("render", 100*time.Millisecond)
	s.Record("render", 200*time.Millisecond)
	s.Record("render", 300*time.Millisecond)
	s.Record("export", 50*time.Millisecond)

	snap := s.Snapshot()
	r, ok := snap["render"]
	if !ok {
		t.Fatal("expected render phase in snapshot")
	}
	if r.Count != 3 {
		t.Errorf("expected 3 samples, got %d", r.Count)
	}
	if r.MinMs != 100 || r.MaxMs != 300 {
		t.Errorf("expected min/max 100/300, got %d/%d", r.MinMs, r.MaxMs)
	}
	if r.AvgMs != 200 {
		t.Errorf("expected avg 200, got %v", r.AvgMs)
	}
	if r.P50Ms != 200 {
		t.Errorf("expected p50 200, got %v", r.P50Ms)
	}

	e, ok := snap["export"]
	if !ok {
		t.Fatal("expected export phase in snapshot")
	}
	if e.Count != 1 {
		t.Errorf("expected 1 export sample, got %d", e.Count)
	}
}

func TestPhaseStats_WindowPruning(t *testing.T) {
	s := NewPhaseStats(30 * time.Millisecond)
	s.Record("render", 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	s.Record("render", 20*time.Millisecond)

	snap := s.Snapshot()
	if got := snap["render"].Count; got != 1 {
		t.Errorf("expected 1 sample after window pruning, got %d", got)
	}
}

func TestPhaseStats_NilReceiver(t *testing.T) {
	var s *PhaseStats
	// Must be a no-op, not a panic.
	s.Record("render", time.Second)
}

func TestPhaseStats_EmptySnapshot(t *testing.T) {
	s := NewPhaseStats(time.Hour)
	if snap := s.Snapshot(); len(snap) != 0 {
		t.Errorf("expected empty snapshot, got %v", snap)
	}
}

func TestPercentile(t *testing.T) {
	values := []int64{100, 200, 300, 400, 500}

	if got := percentile(values, 50); got != 300 {
		t.Errorf("expected p50 300, got %v", got)
	}
	if got := percentile(values, 0); got != 100 {
		t.Errorf("expected p0 100, got %v", got)
	}
	if got := percentile(values, 100); got != 500 {
		t.Errorf("expected p100 500, got %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("expected 0 for empty input, got %v", got)
	}
	// Interpolated: p75 of 5 values sits between index 3 and 4.
	if got := percentile(values, 75); got != 400 {
		t.Errorf("expected p75 400, got %v", got)
	}
}
