package pipeline

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
}

// StatsSnapshot is a point-in-time aggregate of phase duration samples.
type StatsSnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// PhaseStats tracks recent durations of the pipeline phases (render,
// process, export, validate) within a rolling window.
type PhaseStats struct {
	mu     sync.Mutex
	phases map[string][]sample
	maxAge time.Duration
}

func NewPhaseStats(maxAge time.Duration) *PhaseStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &PhaseStats{
		phases: make(map[string][]sample),
		maxAge: maxAge,
	}
}

// Record adds one sample. A nil PhaseStats records nothing, so callers that
// do not collect stats can pass nil.
func (s *PhaseStats) Record(phase string, d time.Duration) {
	if s == nil {
		return
	}
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.phases[phase] = append(s.pruneLocked(phase, now), sample{
		timestamp:  now,
		durationMs: ms,
	})
}

// Snapshot aggregates every phase's samples within the window.
func (s *PhaseStats) Snapshot() map[string]StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]StatsSnapshot, len(s.phases))
	for phase := range s.phases {
		samples := s.pruneLocked(phase, now)
		s.phases[phase] = samples
		if len(samples) == 0 {
			continue
		}

		values := make([]int64, 0, len(samples))
		var sum int64
		for _, sm := range samples {
			values = append(values, sm.durationMs)
			sum += sm.durationMs
		}
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

		out[phase] = StatsSnapshot{
			Count: len(values),
			MinMs: values[0],
			MaxMs: values[len(values)-1],
			AvgMs: float64(sum) / float64(len(values)),
			P50Ms: percentile(values, 50),
			P95Ms: percentile(values, 95),
			P99Ms: percentile(values, 99),
		}
	}
	return out
}

func (s *PhaseStats) pruneLocked(phase string, now time.Time) []sample {
	cutoff := now.Add(-s.maxAge)
	samples := s.phases[phase]
	writeIdx := 0
	for _, sm := range samples {
		if !sm.timestamp.Before(cutoff) {
			samples[writeIdx] = sm
			writeIdx++
		}
	}
	return samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
