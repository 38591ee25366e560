// Package estimate predicts the memory and output-size cost of a batch
// render before committing to it. Estimates are advisory: this package never
// errors and never blocks a caller on its own.
package estimate

import (
	"math"

	"github.com/rescanio/rescan/internal/page"
	"github.com/rescanio/rescan/internal/render"
)

// DefaultBudgetMB is the memory budget applied when the caller passes none.
const DefaultBudgetMB = 500

// Transient and compressed copies during render/process roughly add half of
// the raw pixel buffer again.
const overheadFactor = 1.5

// Feasibility is the estimator's recommendation for a batch render.
type Feasibility struct {
	EstimatedMB float64  `json:"estimated_mb"`
	BudgetMB    float64  `json:"budget_mb"`
	Feasible    bool     `json:"feasible"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Memory estimates the peak working set of rendering every page in bounds at
// the given options. bytesPerPixel reserves an alpha slot regardless of color
// mode: channels + 1.
func Memory(bounds []page.Bounds, opts render.Options, budgetMB float64) Feasibility {
	if budgetMB <= 0 {
		budgetMB = DefaultBudgetMB
	}

	channels := 3
	if opts.ColorMode == render.ColorGray {
		channels = 1
	}
	bytesPerPixel := float64(channels + 1)

	var total float64
	for _, b := range bounds {
		w, h := opts.PixelSize(b)
		total += float64(w) * float64(h) * bytesPerPixel * overheadFactor
	}
	estimatedMB := total / (1024 * 1024)

	f := Feasibility{
		EstimatedMB: round1(estimatedMB),
		BudgetMB:    budgetMB,
		Feasible:    estimatedMB <= budgetMB,
	}
	if !f.Feasible {
		f.Suggestions = suggestions(opts)
	}
	return f
}

// suggestions are ordered by how much they typically save. Advisory only;
// never auto-applied.
func suggestions(opts render.Options) []string {
	var s []string
	if opts.DPI > render.MinDPI {
		s = append(s, "reduce DPI (memory scales with the square of DPI)")
	}
	if opts.ColorMode != render.ColorGray {
		s = append(s, "switch to grayscale rendering (half the bytes per pixel)")
	}
	s = append(s, "process the document in smaller batches")
	return s
}

// Per-page structural overhead of the output PDF, plus a container/metadata
// multiplier over the summed image payloads.
const (
	perPageOverheadBytes = 1024
	containerOverhead    = 1.10
)

// OutputSize estimates the byte length of the PDF that exporting pages would
// produce.
func OutputSize(pages []page.ProcessedPage) int64 {
	var total float64
	for _, p := range pages {
		if img := p.Image(); img != nil {
			total += float64(len(img.Data))
		}
		total += perPageOverheadBytes
	}
	return int64(total * containerOverhead)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
