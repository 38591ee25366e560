// Package page holds the value types shared across the conversion pipeline:
// physical page geometry and the per-page unit handed to the PDF re-encoder.
package page

// PDF user-space unit: 1 pt = 1/72 inch.
const PointsPerInch = 72.0

// A4 portrait in points, substituted when a page's geometry cannot be read.
const (
	FallbackWidthPt  = 595.28
	FallbackHeightPt = 841.89
)

// Bounds is a page's physical rectangle in PDF user space, in points.
// Immutable once extracted.
type Bounds struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (b Bounds) WidthPt() float64  { return b.X1 - b.X0 }
func (b Bounds) HeightPt() float64 { return b.Y1 - b.Y0 }

// Valid reports whether the rectangle has positive area.
func (b Bounds) Valid() bool {
	return b.WidthPt() > 0 && b.HeightPt() > 0
}

// FallbackBounds returns the A4 substitute used when extraction fails.
func FallbackBounds() Bounds {
	return Bounds{X0: 0, Y0: 0, X1: FallbackWidthPt, Y1: FallbackHeightPt}
}

// BoundsResult tags a per-page extraction outcome. A fallback is not an
// error: the page is still processed, but callers can surface the reason
// as a data-quality warning.
type BoundsResult struct {
	PageIndex int    `json:"page_index"`
	Bounds    Bounds `json:"bounds"`
	Fallback  bool   `json:"fallback"`
	Reason    string `json:"reason,omitempty"`
}
