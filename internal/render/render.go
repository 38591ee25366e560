// Package render turns document pages into raster images at a caller-chosen
// pixel density. The density never feeds back into page geometry: pixel size
// is informational, physical size stays with the extracted bounds.
package render

import (
	"fmt"
	"math"

	"github.com/rescanio/rescan/internal/document"
	"github.com/rescanio/rescan/internal/page"
	"github.com/rescanio/rescan/internal/raster"
)

// ColorMode selects the sampling channels of a render.
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// DPI bounds recommended to callers; Render itself does not reject values
// outside this range, the feasibility estimator reasons about them instead.
const (
	MinDPI     = 72
	MaxDPI     = 300
	DefaultDPI = 150

	// Previews never render above 2x the 1:1 point scale.
	maxPreviewDPI = 2 * page.PointsPerInch
)

// Options control one render call.
type Options struct {
	DPI       float64       `json:"dpi"`
	ColorMode ColorMode     `json:"color_mode"`
	Format    raster.Format `json:"format"`
	Quality   int           `json:"quality,omitempty"`
}

// DefaultOptions is the options value used wherever a caller supplies none.
func DefaultOptions() Options {
	return Options{DPI: DefaultDPI, ColorMode: ColorRGB, Format: raster.FormatPNG}
}

// Scale is the uniform pixel-per-point factor on both axes.
func (o Options) Scale() float64 { return o.DPI / page.PointsPerInch }

// PixelSize is the raster size a page with bounds b renders at.
func (o Options) PixelSize(b page.Bounds) (w, h int) {
	s := o.Scale()
	return int(math.Floor(b.WidthPt() * s)), int(math.Floor(b.HeightPt() * s))
}

func (o Options) normalized() Options {
	if o.DPI <= 0 {
		o.DPI = DefaultDPI
	}
	if o.ColorMode == "" {
		o.ColorMode = ColorRGB
	}
	if o.Format == "" {
		o.Format = raster.FormatPNG
	}
	return o
}

// Error wraps a rasterization failure with the page it happened on; the
// caller decides whether to skip the page or abort the batch.
type Error struct {
	PageIndex int
	Err       error
}

func (e *Error) Error() string { return fmt.Sprintf("render page %d: %v", e.PageIndex, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Render rasterizes one page of doc. The scale factor is identical on both
// axes, so aspect ratio always matches the physical bounds.
func Render(doc *document.Document, pageIndex int, b page.Bounds, opts Options) (*raster.Image, error) {
	opts = opts.normalized()

	img, err := doc.RenderImage(pageIndex, opts.DPI)
	if err != nil {
		return nil, &Error{PageIndex: pageIndex, Err: err}
	}
	if opts.ColorMode == ColorGray {
		img = raster.ToGray(img)
	}

	var out *raster.Image
	switch opts.Format {
	case raster.FormatJPEG:
		out, err = raster.EncodeJPEG(img, opts.Quality)
	default:
		out, err = raster.EncodePNG(img)
	}
	if err != nil {
		return nil, &Error{PageIndex: pageIndex, Err: err}
	}
	return out, nil
}

// PreviewOptions derives render options that fit the page into a maxW x maxH
// pixel box: at most 2x scale, never below 72 DPI.
func PreviewOptions(b page.Bounds, maxW, maxH int) Options {
	opts := DefaultOptions()

	fit := math.Min(float64(maxW)/b.WidthPt(), float64(maxH)/b.HeightPt())
	dpi := page.PointsPerInch * fit
	if dpi > maxPreviewDPI {
		dpi = maxPreviewDPI
	}
	if dpi < MinDPI {
		dpi = MinDPI
	}
	opts.DPI = dpi
	return opts
}
