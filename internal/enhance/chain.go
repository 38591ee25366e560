package enhance

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/rescanio/rescan/internal/raster"
)

// ProcessingError names the chain stage that failed. The chain never
// partially applies a stage: the whole call for the page fails.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("enhancement stage %q: %v", e.Stage, e.Err)
}
func (e *ProcessingError) Unwrap() error { return e.Err }

// Process runs the enhancement chain over im and returns a new PNG-encoded
// image plus any parameter-correction warnings. With every stage skipped the
// output byte-equals raster.ReencodePNG(im).
func Process(im *raster.Image, p Params) (*raster.Image, []Warning, error) {
	warns := p.Clamp()

	img, err := im.Decode()
	if err != nil {
		return nil, warns, &ProcessingError{Stage: "decode", Err: err}
	}

	// Stage order is fixed; each skip condition is load-bearing.
	if p.Gamma != 1.0 {
		img = imaging.AdjustGamma(img, p.Gamma)
	}
	if p.Grayscale {
		img = imaging.Grayscale(img)
	}
	if p.Contrast != 1.0 || p.Brightness != 0 {
		img = linearMap(img, p.Contrast, p.Brightness)
	}
	if p.Denoise {
		img = imaging.Blur(img, denoiseSigma)
	}
	if p.Sharpen.Sigma > 0 {
		img = unsharp(img, p.Sharpen)
	}
	if p.Threshold > 0 {
		img = threshold(img, p.Threshold, p.Grayscale)
	}
	if p.ColorReplace.Enabled {
		img = colorReplace(img, p.ColorReplace)
	}

	out, err := raster.EncodePNG(img)
	if err != nil {
		return nil, warns, &ProcessingError{Stage: "encode", Err: err}
	}
	return out, warns, nil
}

// Fixed light gaussian for the denoise stage.
const denoiseSigma = 0.5

// linearMap applies out = in*contrast + brightness per color channel,
// clamped to [0,255]. Alpha is untouched.
func linearMap(img image.Image, contrast, brightness float64) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 0; i < len(out.Pix); i += 4 {
		for c := range 3 {
			out.Pix[i+c] = clampU8(float64(out.Pix[i+c])*contrast + brightness)
		}
	}
	return out
}

// unsharp is an unsharp-mask operator: the image minus a gaussian blur of
// itself is the local difference d; small differences (|d| below a couple of
// levels) are scaled by Flat, larger ones by Jagged.
func unsharp(img image.Image, sp SharpenParams) *image.NRGBA {
	src := imaging.Clone(img)
	blurred := imaging.Blur(src, sp.Sigma)

	const flatCutoff = 2.0

	out := imaging.Clone(src)
	for i := 0; i < len(out.Pix); i += 4 {
		for c := range 3 {
			d := float64(src.Pix[i+c]) - float64(blurred.Pix[i+c])
			m := sp.Jagged
			if math.Abs(d) < flatCutoff {
				m = sp.Flat
			}
			out.Pix[i+c] = clampU8(float64(src.Pix[i+c]) + m*d)
		}
	}
	return out
}

// threshold binarizes at t. In grayscale mode a single luminance decision
// drives all channels; otherwise each channel is thresholded independently.
func threshold(img image.Image, t int, grayscale bool) *image.NRGBA {
	out := imaging.Clone(img)
	th := uint8(t)
	for i := 0; i < len(out.Pix); i += 4 {
		if grayscale {
			lum := luminance(out.Pix[i], out.Pix[i+1], out.Pix[i+2])
			v := uint8(0)
			if lum >= th {
				v = 255
			}
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = v, v, v
			continue
		}
		for c := range 3 {
			if out.Pix[i+c] >= th {
				out.Pix[i+c] = 255
			} else {
				out.Pix[i+c] = 0
			}
		}
	}
	return out
}

// colorReplace overwrites RGB wherever every channel is within tolerance of
// the target, independently per channel. No blending, no colorspace
// conversion; alpha is left untouched.
func colorReplace(img image.Image, cr ColorReplaceParams) *image.NRGBA {
	out := imaging.Clone(img)
	tol := cr.Tolerance
	for i := 0; i < len(out.Pix); i += 4 {
		if absDiff(out.Pix[i], cr.Target.R) <= tol &&
			absDiff(out.Pix[i+1], cr.Target.G) <= tol &&
			absDiff(out.Pix[i+2], cr.Target.B) <= tol {
			out.Pix[i] = cr.Replace.R
			out.Pix[i+1] = cr.Replace.G
			out.Pix[i+2] = cr.Replace.B
		}
	}
	return out
}

// luminance is the Rec. 601 weighted sum used for single-channel decisions.
func luminance(r, g, b uint8) uint8 {
	return uint8(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b) + 0.5)
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
