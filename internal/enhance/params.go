// Package enhance applies the fixed-order image enhancement chain:
// gamma, grayscale, linear contrast/brightness, denoise, sharpen, threshold,
// color substitution. Stage order is part of the contract and never depends
// on parameter values.
package enhance

import "fmt"

// RGB is an 8-bit color triple.
type RGB struct {
	R uint8 `json:"r" toml:"r"`
	G uint8 `json:"g" toml:"g"`
	B uint8 `json:"b" toml:"b"`
}

// SharpenParams parameterize the unsharp-mask stage. Sigma <= 0 disables it.
// Flat is the slope applied to small local differences, Jagged to large ones.
type SharpenParams struct {
	Sigma  float64 `json:"sigma" toml:"sigma"`
	Flat   float64 `json:"flat" toml:"flat"`
	Jagged float64 `json:"jagged" toml:"jagged"`
}

// ColorReplaceParams parameterize the per-pixel color substitution pass.
type ColorReplaceParams struct {
	Enabled   bool `json:"enabled" toml:"enabled"`
	Target    RGB  `json:"target_color" toml:"target_color"`
	Replace   RGB  `json:"replace_color" toml:"replace_color"`
	Tolerance int  `json:"tolerance" toml:"tolerance"`
}

// Params are the enhancement knobs. Out-of-range values are corrected, never
// rejected; each correction is reported as a Warning.
type Params struct {
	Grayscale    bool               `json:"grayscale" toml:"grayscale"`
	Contrast     float64            `json:"contrast" toml:"contrast"`
	Brightness   float64            `json:"brightness" toml:"brightness"`
	Threshold    int                `json:"threshold" toml:"threshold"`
	Sharpen      SharpenParams      `json:"sharpen" toml:"sharpen"`
	Denoise      bool               `json:"denoise" toml:"denoise"`
	Gamma        float64            `json:"gamma" toml:"gamma"`
	ColorReplace ColorReplaceParams `json:"color_replace" toml:"color_replace"`
}

// Parameter ranges.
const (
	MinContrast  = 0.1
	MaxContrast  = 3.0
	MinBright    = -100.0
	MaxBright    = 100.0
	MaxThreshold = 255
	MaxSigma     = 10.0
	MinGamma     = 0.1
	MaxGamma     = 3.0
	MaxTolerance = 50

	defaultFlat   = 1.0
	defaultJagged = 2.0
)

// Defaults returns a Params value where every stage is a no-op.
func Defaults() Params {
	return Params{
		Contrast: 1.0,
		Gamma:    1.0,
		Sharpen:  SharpenParams{Flat: defaultFlat, Jagged: defaultJagged},
	}
}

// FillUnset replaces zero values that have no sensible zero meaning with
// their neutral defaults. Used after decoding JSON or TOML input, where an
// omitted field arrives as zero.
func (p *Params) FillUnset() {
	if p.Contrast == 0 {
		p.Contrast = 1.0
	}
	if p.Gamma == 0 {
		p.Gamma = 1.0
	}
	if p.Sharpen.Flat == 0 && p.Sharpen.Jagged == 0 {
		p.Sharpen.Flat = defaultFlat
		p.Sharpen.Jagged = defaultJagged
	}
}

// Warning records one corrected parameter.
type Warning struct {
	Field     string  `json:"field"`
	Given     float64 `json:"given"`
	Corrected float64 `json:"corrected"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %g out of range, corrected to %g", w.Field, w.Given, w.Corrected)
}

// Clamp corrects out-of-range values in place and reports each correction.
func (p *Params) Clamp() []Warning {
	var warns []Warning

	clampF := func(field string, v *float64, lo, hi float64) {
		if *v < lo || *v > hi {
			c := min(max(*v, lo), hi)
			warns = append(warns, Warning{Field: field, Given: *v, Corrected: c})
			*v = c
		}
	}
	clampI := func(field string, v *int, lo, hi int) {
		if *v < lo || *v > hi {
			c := min(max(*v, lo), hi)
			warns = append(warns, Warning{Field: field, Given: float64(*v), Corrected: float64(c)})
			*v = c
		}
	}

	clampF("contrast", &p.Contrast, MinContrast, MaxContrast)
	clampF("brightness", &p.Brightness, MinBright, MaxBright)
	clampI("threshold", &p.Threshold, 0, MaxThreshold)
	clampF("sharpen.sigma", &p.Sharpen.Sigma, 0, MaxSigma)
	clampF("gamma", &p.Gamma, MinGamma, MaxGamma)
	clampI("color_replace.tolerance", &p.ColorReplace.Tolerance, 0, MaxTolerance)

	return warns
}
