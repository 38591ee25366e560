package enhance

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// presetFile is the on-disk shape of a preset collection:
//
//	[presets.scan-cleanup]
//	grayscale = true
//	contrast = 1.3
//	denoise = true
//	[presets.scan-cleanup.sharpen]
//	sigma = 1.0
type presetFile struct {
	Presets map[string]Params `toml:"presets"`
}

// LoadPresets reads named parameter presets from a TOML file. A missing file
// is not an error; built-in presets are returned instead. Omitted fields take
// their neutral defaults, out-of-range values are clamped silently here
// (preset authors see the corrected values via the API's preset listing).
func LoadPresets(path string) (map[string]Params, error) {
	presets := builtinPresets()

	if path == "" {
		return presets, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return presets, nil
	} else if err != nil {
		return nil, err
	}

	var pf presetFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("parsing presets %s: %w", path, err)
	}

	for name, p := range pf.Presets {
		p.FillUnset()
		p.Clamp()
		presets[name] = p
	}
	return presets, nil
}

func builtinPresets() map[string]Params {
	scan := Defaults()
	scan.Grayscale = true
	scan.Contrast = 1.3
	scan.Denoise = true
	scan.Sharpen.Sigma = 1.0

	text := Defaults()
	text.Grayscale = true
	text.Threshold = 180

	lighten := Defaults()
	lighten.Gamma = 1.4
	lighten.Brightness = 10

	return map[string]Params{
		"scan-cleanup":  scan,
		"text-binarize": text,
		"lighten":       lighten,
	}
}
