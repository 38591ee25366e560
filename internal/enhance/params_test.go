package enhance

import "testing"

func TestClamp_OutOfRangeContrast(t *testing.T) {
	p := Defaults()
	p.Contrast = 5.0
	warns := p.Clamp()

	if p.Contrast != MaxContrast {
		t.Errorf("expected contrast %v, got %v", MaxContrast, p.Contrast)
	}
	if len(warns) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warns))
	}
	if warns[0].Field != "contrast" || warns[0].Given != 5.0 || warns[0].Corrected != MaxContrast {
		t.Errorf("unexpected warning: %+v", warns[0])
	}
}

func TestClamp_InRangeIsSilent(t *testing.T) {
	p := Defaults()
	p.Contrast = 1.5
	p.Brightness = -50
	p.Threshold = 128
	p.Sharpen.Sigma = 2
	p.Gamma = 0.8
	p.ColorReplace.Tolerance = 10

	if warns := p.Clamp(); len(warns) != 0 {
		t.Errorf("expected no warnings, got %v", warns)
	}
}

func TestClamp_EveryField(t *testing.T) {
	p := Params{
		Contrast:   0.0001,
		Brightness: 500,
		Threshold:  999,
		Sharpen:    SharpenParams{Sigma: 100},
		Gamma:      -1,
	}
	p.ColorReplace.Tolerance = 200

	warns := p.Clamp()
	if len(warns) != 6 {
		t.Fatalf("expected 6 warnings, got %d: %v", len(warns), warns)
	}
	if p.Contrast != MinContrast {
		t.Errorf("expected contrast %v, got %v", MinContrast, p.Contrast)
	}
	if p.Brightness != MaxBright {
		t.Errorf("expected brightness %v, got %v", MaxBright, p.Brightness)
	}
	if p.Threshold != MaxThreshold {
		t.Errorf("expected threshold %v, got %v", MaxThreshold, p.Threshold)
	}
	if p.Sharpen.Sigma != MaxSigma {
		t.Errorf("expected sigma %v, got %v", MaxSigma, p.Sharpen.Sigma)
	}
	if p.Gamma != MinGamma {
		t.Errorf("expected gamma %v, got %v", MinGamma, p.Gamma)
	}
	if p.ColorReplace.Tolerance != MaxTolerance {
		t.Errorf("expected tolerance %v, got %v", MaxTolerance, p.ColorReplace.Tolerance)
	}
}

func TestClamp_NegativeThreshold(t *testing.T) {
	p := Defaults()
	p.Threshold = -10
	warns := p.Clamp()

	if p.Threshold != 0 {
		t.Errorf("expected threshold 0, got %d", p.Threshold)
	}
	if len(warns) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warns))
	}
}

func TestFillUnset_ZeroValues(t *testing.T) {
	var p Params
	p.FillUnset()

	if p.Contrast != 1.0 {
		t.Errorf("expected contrast 1, got %v", p.Contrast)
	}
	if p.Gamma != 1.0 {
		t.Errorf("expected gamma 1, got %v", p.Gamma)
	}
	if p.Sharpen.Flat != defaultFlat || p.Sharpen.Jagged != defaultJagged {
		t.Errorf("expected sharpen slopes %v/%v, got %v/%v",
			defaultFlat, defaultJagged, p.Sharpen.Flat, p.Sharpen.Jagged)
	}
}

func TestFillUnset_KeepsExplicitSlopes(t *testing.T) {
	p := Params{Sharpen: SharpenParams{Flat: 0.5}}
	p.FillUnset()
	if p.Sharpen.Flat != 0.5 || p.Sharpen.Jagged != 0 {
		t.Errorf("expected slopes 0.5/0 preserved, got %v/%v", p.Sharpen.Flat, p.Sharpen.Jagged)
	}
}

func TestWarning_String(t *testing.T) {
	w := Warning{Field: "contrast", Given: 5, Corrected: 3}
	want := "contrast 5 out of range, corrected to 3"
	if got := w.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
