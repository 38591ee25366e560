package enhance

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/rescanio/rescan/internal/raster"
)

// testImage encodes a small NRGBA fill as the chain's input format.
func testImage(t *testing.T, w, h int, c color.NRGBA) *raster.Image {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	out, err := raster.EncodePNG(img)
	if err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return out
}

func decodeNRGBA(t *testing.T, im *raster.Image) *image.NRGBA {
	t.Helper()
	img, err := im.Decode()
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func TestProcess_AllStagesSkippedIsReencode(t *testing.T) {
	in := testImage(t, 8, 8, color.NRGBA{R: 120, G: 30, B: 200, A: 255})

	got, warns, err := Process(in, Defaults())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("expected no warnings, got %v", warns)
	}

	want, err := raster.ReencodePNG(in)
	if err != nil {
		t.Fatalf("reencode: %v", err)
	}
	if !bytes.Equal(got.Data, want.Data) {
		t.Error("expected no-op chain output to byte-equal the PNG re-encode")
	}
}

func TestProcess_UndecodableInput(t *testing.T) {
	in := &raster.Image{Format: raster.FormatPNG, Data: []byte("not a png")}
	_, _, err := Process(in, Defaults())
	if err == nil {
		t.Fatal("expected error for undecodable input")
	}
	pe, ok := err.(*ProcessingError)
	if !ok {
		t.Fatalf("expected *ProcessingError, got %T", err)
	}
	if pe.Stage != "decode" {
		t.Errorf("expected stage %q, got %q", "decode", pe.Stage)
	}
}

func TestProcess_ClampWarningsSurfaced(t *testing.T) {
	in := testImage(t, 4, 4, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	p := Defaults()
	p.Contrast = 5.0

	_, warns, err := Process(in, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warns) != 1 || warns[0].Field != "contrast" {
		t.Errorf("expected one contrast warning, got %v", warns)
	}
}

func TestColorReplace_WithinTolerance(t *testing.T) {
	in := testImage(t, 4, 4, color.NRGBA{R: 224, G: 224, B: 224, A: 255})
	p := Defaults()
	p.ColorReplace = ColorReplaceParams{
		Enabled:   true,
		Target:    RGB{R: 230, G: 230, B: 230},
		Replace:   RGB{R: 255, G: 255, B: 255},
		Tolerance: 10,
	}

	out, _, err := Process(in, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	px := decodeNRGBA(t, out)
	r, g, b, a := px.Pix[0], px.Pix[1], px.Pix[2], px.Pix[3]
	if r != 255 || g != 255 || b != 255 {
		t.Errorf("expected (255,255,255), got (%d,%d,%d)", r, g, b)
	}
	if a != 255 {
		t.Errorf("expected alpha untouched at 255, got %d", a)
	}
}

func TestColorReplace_OneChannelOutOfTolerance(t *testing.T) {
	// Blue is 21 levels away from the target; the pixel must not change
	// even though red and green match exactly.
	in := testImage(t, 4, 4, color.NRGBA{R: 230, G: 230, B: 251, A: 255})
	p := Defaults()
	p.ColorReplace = ColorReplaceParams{
		Enabled:   true,
		Target:    RGB{R: 230, G: 230, B: 230},
		Replace:   RGB{R: 0, G: 0, B: 0},
		Tolerance: 20,
	}

	out, _, err := Process(in, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	px := decodeNRGBA(t, out)
	if px.Pix[0] != 230 || px.Pix[1] != 230 || px.Pix[2] != 251 {
		t.Errorf("expected pixel unchanged, got (%d,%d,%d)", px.Pix[0], px.Pix[1], px.Pix[2])
	}
}

func TestThreshold_PerChannel(t *testing.T) {
	in := testImage(t, 4, 4, color.NRGBA{R: 200, G: 100, B: 128, A: 255})
	p := Defaults()
	p.Threshold = 128

	out, _, err := Process(in, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	px := decodeNRGBA(t, out)
	if px.Pix[0] != 255 {
		t.Errorf("expected red 255, got %d", px.Pix[0])
	}
	if px.Pix[1] != 0 {
		t.Errorf("expected green 0, got %d", px.Pix[1])
	}
	// At exactly the threshold value, the channel goes white.
	if px.Pix[2] != 255 {
		t.Errorf("expected blue 255, got %d", px.Pix[2])
	}
}

func TestThreshold_GrayscaleLuminance(t *testing.T) {
	// Luminance of (200,100,128) is ~133, above a threshold of 130, so all
	// channels go white together in grayscale mode.
	in := testImage(t, 4, 4, color.NRGBA{R: 200, G: 100, B: 128, A: 255})
	p := Defaults()
	p.Grayscale = true
	p.Threshold = 130

	out, _, err := Process(in, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	px := decodeNRGBA(t, out)
	if px.Pix[0] != 255 || px.Pix[1] != 255 || px.Pix[2] != 255 {
		t.Errorf("expected white pixel, got (%d,%d,%d)", px.Pix[0], px.Pix[1], px.Pix[2])
	}
}

func TestLinearMap_BrightnessClamps(t *testing.T) {
	in := testImage(t, 4, 4, color.NRGBA{R: 240, G: 10, B: 128, A: 255})
	p := Defaults()
	p.Brightness = 50

	out, _, err := Process(in, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	px := decodeNRGBA(t, out)
	if px.Pix[0] != 255 {
		t.Errorf("expected red clamped to 255, got %d", px.Pix[0])
	}
	if px.Pix[1] != 60 {
		t.Errorf("expected green 60, got %d", px.Pix[1])
	}
	if px.Pix[2] != 178 {
		t.Errorf("expected blue 178, got %d", px.Pix[2])
	}
}

func TestGrayscale_EqualChannels(t *testing.T) {
	in := testImage(t, 4, 4, color.NRGBA{R: 200, G: 50, B: 100, A: 255})
	p := Defaults()
	p.Grayscale = true

	out, _, err := Process(in, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	px := decodeNRGBA(t, out)
	if px.Pix[0] != px.Pix[1] || px.Pix[1] != px.Pix[2] {
		t.Errorf("expected equal channels, got (%d,%d,%d)", px.Pix[0], px.Pix[1], px.Pix[2])
	}
}

func TestLuminance_Weights(t *testing.T) {
	if got := luminance(255, 255, 255); got != 255 {
		t.Errorf("expected 255, got %d", got)
	}
	if got := luminance(0, 0, 0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	// Pure green dominates the weighted sum.
	if g, r := luminance(0, 255, 0), luminance(255, 0, 0); g <= r {
		t.Errorf("expected green luminance (%d) above red (%d)", g, r)
	}
}
