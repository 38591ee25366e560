package raster

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func grid(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 17), G: uint8(y * 31), B: 128, A: 255})
		}
	}
	return img
}

func TestEncodePNG_Metadata(t *testing.T) {
	im, err := EncodePNG(grid(12, 7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if im.Width != 12 || im.Height != 7 {
		t.Errorf("expected 12x7, got %dx%d", im.Width, im.Height)
	}
	if im.Channels != 3 {
		t.Errorf("expected 3 channels, got %d", im.Channels)
	}
	if im.Format != FormatPNG {
		t.Errorf("expected format %q, got %q", FormatPNG, im.Format)
	}
}

func TestReencodePNG_Stable(t *testing.T) {
	first, err := EncodePNG(grid(16, 16))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ReencodePNG(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	third, err := ReencodePNG(second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(second.Data, third.Data) {
		t.Error("expected re-encoding to be stable after the first pass")
	}
}

func TestEncodeJPEG_QualityFallback(t *testing.T) {
	im, err := EncodeJPEG(grid(8, 8), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if im.Format != FormatJPEG {
		t.Errorf("expected format %q, got %q", FormatJPEG, im.Format)
	}
	if len(im.Data) == 0 {
		t.Error("expected non-empty payload")
	}
}

func TestChannelCount(t *testing.T) {
	if got := ChannelCount(image.NewGray(image.Rect(0, 0, 1, 1))); got != 1 {
		t.Errorf("expected 1 channel for Gray, got %d", got)
	}
	if got := ChannelCount(image.NewGray16(image.Rect(0, 0, 1, 1))); got != 1 {
		t.Errorf("expected 1 channel for Gray16, got %d", got)
	}
	if got := ChannelCount(image.NewNRGBA(image.Rect(0, 0, 1, 1))); got != 3 {
		t.Errorf("expected 3 channels for NRGBA, got %d", got)
	}
}

func TestFlattenWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{}) // fully transparent
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	out := FlattenWhite(img)
	if c := out.NRGBAAt(0, 0); c.R != 255 || c.G != 255 || c.B != 255 || c.A != 255 {
		t.Errorf("expected transparent pixel flattened to white, got %+v", c)
	}
	if c := out.NRGBAAt(1, 0); c.R != 10 || c.G != 20 || c.B != 30 {
		t.Errorf("expected opaque pixel preserved, got %+v", c)
	}
}

func TestToGray(t *testing.T) {
	g := ToGray(grid(4, 4))
	if g.Bounds().Dx() != 4 || g.Bounds().Dy() != 4 {
		t.Errorf("expected 4x4, got %v", g.Bounds())
	}
	// Already-gray input passes through without copying.
	src := image.NewGray(image.Rect(0, 0, 2, 2))
	if ToGray(src) != src {
		t.Error("expected gray input returned as-is")
	}
}

func TestDecode_Invalid(t *testing.T) {
	im := &Image{Format: FormatPNG, Data: []byte("junk")}
	if _, err := im.Decode(); err == nil {
		t.Fatal("expected error for junk payload")
	}
}
