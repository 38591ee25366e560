package export

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/rescanio/rescan/internal/raster"
)

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encoding jpeg fixture: %v", err)
	}
	return buf.Bytes()
}

func TestEmbedJPEG_GrayColorSpace(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 6, 4))
	for i := range g.Pix {
		g.Pix[i] = uint8(i * 11)
	}
	data := encodeJPEG(t, g)

	emb, err := embedJPEG(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.colorSpace != "/DeviceGray" {
		t.Errorf("expected /DeviceGray for gray jpeg, got %q", emb.colorSpace)
	}
	if emb.filter != "/DCTDecode" {
		t.Errorf("expected /DCTDecode, got %q", emb.filter)
	}
	if emb.width != 6 || emb.height != 4 {
		t.Errorf("expected 6x4, got %dx%d", emb.width, emb.height)
	}
	// DCT passthrough: stream bytes are the original jpeg, untouched.
	if !bytes.Equal(emb.data, data) {
		t.Error("expected jpeg bytes passed through unmodified")
	}
}

func TestEmbedJPEG_RGBColorSpace(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 50), G: uint8(y * 50), B: 128, A: 255})
		}
	}
	data := encodeJPEG(t, img)

	emb, err := embedJPEG(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.colorSpace != "/DeviceRGB" {
		t.Errorf("expected /DeviceRGB for color jpeg, got %q", emb.colorSpace)
	}
}

func TestEmbedRaster_JPEGFallback(t *testing.T) {
	// Not decodable as PNG, valid as JPEG: the retry path must kick in.
	data := encodeJPEG(t, image.NewGray(image.Rect(0, 0, 3, 3)))
	emb, err := embedRaster(&raster.Image{Format: raster.FormatJPEG, Data: data})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.filter != "/DCTDecode" {
		t.Errorf("expected jpeg retry to produce /DCTDecode, got %q", emb.filter)
	}
}
