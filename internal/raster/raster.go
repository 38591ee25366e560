// Package raster defines the bitmap unit passed between pipeline stages and
// the codec helpers shared by the rasterizer, enhancement chain and exporter.
//
// Ownership is transient: each stage consumes one Image and produces a new
// one; no Image is mutated after being handed downstream.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
)

// Format identifies the encoded form of an Image.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// DefaultJPEGQuality is used when a caller leaves quality unset.
const DefaultJPEGQuality = 85

// Image is an encoded bitmap plus the metadata downstream stages need
// without decoding it.
type Image struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Format   Format `json:"format"`
	Data     []byte `json:"-"`
}

// Decode decodes the image payload back into pixels.
func (im *Image) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(im.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", im.Format, err)
	}
	return img, nil
}

// EncodePNG encodes img losslessly. PNG is the pipeline's canonical format.
func EncodePNG(img image.Image) (*Image, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	b := img.Bounds()
	return &Image{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: ChannelCount(img),
		Format:   FormatPNG,
		Data:     buf.Bytes(),
	}, nil
}

// EncodeJPEG encodes img lossily at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) (*Image, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	b := img.Bounds()
	return &Image{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: ChannelCount(img),
		Format:   FormatJPEG,
		Data:     buf.Bytes(),
	}, nil
}

// ReencodePNG decodes data and re-encodes it through the pipeline's PNG
// encoder. A pass through the enhancement chain with every stage skipped
// produces exactly these bytes.
func ReencodePNG(im *Image) (*Image, error) {
	img, err := im.Decode()
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// ChannelCount reports the color channel count of img, not counting alpha
// (1 for grayscale, 3 otherwise).
func ChannelCount(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	default:
		return 3
	}
}

// FlattenWhite composites img over an opaque white background. Alpha carried
// through rendering and processing is discarded here, at export time.
func FlattenWhite(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for i := range out.Pix {
		out.Pix[i] = 0xFF
	}
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// ToGray converts img to 8-bit grayscale.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
