package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/rescanio/rescan/internal/raster"
)

// embeddedImage is payload plus the XObject dictionary facts for one page's
// raster.
type embeddedImage struct {
	width, height int
	colorSpace    string
	filter        string
	data          []byte
}

// embedRaster prepares im for embedding. PNG is attempted first (decoded to
// raw samples behind FlateDecode); on failure the bytes are retried as JPEG
// (DCTDecode passthrough). Both failing is fatal for the export.
func embedRaster(im *raster.Image) (*embeddedImage, error) {
	e, pngErr := embedPNG(im.Data)
	if pngErr == nil {
		return e, nil
	}
	e, jpegErr := embedJPEG(im.Data)
	if jpegErr == nil {
		return e, nil
	}
	return nil, fmt.Errorf("png: %v; jpeg: %v", pngErr, jpegErr)
}

func embedPNG(data []byte) (*embeddedImage, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 1 || h < 1 {
		return nil, errors.New("empty image")
	}

	var samples []byte
	var colorSpace string
	if g, ok := img.(*image.Gray); ok {
		colorSpace = "/DeviceGray"
		samples = packGray(g)
	} else {
		// Any alpha is flattened against white here, at export time.
		colorSpace = "/DeviceRGB"
		samples = packRGB(raster.FlattenWhite(img))
	}

	compressed, err := compressZlib(samples)
	if err != nil {
		return nil, fmt.Errorf("compress samples: %w", err)
	}
	return &embeddedImage{
		width:      w,
		height:     h,
		colorSpace: colorSpace,
		filter:     "/FlateDecode",
		data:       compressed,
	}, nil
}

// embedJPEG passes the compressed stream through untouched; PDF readers
// decode DCT natively.
func embedJPEG(data []byte) (*embeddedImage, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	colorSpace := "/DeviceRGB"
	if cfg.ColorModel == color.GrayModel {
		colorSpace = "/DeviceGray"
	}
	return &embeddedImage{
		width:      cfg.Width,
		height:     cfg.Height,
		colorSpace: colorSpace,
		filter:     "/DCTDecode",
		data:       data,
	}, nil
}

func packGray(g *image.Gray) []byte {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h)
	for y := range h {
		copy(out[y*w:(y+1)*w], g.Pix[y*g.Stride:y*g.Stride+w])
	}
	return out
}

func packRGB(img *image.NRGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, w*h*3)
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			out = append(out, row[x], row[x+1], row[x+2])
		}
	}
	return out
}
