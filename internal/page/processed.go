package page

import "github.com/rescanio/rescan/internal/raster"

// ProcessedPage pairs a page's physical bounds with its rendered raster,
// assembled immediately before PDF re-encoding. The re-encoder reads only
// the bounds and whichever image Image() selects.
type ProcessedPage struct {
	PageIndex int
	Bounds    Bounds
	Original  *raster.Image
	Processed *raster.Image
}

// Image returns the processed raster if present, else the original.
func (p ProcessedPage) Image() *raster.Image {
	if p.Processed != nil {
		return p.Processed
	}
	return p.Original
}
