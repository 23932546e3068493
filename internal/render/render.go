// Package render turns PDF pages into raster surfaces and assembles them
// into images, grids, SVG pages or a combined PDF.
package render

import (
	"image"
	"math"

	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// PointsPerInch is the PDF user-space unit. A scale of 1 renders 72 DPI.
const PointsPerInch = 72.0

// Engine opens PDF documents
type Engine interface {
	Open(data []byte) (Document, error)
}

// Document is an opened PDF. Page numbers are 1-based.
type Document interface {
	NumPages() int

	// Render rasterizes page at scale (pixels per point)
	Render(page int, scale float64) (image.Image, error)

	Close() error
}

// Scale reconciles the dpi and scale knobs. An explicit scale wins,
// otherwise scale is dpi/72. Both unset means 1.
func Scale(dpi, scale float64) float64 {
	if scale > 0 {
		return scale
	}
	if dpi > 0 {
		return dpi / PointsPerInch
	}
	return 1
}

// PixelSize converts a size in points to whole pixels at scale
func PixelSize(s pipeline.Size, scale float64) (int, int) {
	w := int(math.Round(s.W * scale))
	h := int(math.Round(s.H * scale))
	return max(w, 1), max(h, 1)
}

// PointSize returns the size in points covered by a raster rendered at
// scale. Page geometry is taken from the raster so that the two always agree.
func PointSize(img image.Image, scale float64) pipeline.Size {
	if scale <= 0 {
		scale = 1
	}
	s := ImageSize(img)
	return pipeline.Size{W: s.W / scale, H: s.H / scale}
}

// ImageSize returns the bounds of img as a Size
func ImageSize(img image.Image) pipeline.Size {
	b := img.Bounds()
	return pipeline.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}
