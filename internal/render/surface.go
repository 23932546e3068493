package render

import (
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// DefaultBackground is white
const DefaultBackground = "#ffffff"

// NewSurface creates a w by h drawing surface already filled with background.
// The fill is always opaque; an alpha component in background is ignored.
func NewSurface(w, h int, background string) *gg.Context {
	dc := gg.NewContext(max(w, 1), max(h, 1))
	dc.SetColor(opaque(background))
	dc.Clear()
	return dc
}

// Flatten draws img over a background filled surface of the same size.
// Transparent regions take the background colour.
func Flatten(img image.Image, background string) *gg.Context {
	b := img.Bounds()
	dc := NewSurface(b.Dx(), b.Dy(), background)
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	return dc
}

// Compose lays pages out on one surface according to g. Each page is centred
// in a cell sized to the largest page of this group; unused cells keep the
// background.
func Compose(pages []image.Image, g pipeline.Grid, background string) *gg.Context {
	sizes := make([]pipeline.Size, len(pages))
	for i, p := range pages {
		sizes[i] = ImageSize(p)
	}
	geo := pipeline.GridGeometry(sizes, g)

	dc := NewSurface(int(math.Ceil(geo.Canvas.W)), int(math.Ceil(geo.Canvas.H)), background)
	for i, p := range pages {
		pl := geo.Placements[i]
		b := p.Bounds()
		dc.DrawImage(p, int(math.Floor(pl.X))-b.Min.X, int(math.Floor(pl.Y))-b.Min.Y)
	}
	return dc
}
