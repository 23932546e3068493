package render

import (
	"image"

	"github.com/disintegration/gift"
)

// Filter post-processes a rendered page
type Filter struct {
	Grayscale bool
	MaxWidth  int
}

// Apply returns img unchanged when no filter is set
func (f Filter) Apply(img image.Image) image.Image {
	var filters []gift.Filter
	if f.MaxWidth > 0 && img.Bounds().Dx() > f.MaxWidth {
		filters = append(filters, gift.Resize(f.MaxWidth, 0, gift.LanczosResampling))
	}
	if f.Grayscale {
		filters = append(filters, gift.Grayscale())
	}
	if len(filters) == 0 {
		return img
	}

	g := gift.New(filters...)
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}
