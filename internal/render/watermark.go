package render

import (
	"fmt"
	"image/color"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	regularOnce sync.Once
	regularFont *truetype.Font
	regularErr  error
)

func loadRegular() (*truetype.Font, error) {
	regularOnce.Do(func() {
		regularFont, regularErr = truetype.Parse(goregular.TTF)
	})
	return regularFont, regularErr
}

// Watermark is text stamped over a rendered page
type Watermark struct {
	Text     string
	FontSize float64 // points
	Opacity  float64 // 0..1
	Rotation float64 // degrees, counter-clockwise
	Color    string  // hex
	Tile     bool
}

// Draw stamps the watermark onto dc. scale converts points to pixels.
func (w Watermark) Draw(dc *gg.Context, scale float64) error {
	if strings.TrimSpace(w.Text) == "" {
		return nil
	}

	f, err := loadRegular()
	if err != nil {
		return fmt.Errorf("load watermark font: %w", err)
	}
	size := w.FontSize * scale
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: size, DPI: PointsPerInch}))
	dc.SetColor(inkColor(w.Color, w.Opacity))

	angle := gg.Radians(-w.Rotation)
	width, height := float64(dc.Width()), float64(dc.Height())

	if !w.Tile {
		w.stamp(dc, width/2, height/2, angle)
		return nil
	}

	tw, _ := dc.MeasureString(w.Text)
	stepX := tw + size*2
	stepY := size * 4
	for y := stepY / 2; y < height+stepY; y += stepY {
		// offset alternate rows so the pattern reads as a lattice
		shift := 0.0
		if int(y/stepY)%2 == 1 {
			shift = stepX / 2
		}
		for x := -shift; x < width+stepX; x += stepX {
			w.stamp(dc, x, y, angle)
		}
	}
	return nil
}

func (w Watermark) stamp(dc *gg.Context, x, y, angle float64) {
	dc.Push()
	dc.RotateAbout(angle, x, y)
	dc.DrawStringAnchored(w.Text, x, y, 0.5, 0.5)
	dc.Pop()
}

// inkColor parses hex and scales its alpha by opacity. Unparseable colours
// fall back to mid grey.
func inkColor(hex string, opacity float64) color.NRGBA {
	c, ok := ParseHex(hex)
	if !ok {
		c = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	}
	c.A = uint8(float64(c.A)*min(max(opacity, 0), 1) + 0.5)
	return c
}
