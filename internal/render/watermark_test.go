package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countNonWhite(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if rgba(img, x, y) != white {
				n++
			}
		}
	}
	return n
}

func TestWatermarkDraws(t *testing.T) {
	for _, tile := range []bool{false, true} {
		dc := NewSurface(300, 300, "#ffffff")
		wm := Watermark{Text: "DRAFT", FontSize: 24, Opacity: 1, Rotation: 45, Color: "#ff0000", Tile: tile}
		require.NoError(t, wm.Draw(dc, 1))
		assert.Positive(t, countNonWhite(dc.Image()), "tile=%v", tile)
	}
}

func TestWatermarkTileCoversMore(t *testing.T) {
	center := NewSurface(400, 400, "#ffffff")
	tiled := NewSurface(400, 400, "#ffffff")
	wm := Watermark{Text: "COPY", FontSize: 18, Opacity: 1, Color: "#000"}
	require.NoError(t, wm.Draw(center, 1))
	wm.Tile = true
	require.NoError(t, wm.Draw(tiled, 1))

	assert.Greater(t, countNonWhite(tiled.Image()), countNonWhite(center.Image()))
}

func TestWatermarkEmptyText(t *testing.T) {
	dc := NewSurface(50, 50, "#ffffff")
	require.NoError(t, Watermark{FontSize: 12}.Draw(dc, 1))
	assert.Zero(t, countNonWhite(dc.Image()))
}

func TestInkColor(t *testing.T) {
	tests := []struct {
		hex     string
		opacity float64
		want    color.NRGBA
	}{
		{"#ff0000", 0.5, color.NRGBA{R: 255, A: 128}},
		{"fa0", 1, color.NRGBA{R: 255, G: 170, A: 255}},
		{"#ff000080", 1, color.NRGBA{R: 255, A: 128}},
		{"#ff000080", 0.5, color.NRGBA{R: 255, A: 64}},
		{"bogus", 0, color.NRGBA{R: 128, G: 128, B: 128}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inkColor(tt.hex, tt.opacity), tt.hex)
	}
}
