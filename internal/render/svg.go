package render

import (
	"encoding/base64"
	"image"
	"io"
	"math"

	svg "github.com/ajstarks/svgo/float"

	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// WriteSVGPage wraps a rendered page in an SVG document of size points,
// embedding the raster as a data URI
func WriteSVGPage(w io.Writer, img image.Image, size pipeline.Size, f Format, quality float64) error {
	data, err := EncodeBytes(img, f, quality)
	if err != nil {
		return err
	}
	href := "data:" + f.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(data)

	doc := svg.New(w)
	doc.Start(size.W, size.H)
	doc.Image(0, 0, int(math.Round(size.W)), int(math.Round(size.H)), href, `preserveAspectRatio="none"`)
	doc.End()
	return nil
}
