// Package processor implements the document operations: rasterize,
// image-export, watermark and docx. Each one validates its input, decodes
// options over defaults, then renders page by page through render.Engine.
package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/fogleman/gg"

	"github.com/joeblew999/pdffs/internal/render"
	"github.com/joeblew999/pdffs/internal/worker/protocol"
	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// Limits bounds the rendering knobs callers may ask for
type Limits struct {
	DefaultDPI float64
	MinDPI     float64
	MaxDPI     float64
	MaxScale   float64
}

// DefaultLimits returns sensible defaults
func DefaultLimits() Limits {
	return Limits{
		DefaultDPI: 150,
		MinDPI:     36,
		MaxDPI:     600,
		MaxScale:   8,
	}
}

// scale clamps the dpi and scale options and reconciles them
func (l Limits) scale(dpi, scale float64) float64 {
	if scale > 0 {
		return pipeline.Clamp(scale, l.MinDPI/render.PointsPerInch, l.MaxScale)
	}
	if dpi <= 0 {
		dpi = l.DefaultDPI
	}
	return render.Scale(pipeline.Clamp(dpi, l.MinDPI, l.MaxDPI), 0)
}

// Converter turns a PDF into another document format out of process
type Converter interface {
	Convert(ctx context.Context, req protocol.ConvertRequest, progress pipeline.ProgressFunc) ([]byte, error)
}

// Catalog registers every operation. The docx operation is only available
// when conv is non-nil.
func Catalog(engine render.Engine, conv Converter, limits Limits) *pipeline.Registry {
	reg := pipeline.NewRegistry(
		NewRasterize(engine, limits),
		NewImageExport(engine, limits),
		NewWatermark(engine, limits),
	)
	if conv != nil {
		reg.Register(NewDOCX(engine, conv))
	}
	return reg
}

// openPDF opens the single input file and checks it has pages
func openPDF(engine render.Engine, f pipeline.File) (render.Document, error) {
	doc, err := engine.Open(f.Data)
	if err != nil {
		if pipeline.KindOf(err) == pipeline.KindPDFEncrypted {
			return nil, err
		}
		return nil, pipeline.NewError(pipeline.KindProcessingFailed, "could not open %s", displayName(f)).WithDetail(err.Error())
	}
	if doc.NumPages() < 1 {
		doc.Close()
		return nil, pipeline.NewError(pipeline.KindProcessingFailed, "%s has no pages", displayName(f))
	}
	return doc, nil
}

// pageImage is one rendered page and its size in points
type pageImage struct {
	Number int
	Size   pipeline.Size
	DC     *gg.Context
}

// renderPage renders one page flattened onto background. Size is derived
// from the raster so assembled pages keep its exact aspect.
func renderPage(doc render.Document, page int, scale float64, background string) (*pageImage, error) {
	img, err := doc.Render(page, scale)
	if err != nil {
		return nil, err
	}
	return &pageImage{Number: page, Size: render.PointSize(img, scale), DC: render.Flatten(img, background)}, nil
}

func parseFormat(s string) render.Format {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "jpg":
		return render.FormatJPEG
	case "tif":
		return render.FormatTIFF
	}
	return render.Format(s)
}

func pageSuffix(page int) string {
	return fmt.Sprintf("_page%d", page)
}

func displayName(f pipeline.File) string {
	if f.Name == "" {
		return "input file"
	}
	return f.Name
}
