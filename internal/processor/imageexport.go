package processor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/joeblew999/pdffs/internal/render"
	"github.com/joeblew999/pdffs/pkg/pipeline"
)

const (
	ModePDF = "pdf"
	ModeSVG = "svg"
)

// ImageExportOptions configures the image-export operation
type ImageExportOptions struct {
	Mode       string  `option:"mode" validate:"oneof=pdf svg"`
	Format     string  `option:"format" validate:"oneof=png jpeg jpg"`
	DPI        float64 `option:"dpi" validate:"gte=0"`
	Scale      float64 `option:"scale" validate:"gte=0"`
	Quality    float64 `option:"quality"`
	Grayscale  bool    `option:"grayscale"`
	MaxWidth   int     `option:"maxWidth" validate:"gte=0"`
	Pages      string  `option:"pages"`
	Background string  `option:"background" validate:"omitempty,rgbcolor"`
}

// ImageExport flattens pages into images and packs them either into one
// image-only PDF or into one SVG per page. Page sizes in points are kept.
type ImageExport struct {
	engine render.Engine
	limits Limits
}

func NewImageExport(engine render.Engine, limits Limits) *ImageExport {
	return &ImageExport{engine: engine, limits: limits}
}

func (p *ImageExport) Name() string { return "image-export" }

func (p *ImageExport) Description() string {
	return "Flatten pages to images and export them as an image-only PDF or as SVG pages"
}

func (p *ImageExport) defaults() ImageExportOptions {
	return ImageExportOptions{
		Mode:       ModePDF,
		Format:     string(render.FormatJPEG),
		DPI:        p.limits.DefaultDPI,
		Quality:    render.DefaultQuality,
		Background: render.DefaultBackground,
	}
}

func (p *ImageExport) Process(ctx context.Context, in pipeline.Input, onProgress pipeline.ProgressFunc) *pipeline.Output {
	return pipeline.Guard(p.Name(), func() *pipeline.Output {
		r := pipeline.NewReporter(ctx, in.Cancel, onProgress)

		file, err := pipeline.RequireSinglePDF(in)
		if err != nil {
			return pipeline.Fail(err)
		}
		opts := p.defaults()
		if err := pipeline.DecodeOptions(in.Options, &opts); err != nil {
			return pipeline.Fail(err)
		}
		format := parseFormat(opts.Format)
		quality := pipeline.Clamp(opts.Quality, 0, 1)
		scale := p.limits.scale(opts.DPI, opts.Scale)
		filter := render.Filter{Grayscale: opts.Grayscale, MaxWidth: opts.MaxWidth}

		r.Update(2, "opening document")
		doc, err := openPDF(p.engine, file)
		if err != nil {
			return pipeline.Fail(err)
		}
		defer doc.Close()

		pages, err := pipeline.SelectPages(opts.Pages, doc.NumPages())
		if err != nil {
			return pipeline.Fail(err)
		}

		assembler := render.NewPDFAssembler(format, quality)
		var blobs []pipeline.Blob
		res, err := pipeline.RunBatch(r, p.Name(), pages, func(i int, n int) error {
			r.Step(i, len(pages), 5, 90, fmt.Sprintf("exporting page %d", n))

			page, err := renderPage(doc, n, scale, opts.Background)
			if err != nil {
				return fmt.Errorf("page %d: %w", n, err)
			}
			img := filter.Apply(page.DC.Image())

			if opts.Mode == ModePDF {
				return assembler.AddPage(img, page.Size)
			}
			var buf bytes.Buffer
			if err := render.WriteSVGPage(&buf, img, page.Size, format, quality); err != nil {
				return err
			}
			blobs = append(blobs, pipeline.Blob{
				Name:        pipeline.OutputName(file.Name, pageSuffix(n), "svg"),
				ContentType: "image/svg+xml",
				Data:        buf.Bytes(),
			})
			return nil
		})
		if err != nil {
			return pipeline.Fail(err)
		}

		if opts.Mode == ModePDF {
			r.Update(95, "writing document")
			data, err := assembler.Bytes()
			if err != nil {
				return pipeline.Fail(err)
			}
			blobs = append(blobs, pipeline.Blob{
				Name:        pipeline.OutputName(file.Name, "_image", "pdf"),
				ContentType: "application/pdf",
				Data:        data,
			})
		}

		r.Done(fmt.Sprintf("exported %d page(s)", res.Succeeded))
		return pipeline.Succeed("", blobs...).
			WithMetadata("pageCount", doc.NumPages()).
			WithMetadata("pages", pages).
			WithMetadata("failed", res.Failed)
	})
}
