package processor

import (
	"context"
	"fmt"

	"github.com/joeblew999/pdffs/internal/render"
	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// WatermarkOptions configures the watermark operation
type WatermarkOptions struct {
	Text       string  `option:"text" validate:"required"`
	FontSize   float64 `option:"fontSize" validate:"gt=0,lte=400"`
	Opacity    float64 `option:"opacity"`
	Rotation   float64 `option:"rotation"`
	Color      string  `option:"color" validate:"rgbcolor"`
	Layout     string  `option:"layout" validate:"oneof=center tile"`
	Pages      string  `option:"pages"`
	DPI        float64 `option:"dpi" validate:"gte=0"`
	Background string  `option:"background" validate:"omitempty,rgbcolor"`
}

// Watermark stamps text over the selected pages and writes every page of
// the source, stamped or not, into a new raster PDF
type Watermark struct {
	engine render.Engine
	limits Limits
}

func NewWatermark(engine render.Engine, limits Limits) *Watermark {
	return &Watermark{engine: engine, limits: limits}
}

func (p *Watermark) Name() string { return "watermark" }

func (p *Watermark) Description() string {
	return "Stamp a text watermark across selected pages"
}

func (p *Watermark) defaults() WatermarkOptions {
	return WatermarkOptions{
		FontSize:   48,
		Opacity:    0.3,
		Rotation:   45,
		Color:      "#808080",
		Layout:     "center",
		DPI:        p.limits.DefaultDPI,
		Background: render.DefaultBackground,
	}
}

func (p *Watermark) Process(ctx context.Context, in pipeline.Input, onProgress pipeline.ProgressFunc) *pipeline.Output {
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
		scale := p.limits.scale(opts.DPI, 0)
		mark := render.Watermark{
			Text:     opts.Text,
			FontSize: opts.FontSize,
			Opacity:  pipeline.Clamp(opts.Opacity, 0, 1),
			Rotation: opts.Rotation,
			Color:    opts.Color,
			Tile:     opts.Layout == "tile",
		}

		r.Update(2, "opening document")
		doc, err := openPDF(p.engine, file)
		if err != nil {
			return pipeline.Fail(err)
		}
		defer doc.Close()

		selected, err := pipeline.SelectPages(opts.Pages, doc.NumPages())
		if err != nil {
			return pipeline.Fail(err)
		}
		stamp := make(map[int]bool, len(selected))
		for _, n := range selected {
			stamp[n] = true
		}

		all := pipeline.AllPages(doc.NumPages())
		assembler := render.NewPDFAssembler(render.FormatJPEG, render.DefaultQuality)
		res, err := pipeline.RunBatch(r, p.Name(), all, func(i int, n int) error {
			r.Step(i, len(all), 5, 90, fmt.Sprintf("page %d of %d", n, len(all)))

			page, err := renderPage(doc, n, scale, opts.Background)
			if err != nil {
				return fmt.Errorf("page %d: %w", n, err)
			}
			if stamp[n] {
				if err := mark.Draw(page.DC, scale); err != nil {
					return err
				}
			}
			return assembler.AddPage(page.DC.Image(), page.Size)
		})
		if err != nil {
			return pipeline.Fail(err)
		}

		r.Update(95, "writing document")
		data, err := assembler.Bytes()
		if err != nil {
			return pipeline.Fail(err)
		}
		r.Done("watermark applied")
		return pipeline.Succeed("", pipeline.Blob{
			Name:        pipeline.OutputName(file.Name, "_watermarked", "pdf"),
			ContentType: "application/pdf",
			Data:        data,
		}).
			WithMetadata("pageCount", doc.NumPages()).
			WithMetadata("watermarked", selected).
			WithMetadata("failed", res.Failed)
	})
}
