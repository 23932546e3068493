package processor

import (
	"context"
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/joeblew999/pdffs/internal/render"
	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// RasterOptions configures the rasterize operation
type RasterOptions struct {
	Format        string  `option:"format" validate:"oneof=png jpeg jpg bmp tiff tif gif"`
	DPI           float64 `option:"dpi" validate:"gte=0"`
	Scale         float64 `option:"scale" validate:"gte=0"`
	Quality       float64 `option:"quality"`
	Pages         string  `option:"pages"`
	Columns       int     `option:"columns" validate:"gte=1,lte=10"`
	Rows          int     `option:"rows" validate:"gte=1,lte=10"`
	SkipFirstPage bool    `option:"skipFirstPage"`
	Background    string  `option:"background" validate:"omitempty,rgbcolor"`
}

// Rasterize renders pages to images, one per page or one per grid group
type Rasterize struct {
	engine render.Engine
	limits Limits
}

func NewRasterize(engine render.Engine, limits Limits) *Rasterize {
	return &Rasterize{engine: engine, limits: limits}
}

func (p *Rasterize) Name() string { return "rasterize" }

func (p *Rasterize) Description() string {
	return "Render PDF pages to PNG, JPEG, BMP, TIFF or GIF, optionally several pages per image"
}

func (p *Rasterize) defaults() RasterOptions {
	return RasterOptions{
		Format:     string(render.FormatPNG),
		DPI:        p.limits.DefaultDPI,
		Quality:    render.DefaultQuality,
		Columns:    1,
		Rows:       1,
		Background: render.DefaultBackground,
	}
}

func (p *Rasterize) Process(ctx context.Context, in pipeline.Input, onProgress pipeline.ProgressFunc) *pipeline.Output {
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
		grid := pipeline.Grid{Columns: opts.Columns, Rows: opts.Rows, SkipFirstPage: opts.SkipFirstPage}

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
		groups := pipeline.GroupPages(pages, grid)

		var blobs []pipeline.Blob
		res, err := pipeline.RunBatch(r, p.Name(), groups, func(i int, group []int) error {
			r.Step(i, len(groups), 5, 95, fmt.Sprintf("rendering %d of %d", i+1, len(groups)))

			alone := grid.Single() || (grid.SkipFirstPage && i == 0)
			dc, err := p.surface(doc, group, grid, alone, scale, opts.Background)
			if err != nil {
				return err
			}
			data, err := render.EncodeBytes(dc.Image(), format, quality)
			if err != nil {
				return err
			}

			suffix := pageSuffix(group[0])
			if !grid.Single() {
				suffix = fmt.Sprintf("_grid%dx%d_%d", grid.Columns, grid.Rows, i+1)
			}
			blobs = append(blobs, pipeline.Blob{
				Name:        pipeline.OutputName(file.Name, suffix, format.Ext()),
				ContentType: format.ContentType(),
				Data:        data,
			})
			return nil
		})
		if err != nil {
			return pipeline.Fail(err)
		}

		r.Done(fmt.Sprintf("rendered %d image(s)", len(blobs)))
		return pipeline.Succeed("", blobs...).
			WithMetadata("pageCount", doc.NumPages()).
			WithMetadata("pages", pages).
			WithMetadata("failed", res.Failed).
			WithMetadata("scale", scale)
	})
}

// surface renders one group. When alone is set the group holds a single page
// drawn at its own size, either plain page output or the skipped cover page.
func (p *Rasterize) surface(doc render.Document, group []int, grid pipeline.Grid, alone bool, scale float64, bg string) (*gg.Context, error) {
	imgs := make([]image.Image, 0, len(group))
	for _, n := range group {
		page, err := renderPage(doc, n, scale, bg)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		if alone {
			return page.DC, nil
		}
		imgs = append(imgs, page.DC.Image())
	}
	return render.Compose(imgs, grid, bg), nil
}
