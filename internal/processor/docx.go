package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeblew999/pdffs/internal/render"
	"github.com/joeblew999/pdffs/internal/worker/protocol"
	"github.com/joeblew999/pdffs/pkg/pipeline"
)

const contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// DOCXOptions configures the docx operation
type DOCXOptions struct {
	Pages string `option:"pages"`
}

// DOCX converts a PDF to a Word document through an isolated worker.
// The engine is only used up front to reject encrypted files and resolve
// the page selection before the worker is started.
type DOCX struct {
	engine render.Engine
	conv   Converter
}

func NewDOCX(engine render.Engine, conv Converter) *DOCX {
	return &DOCX{engine: engine, conv: conv}
}

func (p *DOCX) Name() string { return "docx" }

func (p *DOCX) Description() string {
	return "Convert a PDF to an editable Word document"
}

func (p *DOCX) Process(ctx context.Context, in pipeline.Input, onProgress pipeline.ProgressFunc) *pipeline.Output {
	return pipeline.Guard(p.Name(), func() *pipeline.Output {
		r := pipeline.NewReporter(ctx, in.Cancel, onProgress)

		file, err := pipeline.RequireSinglePDF(in)
		if err != nil {
			return pipeline.Fail(err)
		}
		var opts DOCXOptions
		if err := pipeline.DecodeOptions(in.Options, &opts); err != nil {
			return pipeline.Fail(err)
		}

		doc, err := openPDF(p.engine, file)
		if err != nil {
			return pipeline.Fail(err)
		}
		total := doc.NumPages()
		doc.Close()

		pages, err := pipeline.SelectPages(opts.Pages, total)
		if err != nil {
			return pipeline.Fail(err)
		}
		if err := r.Check(); err != nil {
			return pipeline.Fail(err)
		}

		cctx, stop := watchCancel(r.Context(), in.Cancel)
		defer stop()

		data, err := p.conv.Convert(cctx, protocol.ConvertRequest{
			Filename: file.Name,
			Document: file.Data,
			Pages:    pages,
		}, r.Update)
		if err != nil {
			if r.Cancelled() || errors.Is(err, context.Canceled) {
				return pipeline.Fail(pipeline.ErrCancelled)
			}
			return pipeline.Fail(err)
		}

		r.Done(fmt.Sprintf("converted %d page(s)", len(pages)))
		return pipeline.Succeed("", pipeline.Blob{
			Name:        pipeline.OutputName(file.Name, "", "docx"),
			ContentType: contentTypeDOCX,
			Data:        data,
		}).
			WithMetadata("pageCount", total).
			WithMetadata("pages", pages)
	})
}

// cancelPoll is how often the cancel flag is checked while a worker call blocks
var cancelPoll = 50 * time.Millisecond

// watchCancel derives a context that ends when flag is set
func watchCancel(ctx context.Context, flag *pipeline.CancelFlag) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if flag == nil {
		return ctx, cancel
	}
	go func() {
		t := time.NewTicker(cancelPoll)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if flag.Cancelled() {
					cancel()
					return
				}
			}
		}
	}()
	return ctx, cancel
}
