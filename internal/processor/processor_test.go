package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/pdffs/internal/render"
	"github.com/joeblew999/pdffs/internal/worker/protocol"
	"github.com/joeblew999/pdffs/pkg/pipeline"
)

type fakeEngine struct {
	sizes     []pipeline.Size
	fail      map[int]bool
	panicOn   int
	encrypted bool

	mu       sync.Mutex
	rendered []int
	scales   []float64
}

func newFakeEngine(pages int) *fakeEngine {
	sizes := make([]pipeline.Size, pages)
	for i := range sizes {
		sizes[i] = pipeline.Size{W: 100, H: 200}
	}
	return &fakeEngine{sizes: sizes, fail: map[int]bool{}}
}

func (e *fakeEngine) Open(data []byte) (render.Document, error) {
	if e.encrypted {
		return nil, fmt.Errorf("open document: %w", pipeline.ErrEncrypted)
	}
	if bytes.Equal(data, []byte("%PDF-broken")) {
		return nil, errors.New("no trailer")
	}
	return &fakeDocument{e: e}, nil
}

type fakeDocument struct {
	e *fakeEngine
}

func (d *fakeDocument) NumPages() int { return len(d.e.sizes) }

func (d *fakeDocument) Render(page int, scale float64) (image.Image, error) {
	if page == d.e.panicOn {
		panic("corrupt content stream")
	}
	if d.e.fail[page] {
		return nil, fmt.Errorf("render page %d: bad xref", page)
	}
	d.e.mu.Lock()
	d.e.rendered = append(d.e.rendered, page)
	d.e.scales = append(d.e.scales, scale)
	d.e.mu.Unlock()
	w, h := render.PixelSize(d.e.sizes[page-1], scale)
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func (d *fakeDocument) Close() error { return nil }

func pdfInput(opts pipeline.Options) pipeline.Input {
	return pipeline.Input{
		Files:   []pipeline.File{{Name: "report.pdf", Data: []byte("%PDF-1.7 fake")}},
		Options: opts,
	}
}

type progressRecorder struct {
	mu       sync.Mutex
	percents []int
}

func (p *progressRecorder) fn(percent int, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.percents = append(p.percents, percent)
}

func (p *progressRecorder) assertMonotonic(t *testing.T, wantDone bool) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.percents)
	for i := 1; i < len(p.percents); i++ {
		assert.GreaterOrEqual(t, p.percents[i], p.percents[i-1])
	}
	last := p.percents[len(p.percents)-1]
	if wantDone {
		assert.Equal(t, 100, last)
	} else {
		assert.Less(t, last, 100)
	}
}

func names(out *pipeline.Output) []string {
	var ns []string
	for _, b := range out.Result {
		ns = append(ns, b.Name)
	}
	return ns
}

func pngSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestRasterizePerPage(t *testing.T) {
	e := newFakeEngine(3)
	var progress progressRecorder
	out := NewRasterize(e, DefaultLimits()).Process(context.Background(), pdfInput(pipeline.Options{"dpi": 72}), progress.fn)

	require.True(t, out.Success, "%+v", out.Error)
	assert.Nil(t, out.Error)
	assert.Equal(t, []string{"report_page1.png", "report_page2.png", "report_page3.png"}, names(out))
	assert.Equal(t, "report_page1.png", out.Filename)
	for _, b := range out.Result {
		assert.Equal(t, "image/png", b.ContentType)
		w, h := pngSize(t, b.Data)
		assert.Equal(t, 100, w)
		assert.Equal(t, 200, h)
	}
	progress.assertMonotonic(t, true)
}

func TestRasterizeIsolatesFailedPages(t *testing.T) {
	e := newFakeEngine(10)
	e.fail[7] = true

	out := NewRasterize(e, DefaultLimits()).Process(context.Background(), pdfInput(nil), nil)

	require.True(t, out.Success)
	assert.Len(t, out.Result, 9)
	assert.NotContains(t, names(out), "report_page7.png")
	assert.Equal(t, []int{6}, out.Metadata["failed"])
}

func TestRasterizeAllPagesFail(t *testing.T) {
	e := newFakeEngine(2)
	e.fail[1], e.fail[2] = true, true

	out := NewRasterize(e, DefaultLimits()).Process(context.Background(), pdfInput(nil), nil)

	require.False(t, out.Success)
	assert.Empty(t, out.Result)
	assert.Equal(t, pipeline.KindProcessingFailed, out.Error.Code)
	assert.Contains(t, out.Error.Detail, "bad xref")
}

func TestRasterizeFillsTransparentPages(t *testing.T) {
	// the fake engine renders fully transparent pages
	out := NewRasterize(newFakeEngine(1), DefaultLimits()).Process(context.Background(),
		pdfInput(pipeline.Options{"background": "#ff0", "dpi": 72}), nil)
	require.True(t, out.Success, "%+v", out.Error)

	img, err := png.Decode(bytes.NewReader(out.Result[0].Data))
	require.NoError(t, err)
	r, g, b, a := img.At(50, 100).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0, 0xffff}, []uint32{r, g, b, a})
}

func TestRenderPageSizeMatchesRaster(t *testing.T) {
	e := newFakeEngine(1)
	e.sizes[0] = pipeline.Size{W: 595.28, H: 841.89}
	doc, err := e.Open([]byte("%PDF-1.7"))
	require.NoError(t, err)

	page, err := renderPage(doc, 1, 2, "")
	require.NoError(t, err)
	b := page.DC.Image().Bounds()
	assert.Equal(t, 1191, b.Dx())
	assert.Equal(t, 1684, b.Dy())
	assert.Equal(t, pipeline.Size{W: 595.5, H: 842}, page.Size)
}

func TestRasterizeGrid(t *testing.T) {
	e := newFakeEngine(5)
	e.sizes[1] = pipeline.Size{W: 150, H: 100}

	out := NewRasterize(e, DefaultLimits()).Process(context.Background(),
		pdfInput(pipeline.Options{"columns": "2", "rows": 2, "dpi": 72}), nil)

	require.True(t, out.Success, "%+v", out.Error)
	assert.Equal(t, []string{"report_grid2x2_1.png", "report_grid2x2_2.png"}, names(out))

	// cells size to the widest and tallest page of the group
	w, h := pngSize(t, out.Result[0].Data)
	assert.Equal(t, 300, w)
	assert.Equal(t, 400, h)

	// the last group holds one page; its cell is sized to that page alone
	w, h = pngSize(t, out.Result[1].Data)
	assert.Equal(t, 200, w)
	assert.Equal(t, 400, h)
}

func TestRasterizeGridSkipFirstPage(t *testing.T) {
	e := newFakeEngine(5)
	out := NewRasterize(e, DefaultLimits()).Process(context.Background(),
		pdfInput(pipeline.Options{"columns": 2, "rows": 1, "skipFirstPage": true, "dpi": 72}), nil)

	require.True(t, out.Success, "%+v", out.Error)
	assert.Equal(t, []string{"report_grid2x1_1.png", "report_grid2x1_2.png", "report_grid2x1_3.png"}, names(out))

	w, h := pngSize(t, out.Result[0].Data)
	assert.Equal(t, 100, w)
	assert.Equal(t, 200, h)

	w, _ = pngSize(t, out.Result[1].Data)
	assert.Equal(t, 200, w)
}

func TestRasterizeDPIAndScaleAgree(t *testing.T) {
	run := func(opts pipeline.Options) (int, int) {
		out := NewRasterize(newFakeEngine(1), DefaultLimits()).Process(context.Background(), pdfInput(opts), nil)
		require.True(t, out.Success)
		return pngSize(t, out.Result[0].Data)
	}

	w1, h1 := run(pipeline.Options{"dpi": 144})
	w2, h2 := run(pipeline.Options{"scale": 2})
	assert.Equal(t, w1, w2)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 200, w1)
}

func TestRasterizeClampsDPI(t *testing.T) {
	e := newFakeEngine(1)
	out := NewRasterize(e, DefaultLimits()).Process(context.Background(), pdfInput(pipeline.Options{"dpi": 100000}), nil)
	require.True(t, out.Success)
	assert.InDelta(t, 600.0/72, e.scales[0], 1e-9)
}

func TestRasterizeFormats(t *testing.T) {
	tests := []struct {
		format string
		name   string
		ctype  string
	}{
		{"png", "report_page1.png", "image/png"},
		{"jpeg", "report_page1.jpg", "image/jpeg"},
		{"jpg", "report_page1.jpg", "image/jpeg"},
		{"bmp", "report_page1.bmp", "image/bmp"},
		{"tiff", "report_page1.tif", "image/tiff"},
		{"gif", "report_page1.gif", "image/gif"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out := NewRasterize(newFakeEngine(1), DefaultLimits()).Process(context.Background(),
				pdfInput(pipeline.Options{"format": tt.format, "quality": 0.5}), nil)
			require.True(t, out.Success, "%+v", out.Error)
			assert.Equal(t, tt.name, out.Result[0].Name)
			assert.Equal(t, tt.ctype, out.Result[0].ContentType)
			assert.NotEmpty(t, out.Result[0].Data)
		})
	}
}

func TestRasterizeValidation(t *testing.T) {
	tests := []struct {
		name string
		in   pipeline.Input
		want pipeline.ErrorKind
	}{
		{"no files", pipeline.Input{}, pipeline.KindInvalidOptions},
		{"two files", pipeline.Input{Files: []pipeline.File{
			{Name: "a.pdf", Data: []byte("%PDF")}, {Name: "b.pdf", Data: []byte("%PDF")},
		}}, pipeline.KindInvalidOptions},
		{"not a pdf", pipeline.Input{Files: []pipeline.File{{Name: "notes.txt", Data: []byte("hello there")}}}, pipeline.KindFileTypeInvalid},
		{"empty file", pipeline.Input{Files: []pipeline.File{{Name: "a.pdf"}}}, pipeline.KindFileTypeInvalid},
		{"zero columns", pdfInput(pipeline.Options{"columns": 0}), pipeline.KindInvalidOptions},
		{"unknown format", pdfInput(pipeline.Options{"format": "webp"}), pipeline.KindInvalidOptions},
		{"bad background", pdfInput(pipeline.Options{"background": "white"}), pipeline.KindInvalidOptions},
		{"translucent background", pdfInput(pipeline.Options{"background": "#fff8"}), pipeline.KindInvalidOptions},
		{"transparent background", pdfInput(pipeline.Options{"background": "#ffffff00"}), pipeline.KindInvalidOptions},
		{"dpi not a number", pdfInput(pipeline.Options{"dpi": "high"}), pipeline.KindInvalidOptions},
		{"no pages in range", pdfInput(pipeline.Options{"pages": "99"}), pipeline.KindInvalidPageRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newFakeEngine(5)
			out := NewRasterize(e, DefaultLimits()).Process(context.Background(), tt.in, nil)
			require.False(t, out.Success)
			assert.Empty(t, out.Result)
			assert.Equal(t, tt.want, out.Error.Code)
			assert.Empty(t, e.rendered)
		})
	}
}

func TestRasterizePageRange(t *testing.T) {
	e := newFakeEngine(10)
	out := NewRasterize(e, DefaultLimits()).Process(context.Background(), pdfInput(pipeline.Options{"pages": "8-9, 2,x,5-3"}), nil)
	require.True(t, out.Success)
	assert.Equal(t, []string{"report_page2.png", "report_page8.png", "report_page9.png"}, names(out))
}

func TestRasterizeEncrypted(t *testing.T) {
	e := newFakeEngine(1)
	e.encrypted = true
	out := NewRasterize(e, DefaultLimits()).Process(context.Background(), pdfInput(nil), nil)
	require.False(t, out.Success)
	assert.Equal(t, pipeline.KindPDFEncrypted, out.Error.Code)
}

func TestRasterizeUnreadable(t *testing.T) {
	in := pdfInput(nil)
	in.Files[0].Data = []byte("%PDF-broken")
	out := NewRasterize(newFakeEngine(1), DefaultLimits()).Process(context.Background(), in, nil)
	require.False(t, out.Success)
	assert.Equal(t, pipeline.KindProcessingFailed, out.Error.Code)
	assert.Equal(t, "no trailer", out.Error.Detail)
}

func TestRasterizeCancelFlag(t *testing.T) {
	e := newFakeEngine(10)
	in := pdfInput(nil)
	in.Cancel = &pipeline.CancelFlag{}

	var progress progressRecorder
	out := NewRasterize(e, DefaultLimits()).Process(context.Background(), in, func(p int, msg string) {
		progress.fn(p, msg)
		if strings.HasPrefix(msg, "rendering 3") {
			in.Cancel.Cancel()
		}
	})

	require.False(t, out.Success)
	assert.Empty(t, out.Result)
	assert.Equal(t, pipeline.KindProcessingCancelled, out.Error.Code)
	// the page in flight when the flag was set still completes
	assert.Equal(t, []int{1, 2, 3}, e.rendered)
	progress.assertMonotonic(t, false)
}

func TestRasterizeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := NewRasterize(newFakeEngine(3), DefaultLimits()).Process(ctx, pdfInput(nil), nil)
	require.False(t, out.Success)
	assert.Equal(t, pipeline.KindProcessingCancelled, out.Error.Code)
}

func TestRasterizeRecoversPanic(t *testing.T) {
	e := newFakeEngine(2)
	e.panicOn = 2
	out := NewRasterize(e, DefaultLimits()).Process(context.Background(), pdfInput(nil), nil)
	require.False(t, out.Success)
	assert.Equal(t, pipeline.KindProcessingFailed, out.Error.Code)
	assert.Contains(t, out.Error.Detail, "corrupt content stream")
}

func TestImageExportPDF(t *testing.T) {
	e := newFakeEngine(3)
	e.sizes[2] = pipeline.Size{W: 300, H: 100}

	var progress progressRecorder
	out := NewImageExport(e, DefaultLimits()).Process(context.Background(),
		pdfInput(pipeline.Options{"grayscale": "true", "maxWidth": 50}), progress.fn)

	require.True(t, out.Success, "%+v", out.Error)
	require.Len(t, out.Result, 1)
	assert.Equal(t, "report_image.pdf", out.Result[0].Name)
	assert.Equal(t, "application/pdf", out.Result[0].ContentType)
	assert.True(t, bytes.HasPrefix(out.Result[0].Data, []byte("%PDF-")))
	progress.assertMonotonic(t, true)
}

func TestImageExportSVG(t *testing.T) {
	e := newFakeEngine(2)
	out := NewImageExport(e, DefaultLimits()).Process(context.Background(),
		pdfInput(pipeline.Options{"mode": "svg", "format": "png"}), nil)

	require.True(t, out.Success, "%+v", out.Error)
	assert.Equal(t, []string{"report_page1.svg", "report_page2.svg"}, names(out))
	assert.Equal(t, "image/svg+xml", out.Result[0].ContentType)
	assert.Contains(t, string(out.Result[0].Data), "data:image/png;base64,")
}

func TestImageExportRejectsMode(t *testing.T) {
	out := NewImageExport(newFakeEngine(1), DefaultLimits()).Process(context.Background(),
		pdfInput(pipeline.Options{"mode": "tiff"}), nil)
	require.False(t, out.Success)
	assert.Equal(t, pipeline.KindInvalidOptions, out.Error.Code)
}

func TestWatermarkKeepsEveryPage(t *testing.T) {
	e := newFakeEngine(4)
	out := NewWatermark(e, DefaultLimits()).Process(context.Background(),
		pdfInput(pipeline.Options{"text": "DRAFT", "pages": "2-3", "layout": "tile"}), nil)

	require.True(t, out.Success, "%+v", out.Error)
	require.Len(t, out.Result, 1)
	assert.Equal(t, "report_watermarked.pdf", out.Result[0].Name)
	assert.True(t, bytes.HasPrefix(out.Result[0].Data, []byte("%PDF-")))
	assert.Equal(t, []int{1, 2, 3, 4}, e.rendered)
	assert.Equal(t, []int{2, 3}, out.Metadata["watermarked"])
}

func TestWatermarkValidation(t *testing.T) {
	tests := []struct {
		name string
		opts pipeline.Options
	}{
		{"missing text", pipeline.Options{}},
		{"bad layout", pipeline.Options{"text": "x", "layout": "diagonal"}},
		{"bad color", pipeline.Options{"text": "x", "color": "red"}},
		{"color with alpha", pipeline.Options{"text": "x", "color": "#80808080"}},
		{"zero font", pipeline.Options{"text": "x", "fontSize": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewWatermark(newFakeEngine(1), DefaultLimits()).Process(context.Background(), pdfInput(tt.opts), nil)
			require.False(t, out.Success)
			assert.Equal(t, pipeline.KindInvalidOptions, out.Error.Code)
		})
	}
}

type fakeConverter struct {
	got  protocol.ConvertRequest
	err  error
	wait bool
}

func (c *fakeConverter) Convert(ctx context.Context, req protocol.ConvertRequest, progress pipeline.ProgressFunc) ([]byte, error) {
	c.got = req
	progress(5, "starting worker")
	progress(50, "converting")
	if c.wait {
		<-ctx.Done()
		return nil, pipeline.ErrCancelled
	}
	if c.err != nil {
		return nil, c.err
	}
	return []byte("PK docx"), nil
}

func TestDOCX(t *testing.T) {
	conv := &fakeConverter{}
	var progress progressRecorder
	out := NewDOCX(newFakeEngine(6), conv).Process(context.Background(), pdfInput(pipeline.Options{"pages": "2,4"}), progress.fn)

	require.True(t, out.Success, "%+v", out.Error)
	assert.Equal(t, "report.docx", out.Filename)
	assert.Equal(t, contentTypeDOCX, out.Result[0].ContentType)
	assert.Equal(t, []int{2, 4}, conv.got.Pages)
	assert.Equal(t, "report.pdf", conv.got.Filename)
	progress.assertMonotonic(t, true)
}

func TestDOCXErrors(t *testing.T) {
	t.Run("worker failure", func(t *testing.T) {
		conv := &fakeConverter{err: pipeline.NewError(pipeline.KindWorkerFailed, "worker failed to initialize")}
		out := NewDOCX(newFakeEngine(1), conv).Process(context.Background(), pdfInput(nil), nil)
		require.False(t, out.Success)
		assert.Equal(t, pipeline.KindWorkerFailed, out.Error.Code)
	})

	t.Run("encrypted never reaches the worker", func(t *testing.T) {
		e := newFakeEngine(1)
		e.encrypted = true
		conv := &fakeConverter{}
		out := NewDOCX(e, conv).Process(context.Background(), pdfInput(nil), nil)
		require.False(t, out.Success)
		assert.Equal(t, pipeline.KindPDFEncrypted, out.Error.Code)
		assert.Nil(t, conv.got.Document)
	})

	t.Run("cancel flag", func(t *testing.T) {
		in := pdfInput(nil)
		in.Cancel = &pipeline.CancelFlag{}
		go func() {
			time.Sleep(20 * time.Millisecond)
			in.Cancel.Cancel()
		}()
		out := NewDOCX(newFakeEngine(1), &fakeConverter{wait: true}).Process(context.Background(), in, nil)
		require.False(t, out.Success)
		assert.Equal(t, pipeline.KindProcessingCancelled, out.Error.Code)
	})
}

func TestCatalog(t *testing.T) {
	reg := Catalog(newFakeEngine(1), nil, DefaultLimits())
	assert.Equal(t, []string{"image-export", "rasterize", "watermark"}, reg.Names())

	reg = Catalog(newFakeEngine(1), &fakeConverter{}, DefaultLimits())
	assert.Equal(t, []string{"docx", "image-export", "rasterize", "watermark"}, reg.Names())

	for _, name := range reg.Names() {
		p, ok := reg.Get(name)
		require.True(t, ok)
		assert.NotEmpty(t, pipeline.Describe(p))
	}
}
