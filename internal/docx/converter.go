package docx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joeblew999/pdffs/internal/worker/protocol"
)

// Converter implements protocol.Handler for PDF to DOCX conversion. It runs
// inside the wasip1 guest, so failures travel back as status messages rather
// than log lines.
type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

var _ protocol.Handler = (*Converter)(nil)

func (c *Converter) Init(ctx context.Context, _ json.RawMessage, status func(string)) error {
	status("loading converter")
	if err := ctx.Err(); err != nil {
		return err
	}
	status("converter ready")
	return nil
}

// Convert extracts the plain text of each requested page into a DOCX.
// Pages without extractable text become empty pages.
func (c *Converter) Convert(ctx context.Context, req protocol.ConvertRequest, progress func(int, string)) (out []byte, err error) {
	defer func() {
		// the PDF reader panics on some malformed files
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(req.Document), int64(len(req.Document)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	pages := req.Pages
	if len(pages) == 0 {
		for i := 1; i <= total; i++ {
			pages = append(pages, i)
		}
	}

	doc := &Document{Title: strings.TrimSuffix(req.Filename, ".pdf")}
	for i, n := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n < 1 || n > total {
			return nil, fmt.Errorf("page %d out of range (1-%d)", n, total)
		}

		text, err := pageText(r, n)
		msg := fmt.Sprintf("converted page %d of %d", i+1, len(pages))
		if err != nil {
			msg = fmt.Sprintf("page %d has no extractable text: %v", n, err)
		}
		doc.AddPage(text)
		progress((i+1)*100/len(pages), msg)
	}

	return doc.Bytes()
}

func pageText(r *pdf.Reader, n int) (string, error) {
	page := r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
