package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"codeberg.org/go-pdf/fpdf"

	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// PDFAssembler collects rendered pages into one PDF. The first page sets up
// the document with its own size and orientation; every later page is added
// at its own size.
type PDFAssembler struct {
	pdf     *fpdf.Fpdf
	format  Format
	quality float64
	pages   int
}

// NewPDFAssembler embeds pages as JPEG when format is lossy, PNG otherwise
func NewPDFAssembler(format Format, quality float64) *PDFAssembler {
	if format != FormatJPEG {
		format = FormatPNG
	}
	return &PDFAssembler{format: format, quality: quality}
}

// AddPage appends img as a full-bleed page of size points
func (a *PDFAssembler) AddPage(img image.Image, size pipeline.Size) error {
	data, err := EncodeBytes(img, a.format, a.quality)
	if err != nil {
		return err
	}

	orient, pageSize := orientation(size)
	if a.pdf == nil {
		a.pdf = fpdf.NewCustom(&fpdf.InitType{
			OrientationStr: orient,
			UnitStr:        "pt",
			Size:           pageSize,
		})
		a.pdf.SetMargins(0, 0, 0)
		a.pdf.SetAutoPageBreak(false, 0)
		a.pdf.AddPage()
	} else {
		a.pdf.AddPageFormat(orient, pageSize)
	}

	a.pages++
	name := fmt.Sprintf("page-%d", a.pages)
	opts := fpdf.ImageOptions{ImageType: a.imageType()}
	a.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	a.pdf.ImageOptions(name, 0, 0, size.W, size.H, false, opts, 0, "")
	if err := a.pdf.Error(); err != nil {
		return fmt.Errorf("add page %d: %w", a.pages, err)
	}
	return nil
}

// Pages returns the number of pages added so far
func (a *PDFAssembler) Pages() int {
	return a.pages
}

// Bytes writes out the document
func (a *PDFAssembler) Bytes() ([]byte, error) {
	if a.pdf == nil {
		return nil, errors.New("no pages were added")
	}
	var buf bytes.Buffer
	if err := a.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *PDFAssembler) imageType() string {
	if a.format == FormatJPEG {
		return "JPG"
	}
	return "PNG"
}

// orientation returns fpdf's orientation string and the portrait-form size
// it expects; fpdf swaps width and height for landscape pages.
func orientation(s pipeline.Size) (string, fpdf.SizeType) {
	if s.W > s.H {
		return "L", fpdf.SizeType{Wd: s.H, Ht: s.W}
	}
	return "P", fpdf.SizeType{Wd: s.W, Ht: s.H}
}
