package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/joeblew999/pdffs/pkg/pipeline"
)

// FitzEngine renders with MuPDF through go-fitz
type FitzEngine struct{}

// NewFitzEngine creates a MuPDF backed engine
func NewFitzEngine() *FitzEngine {
	return &FitzEngine{}
}

// Open parses data. Password protected documents return pipeline.ErrEncrypted.
func (e *FitzEngine) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, fmt.Errorf("open document: %w", pipeline.ErrEncrypted)
		}
		return nil, fmt.Errorf("open document: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPages() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) Render(page int, scale float64) (image.Image, error) {
	if err := d.checkPage(page); err != nil {
		return nil, err
	}
	img, err := d.doc.ImageDPI(page-1, PointsPerInch*scale)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}

func (d *fitzDocument) checkPage(page int) error {
	if page < 1 || page > d.doc.NumPage() {
		return fmt.Errorf("page %d out of range (1-%d)", page, d.doc.NumPage())
	}
	return nil
}
