package pipeline

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const mimePDF = "application/pdf"

// RequireFiles checks that in carries exactly n files
func RequireFiles(in Input, n int) error {
	if len(in.Files) != n {
		return NewError(KindInvalidOptions, "expected %d file(s), got %d", n, len(in.Files))
	}
	return nil
}

// RequirePDF checks that f is a non-empty PDF, judged by extension,
// declared content type or content sniffing
func RequirePDF(f File) error {
	if len(f.Data) == 0 {
		return NewError(KindFileTypeInvalid, "%s is empty", displayName(f))
	}
	if !IsPDF(f) {
		return NewError(KindFileTypeInvalid, "%s is not a PDF", displayName(f)).WithDetail(mimetype.Detect(f.Data).String())
	}
	return nil
}

// IsPDF reports whether any of the file's type signals says PDF
func IsPDF(f File) bool {
	if strings.EqualFold(filepath.Ext(f.Name), ".pdf") {
		return true
	}
	if f.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(f.ContentType); err == nil && mt == mimePDF {
			return true
		}
	}
	return mimetype.Detect(f.Data).Is(mimePDF)
}

// RequireSinglePDF is the common validation prefix: one file, and a PDF
func RequireSinglePDF(in Input) (File, error) {
	if err := RequireFiles(in, 1); err != nil {
		return File{}, err
	}
	if err := RequirePDF(in.Files[0]); err != nil {
		return File{}, err
	}
	return in.Files[0], nil
}

func displayName(f File) string {
	if f.Name == "" {
		return "input file"
	}
	return f.Name
}
