package render

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is a raster output encoding
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatGIF  Format = "gif"
)

// Formats lists every supported raster format
var Formats = []Format{FormatPNG, FormatJPEG, FormatBMP, FormatTIFF, FormatGIF}

// DefaultQuality is the lossy encoding quality used when an operation is not given one
const DefaultQuality = 0.92

// Ext returns the filename extension without a dot
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatTIFF:
		return "tif"
	default:
		return string(f)
	}
}

// ContentType returns the MIME type
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Lossy reports whether quality applies to f
func (f Format) Lossy() bool {
	return f == FormatJPEG
}

// Encode writes img in format f. quality (0..1) is used by lossy formats
// and ignored by the rest.
func Encode(w io.Writer, img image.Image, f Format, quality float64) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality(quality)})
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatGIF:
		return gif.Encode(w, img, &gif.Options{NumColors: 256})
	default:
		return fmt.Errorf("unsupported image format %q", f)
	}
}

// EncodeBytes is Encode into a new buffer
func EncodeBytes(img image.Image, f Format, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f, quality); err != nil {
		return nil, fmt.Errorf("encode %s: %w", f, err)
	}
	return buf.Bytes(), nil
}

// jpegQuality maps 0..1 onto the encoder's 1..100. Callers substitute
// DefaultQuality themselves when no quality was asked for.
func jpegQuality(q float64) int {
	return min(max(int(math.Round(q*100)), 1), 100)
}
