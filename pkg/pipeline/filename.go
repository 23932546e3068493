package pipeline

import (
	"path/filepath"
	"strings"
)

// BaseName strips directories and the extension from a source filename
func BaseName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" || base == "." || base == "/" {
		return "document"
	}
	return base
}

// OutputName derives an output filename: base of source, suffix, then ext
//
//	OutputName("report.pdf", "_page3", "png") == "report_page3.png"
func OutputName(source, suffix, ext string) string {
	return BaseName(source) + suffix + "." + strings.TrimPrefix(ext, ".")
}
