package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/pdffs/pkg/pipeline"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		pairs   []string
		want    pipeline.Options
		wantErr bool
	}{
		{"empty", "", nil, pipeline.Options{}, false},
		{"pairs", "", []string{"dpi=300", "pages=1-3,5"}, pipeline.Options{"dpi": "300", "pages": "1-3,5"}, false},
		{"json", `{"columns":2,"skipFirstPage":true}`, nil, pipeline.Options{"columns": 2.0, "skipFirstPage": true}, false},
		{"pair overrides json", `{"dpi":72}`, []string{"dpi=144"}, pipeline.Options{"dpi": "144"}, false},
		{"value with equals", "", []string{"text=a=b"}, pipeline.Options{"text": "a=b"}, false},
		{"missing value", "", []string{"dpi"}, nil, true},
		{"missing key", "", []string{"=1"}, nil, true},
		{"bad json", "{", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOptions(tt.raw, tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadAndWriteFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.7\n%%EOF\n"), 0o644))

	f, err := readFile(src)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", f.Name)
	assert.Equal(t, "application/pdf", f.ContentType)

	_, err = readFile(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)

	out := filepath.Join(dir, "out", "nested")
	require.NoError(t, writeBlobs(out, []pipeline.Blob{
		{Name: "report_page1.png", Data: []byte("one")},
		{Name: "../escape.png", Data: []byte("two")},
	}))
	data, err := os.ReadFile(filepath.Join(out, "report_page1.png"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
	_, err = os.Stat(filepath.Join(out, "escape.png"))
	assert.NoError(t, err)
}

func TestPrintEnvelope(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	out := pipeline.Succeed("", pipeline.Blob{Name: "a_page1.png", ContentType: "image/png", Data: []byte("png")}).
		WithMetadata("pageCount", 1)
	require.NoError(t, printEnvelope(cmd, out))
	assert.Contains(t, buf.String(), `"size": 3`)
	assert.NotContains(t, buf.String(), `"data"`)

	buf.Reset()
	require.NoError(t, printEnvelope(cmd, pipeline.Fail(pipeline.NewError(pipeline.KindPDFEncrypted, "locked"))))
	assert.Contains(t, buf.String(), string(pipeline.KindPDFEncrypted))
}
