package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/joeblew999/pdffs/pkg/pipeline"
)

var (
	runOpts    []string
	runOptJSON string
	runOutDir  string
	runQuiet   bool
)

var runCmd = &cobra.Command{
	Use:   "run <operation> <file>...",
	Short: "Run an operation on local files",
	Example: `  pdffs run rasterize report.pdf --opt dpi=300 --opt pages=1-3
  pdffs run rasterize report.pdf --opt columns=2 --opt rows=2 --out thumbs
  pdffs run docx report.pdf --out converted`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseOptions(runOptJSON, runOpts)
		if err != nil {
			return err
		}
		in := pipeline.Input{Options: opts}
		for _, path := range args[1:] {
			f, err := readFile(path)
			if err != nil {
				return err
			}
			in.Files = append(in.Files, f)
		}

		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		proc, ok := a.Registry.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown operation %q, see pdffs ops", args[0])
		}

		progress := func(percent int, message string) {
			if !runQuiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r[%3d%%] %-60.60s", percent, message)
			}
		}
		out := proc.Process(cmd.Context(), in, progress)
		if !runQuiet {
			fmt.Fprintln(cmd.ErrOrStderr())
		}

		if out.Success {
			if err := writeBlobs(runOutDir, out.Result); err != nil {
				return err
			}
		}
		if err := printEnvelope(cmd, out); err != nil {
			return err
		}
		if !out.Success {
			return out.Error
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringArrayVarP(&runOpts, "opt", "o", nil, "operation option as key=value (repeatable)")
	runCmd.Flags().StringVar(&runOptJSON, "options", "", "operation options as a JSON object")
	runCmd.Flags().StringVar(&runOutDir, "out", ".", "directory for produced files")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not print progress")
	rootCmd.AddCommand(runCmd)
}

// parseOptions merges a JSON object with key=value pairs, pairs winning.
// Values in pairs are kept as strings; option decoding converts them.
func parseOptions(raw string, pairs []string) (pipeline.Options, error) {
	opts := pipeline.Options{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			return nil, fmt.Errorf("--options: %w", err)
		}
	}
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--opt %q: want key=value", kv)
		}
		opts[k] = v
	}
	return opts, nil
}

func readFile(path string) (pipeline.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.File{}, fmt.Errorf("read input: %w", err)
	}
	return pipeline.File{
		Name:        filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

func writeBlobs(dir string, blobs []pipeline.Blob) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, b := range blobs {
		if err := os.WriteFile(filepath.Join(dir, filepath.Base(b.Name)), b.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", b.Name, err)
		}
	}
	return nil
}

// printEnvelope prints the envelope with blob data replaced by sizes
func printEnvelope(cmd *cobra.Command, out *pipeline.Output) error {
	type entry struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
		Size        int    `json:"size"`
	}
	summary := struct {
		Success  bool            `json:"success"`
		Filename string          `json:"filename,omitempty"`
		Outputs  []entry         `json:"outputs,omitempty"`
		Error    *pipeline.Error `json:"error,omitempty"`
		Metadata map[string]any  `json:"metadata,omitempty"`
	}{
		Success:  out.Success,
		Filename: out.Filename,
		Error:    out.Error,
		Metadata: out.Metadata,
	}
	for _, b := range out.Result {
		summary.Outputs = append(summary.Outputs, entry{b.Name, b.ContentType, len(b.Data)})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
