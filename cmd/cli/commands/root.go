package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joeblew999/pdffs/internal/app"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pdffs",
	Short: "Rasterize, watermark and convert PDF files",
	Long: `pdffs runs the same operations as the HTTP service against local files.
Results are written to a directory and the envelope is printed as JSON.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadApp builds the application for a command invocation
func loadApp(cmd *cobra.Command) (*app.App, error) {
	a, err := app.New(cmd.Context(), cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return a, nil
}
