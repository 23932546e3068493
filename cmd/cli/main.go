//go:build !js && !wasip1

// Command pdffs runs the PDF operations against local files
package main

import (
	"os"

	"github.com/joeblew999/pdffs/cmd/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
