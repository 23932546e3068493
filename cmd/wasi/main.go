//go:build wasi || wasip1

// WASI entry point for the DOCX worker. The host starts one instance per
// execution context and exchanges protocol messages over stdin/stdout.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joeblew999/pdffs/internal/docx"
	"github.com/joeblew999/pdffs/internal/worker/protocol"
)

const version = "pdffs-worker v0.1.0 (wasi)"

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := protocol.Serve(context.Background(), os.Stdin, os.Stdout, docx.NewConverter()); err != nil {
			fmt.Fprintf(os.Stderr, "worker: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: pdffs-worker [command]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve    Speak the worker protocol on stdin/stdout (default)")
	fmt.Fprintln(os.Stderr, "  version  Print version")
	fmt.Fprintln(os.Stderr, "  help     Print this help")
}
