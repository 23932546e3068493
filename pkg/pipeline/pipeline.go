// Package pipeline defines the contract shared by every PDF operation:
// input files and options, progress and cancellation, and the result envelope.
package pipeline

import "context"

// Processor is one document operation.
type Processor interface {
	// Name is the operation identifier used by registries and the HTTP API
	Name() string

	// Process runs the operation. It never panics and never returns nil:
	// every failure is reported through the returned Output.
	Process(ctx context.Context, in Input, onProgress ProgressFunc) *Output
}

// Describer is implemented by processors that can describe themselves for listings
type Describer interface {
	Description() string
}

// ProgressFunc receives progress updates in the range 0..100
type ProgressFunc func(percent int, message string)

// Options is the open-ended configuration bag passed to a processor
type Options map[string]any

// File is a caller-owned input document. Processors read Data and never retain it.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Input holds everything a processor needs for one call
type Input struct {
	Files   []File
	Options Options

	// Cancel is polled between units of work. May be nil.
	Cancel *CancelFlag
}

// Blob is one produced artifact
type Blob struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// Output is the result envelope. Exactly one of Result and Error is set.
type Output struct {
	Success  bool           `json:"success"`
	Result   []Blob         `json:"result,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Error    *Error         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
