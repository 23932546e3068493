package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation
type ErrorKind string

const (
	KindInvalidOptions      ErrorKind = "INVALID_OPTIONS"
	KindFileTypeInvalid     ErrorKind = "FILE_TYPE_INVALID"
	KindInvalidPageRange    ErrorKind = "INVALID_PAGE_RANGE"
	KindProcessingCancelled ErrorKind = "PROCESSING_CANCELLED"
	KindProcessingFailed    ErrorKind = "PROCESSING_FAILED"
	KindWorkerFailed        ErrorKind = "WORKER_FAILED"
	KindPDFEncrypted        ErrorKind = "PDF_ENCRYPTED"
)

var (
	// ErrCancelled is returned when the cancel flag or context stops a call
	ErrCancelled = errors.New("processing cancelled")

	// ErrEncrypted is returned by document engines for password protected files
	ErrEncrypted = errors.New("document is encrypted")
)

// Error is the failure half of the envelope
type Error struct {
	Code    ErrorKind `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
}

// NewError builds an Error with a formatted message
func NewError(code ErrorKind, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of e carrying diagnostic detail
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: k}) works
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Classify maps any error onto the envelope taxonomy.
// Unknown errors become PROCESSING_FAILED with the original text as detail.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	switch {
	case errors.Is(err, ErrCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return NewError(KindProcessingCancelled, "processing was cancelled")
	case errors.Is(err, ErrEncrypted):
		return NewError(KindPDFEncrypted, "document is password protected").WithDetail(err.Error())
	}

	return NewError(KindProcessingFailed, "processing failed").WithDetail(err.Error())
}

// KindOf returns the ErrorKind err would be reported as
func KindOf(err error) ErrorKind {
	if e := Classify(err); e != nil {
		return e.Code
	}
	return ""
}
