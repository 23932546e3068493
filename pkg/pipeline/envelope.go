package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Succeed wraps produced blobs. An empty blob list is reported as a failure
// so that the envelope never carries neither result nor error.
func Succeed(filename string, blobs ...Blob) *Output {
	if len(blobs) == 0 {
		return Fail(NewError(KindProcessingFailed, "no output was produced"))
	}
	if filename == "" {
		filename = blobs[0].Name
	}
	return &Output{
		Success:  true,
		Result:   blobs,
		Filename: filename,
	}
}

// Fail wraps an error into a failed envelope
func Fail(err error) *Output {
	e := Classify(err)
	if e == nil {
		e = NewError(KindProcessingFailed, "unknown failure")
	}
	return &Output{Success: false, Error: e}
}

// WithMetadata sets one metadata entry and returns o
func (o *Output) WithMetadata(key string, value any) *Output {
	if o.Metadata == nil {
		o.Metadata = make(map[string]any)
	}
	o.Metadata[key] = value
	return o
}

// Guard runs fn and converts panics and nil results into failed envelopes.
// Every Processor implementation routes its body through Guard.
func Guard(op string, fn func() *Output) (out *Output) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"operation": op,
				"panic":     r,
			}).Error("processor panicked")
			out = Fail(NewError(KindProcessingFailed, "unexpected failure").WithDetail(fmt.Sprint(r)))
		}
	}()

	out = fn()
	if out == nil {
		out = Fail(NewError(KindProcessingFailed, "processor returned no result"))
	}
	return out
}
