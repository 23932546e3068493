package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
)

// CancelFlag is a cooperative cancellation switch shared between a caller
// and a running operation. The zero value is ready to use.
type CancelFlag struct {
	set atomic.Bool
}

// Cancel requests cancellation
func (f *CancelFlag) Cancel() {
	f.set.Store(true)
}

// Cancelled reports whether Cancel was called. A nil flag is never cancelled.
func (f *CancelFlag) Cancelled() bool {
	return f != nil && f.set.Load()
}

// Reporter is the per-call progress state. Percent never decreases and
// stays below 100 until Done is called.
type Reporter struct {
	ctx    context.Context
	cancel *CancelFlag
	fn     ProgressFunc

	mu      sync.Mutex
	percent int
	message string
}

// NewReporter starts progress at 0 with an empty message
func NewReporter(ctx context.Context, cancel *CancelFlag, fn ProgressFunc) *Reporter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Reporter{ctx: ctx, cancel: cancel, fn: fn}
}

// Update reports progress, clamped to [current, 99]
func (r *Reporter) Update(percent int, message string) {
	r.mu.Lock()
	if percent > 99 {
		percent = 99
	}
	if percent < r.percent {
		percent = r.percent
	}
	r.percent = percent
	r.message = message
	fn := r.fn
	r.mu.Unlock()

	if fn != nil {
		fn(percent, message)
	}
}

// Step reports progress for item done of total, scaled into the band [from, to]
func (r *Reporter) Step(done, total, from, to int, message string) {
	if total <= 0 {
		r.Update(from, message)
		return
	}
	r.Update(from+(to-from)*done/total, message)
}

// Done reports 100. Only successful calls reach it.
func (r *Reporter) Done(message string) {
	r.mu.Lock()
	r.percent = 100
	r.message = message
	fn := r.fn
	r.mu.Unlock()

	if fn != nil {
		fn(100, message)
	}
}

// Percent returns the last reported percentage
func (r *Reporter) Percent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent
}

// Message returns the last reported message
func (r *Reporter) Message() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message
}

// Cancelled reports whether the flag was set or the context ended
func (r *Reporter) Cancelled() bool {
	return r.cancel.Cancelled() || r.ctx.Err() != nil
}

// Check returns ErrCancelled when the call should stop
func (r *Reporter) Check() error {
	if r.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Context returns the call context
func (r *Reporter) Context() context.Context {
	return r.ctx
}
