package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/joeblew999/pdffs/internal/worker/protocol"
)

var (
	// ErrTransport wraps failures of the channel itself
	ErrTransport = errors.New("worker transport failed")

	// ErrClosed is returned after Bridge.Close
	ErrClosed = errors.New("worker bridge closed")

	errGuestExited = errors.New("worker exited")
)

// Transport is a bidirectional message channel to one execution context
type Transport interface {
	Send(ctx context.Context, m protocol.Message) error

	// Recv blocks for the next message. Any error means the channel is dead.
	Recv() (protocol.Message, error)

	Close() error
}

// Factory creates a fresh execution context and the transport to reach it
type Factory func(ctx context.Context) (Transport, error)

// StreamTransport speaks newline-delimited JSON over a reader and writer
type StreamTransport struct {
	dec     *json.Decoder
	mu      sync.Mutex
	enc     *json.Encoder
	onClose func() error
	once    sync.Once
}

// NewStreamTransport wraps r and w. onClose, if set, runs once on Close.
func NewStreamTransport(r io.Reader, w io.Writer, onClose func() error) *StreamTransport {
	return &StreamTransport{
		dec:     json.NewDecoder(r),
		enc:     json.NewEncoder(w),
		onClose: onClose,
	}
}

func (t *StreamTransport) Send(ctx context.Context, m protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enc.Encode(m); err != nil {
		return fmt.Errorf("%w: send %s: %v", ErrTransport, m.Type, err)
	}
	return nil
}

func (t *StreamTransport) Recv() (protocol.Message, error) {
	var m protocol.Message
	if err := t.dec.Decode(&m); err != nil {
		return protocol.Message{}, fmt.Errorf("%w: recv: %v", ErrTransport, err)
	}
	return m, nil
}

func (t *StreamTransport) Close() error {
	var err error
	t.once.Do(func() {
		if t.onClose != nil {
			err = t.onClose()
		}
	})
	return err
}

// InProcess runs h in a goroutine behind a pipe transport. It gives the
// same protocol and failure behaviour as a WASM guest without the isolation.
func InProcess(h protocol.Handler) Factory {
	return func(ctx context.Context) (Transport, error) {
		hostR, guestW := io.Pipe()
		guestR, hostW := io.Pipe()
		gctx, cancel := context.WithCancel(ctx)

		go func() {
			err := errGuestExited
			defer func() { guestW.CloseWithError(err) }()
			if serr := protocol.Serve(gctx, guestR, guestW, h); serr != nil {
				err = serr
			}
		}()

		return NewStreamTransport(hostR, hostW, func() error {
			cancel()
			hostW.Close()
			return hostR.Close()
		}), nil
	}
}
