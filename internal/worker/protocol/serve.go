package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Handler does the work inside the execution context
type Handler interface {
	// Init prepares the context. status reports indeterminate progress.
	Init(ctx context.Context, data json.RawMessage, status func(message string)) error

	Convert(ctx context.Context, req ConvertRequest, progress func(percent int, message string)) ([]byte, error)
}

// Serve answers requests read from r until r is exhausted. Requests are
// handled one at a time; every request gets exactly one terminal reply.
func Serve(ctx context.Context, r io.Reader, w io.Writer, h Handler) error {
	dec := json.NewDecoder(r)
	out := &replier{enc: json.NewEncoder(w)}

	for {
		var m Message
		if err := dec.Decode(&m); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var reply Message
		switch m.Type {
		case TypeInit:
			err := h.Init(ctx, m.Data, func(msg string) {
				out.send(Message{Type: TypeStatus, Message: msg})
			})
			reply = terminal(m.ID, TypeInitComplete, nil, err)

		case TypeConvert:
			var req ConvertRequest
			if err := json.Unmarshal(m.Data, &req); err != nil {
				reply = terminal(m.ID, TypeError, nil, fmt.Errorf("decode convert request: %w", err))
				break
			}
			result, err := h.Convert(ctx, req, func(p int, msg string) {
				out.send(Message{Type: TypeProgress, Message: msg, Percent: Percent(p)})
			})
			reply = terminal(m.ID, TypeConvertComplete, result, err)

		default:
			reply = terminal(m.ID, TypeError, nil, fmt.Errorf("unknown message type %q", m.Type))
		}

		if err := out.send(reply); err != nil {
			return err
		}
	}
}

func terminal(id string, ok MessageType, result []byte, err error) Message {
	if err != nil {
		return Message{Type: TypeError, ID: id, Error: err.Error()}
	}
	return Message{Type: ok, ID: id, Result: result}
}

type replier struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (r *replier) send(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(m); err != nil {
		return fmt.Errorf("write %s: %w", m.Type, err)
	}
	return nil
}
