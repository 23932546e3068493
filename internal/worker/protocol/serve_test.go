package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) Init(_ context.Context, data json.RawMessage, status func(string)) error {
	if string(data) == `"bad"` {
		return errors.New("bad init data")
	}
	status("warming up")
	return nil
}

func (echoHandler) Convert(_ context.Context, req ConvertRequest, progress func(int, string)) ([]byte, error) {
	if req.Filename == "" {
		return nil, errors.New("no filename")
	}
	progress(40, "working")
	return append([]byte(req.Filename+":"), req.Document...), nil
}

func request(t *testing.T, msgs ...Message) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range msgs {
		require.NoError(t, enc.Encode(m))
	}
	return &buf
}

func replies(t *testing.T, out *bytes.Buffer) []Message {
	t.Helper()
	var msgs []Message
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var m Message
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		msgs = append(msgs, m)
	}
	return msgs
}

func TestServe(t *testing.T) {
	data, err := json.Marshal(ConvertRequest{Filename: "a.pdf", Document: []byte("doc")})
	require.NoError(t, err)

	in := request(t,
		Message{Type: TypeInit, ID: "1"},
		Message{Type: TypeConvert, ID: "2", Data: data},
		Message{Type: TypeConvert, ID: "3", Data: json.RawMessage(`{}`)},
		Message{Type: "reset", ID: "4"},
	)
	var out bytes.Buffer
	require.NoError(t, Serve(context.Background(), in, &out, echoHandler{}))

	got := replies(t, &out)
	require.Len(t, got, 6)

	assert.Equal(t, Message{Type: TypeStatus, Message: "warming up"}, got[0])
	assert.Equal(t, TypeInitComplete, got[1].Type)
	assert.Equal(t, "1", got[1].ID)

	assert.Equal(t, TypeProgress, got[2].Type)
	require.NotNil(t, got[2].Percent)
	assert.Equal(t, 40, *got[2].Percent)
	assert.Equal(t, TypeConvertComplete, got[3].Type)
	assert.Equal(t, "a.pdf:doc", string(got[3].Result))

	assert.Equal(t, Message{Type: TypeError, ID: "3", Error: "no filename"}, got[4])
	assert.Equal(t, TypeError, got[5].Type)
	assert.Equal(t, "4", got[5].ID)
	assert.Contains(t, got[5].Error, "unknown message type")

	for _, m := range got {
		if m.Terminal() {
			assert.NotEmpty(t, m.ID)
		}
	}
}

func TestServeInitError(t *testing.T) {
	in := request(t, Message{Type: TypeInit, ID: "x", Data: json.RawMessage(`"bad"`)})
	var out bytes.Buffer
	require.NoError(t, Serve(context.Background(), in, &out, echoHandler{}))

	got := replies(t, &out)
	require.Len(t, got, 1)
	assert.Equal(t, Message{Type: TypeError, ID: "x", Error: "bad init data"}, got[0])
}

func TestServeMalformedInput(t *testing.T) {
	var out bytes.Buffer
	err := Serve(context.Background(), strings.NewReader("{not json"), &out, echoHandler{})
	assert.Error(t, err)
	assert.Zero(t, out.Len())
}

func TestServeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := request(t, Message{Type: TypeInit, ID: "1"})
	err := Serve(ctx, in, &bytes.Buffer{}, echoHandler{})
	assert.ErrorIs(t, err, context.Canceled)
}
