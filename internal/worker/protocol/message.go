// Package protocol is the message format spoken between the host bridge and
// an isolated worker, plus the guest-side serve loop. It has no third-party
// imports so that it builds for the wasip1 guest.
package protocol

import "encoding/json"

// MessageType tags a protocol message
type MessageType string

const (
	TypeInit            MessageType = "init"
	TypeInitComplete    MessageType = "init-complete"
	TypeStatus          MessageType = "status"
	TypeProgress        MessageType = "progress"
	TypeConvert         MessageType = "convert"
	TypeConvertComplete MessageType = "convert-complete"
	TypeError           MessageType = "error"
)

// Message is one JSON line on the wire.
//
// Requests carry Type, ID and Data. Terminal replies carry the request ID
// plus Result or Error. Status and progress messages carry Message and
// optionally Percent, and no ID.
type Message struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Result  []byte          `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Percent *int            `json:"percent,omitempty"`
}

// Terminal reports whether m completes a request
func (m Message) Terminal() bool {
	switch m.Type {
	case TypeInitComplete, TypeConvertComplete, TypeError:
		return true
	}
	return false
}

// ConvertRequest is the data of a convert message
type ConvertRequest struct {
	Filename string         `json:"filename"`
	Document []byte         `json:"document"`
	Pages    []int          `json:"pages,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// Percent returns a pointer for Message.Percent
func Percent(p int) *int {
	return &p
}
