package protocol

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is bumped whenever the wire format changes in a way
// old clients cannot tolerate. Mismatched clients are rejected at AUTH.
const ProtocolVersion = 1

// DefaultPort is the port both the TCP control channel and the UDP data
// channel listen on.
const DefaultPort = 50000

// Control message types carried over the TCP channel.
const (
	TypeAuth       = "AUTH"
	TypeAuthResult = "AUTH_RESULT"
	TypeClick      = "CLICK"
	TypeMouseDown  = "MOUSE_DOWN"
	TypeMouseUp    = "MOUSE_UP"
	TypeKey        = "KEY"
	TypeText       = "TEXT"
	TypeClipboard  = "CLIPBOARD"
	TypePing       = "PING"
	TypePong       = "PONG"
	TypeGetMacros  = "GET_MACROS"
	TypeMacros     = "MACROS"
	TypeExecMacro  = "EXEC_MACRO"
)

// Clipboard source tags. The values are fixed by the wire format; the
// receiver only accepts pushes tagged with the client source and always
// broadcasts with the receiver source.
const (
	ClipboardSourceClient   = "ANDROID"
	ClipboardSourceReceiver = "WINDOWS"
)

// MacroInfo is one entry of a MACROS listing.
type MacroInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is the envelope for every newline-delimited control message.
// Only Type is always present; the remaining fields are populated per
// message type and omitted from the wire otherwise.
type Message struct {
	Type string `json:"type"`

	// AUTH
	Token   string `json:"token,omitempty"`
	Version int    `json:"version,omitempty"`
	Device  string `json:"device,omitempty"`

	// AUTH_RESULT. Success is a pointer so a rejection carries an explicit
	// success=false while every other message type omits the field.
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`

	// CLICK / MOUSE_DOWN / MOUSE_UP
	Button string `json:"button,omitempty"`

	// KEY
	Code      string   `json:"code,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`

	// TEXT / CLIPBOARD
	Text   string `json:"text,omitempty"`
	Source string `json:"source,omitempty"`

	// PING / PONG
	Time int64 `json:"time,omitempty"`

	// EXEC_MACRO
	ID string `json:"id,omitempty"`

	// MACROS
	Macros []MacroInfo `json:"macros,omitempty"`
}

// EncodeMessage serializes a control message as one newline-terminated
// JSON line ready to be written to the stream.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("message type is required")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}

	return append(data, '\n'), nil
}

// DecodeMessage parses a single line from the control channel. The
// trailing newline may or may not be present.
func DecodeMessage(line []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, fmt.Errorf("parse control message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("control message missing type")
	}
	return msg, nil
}

// IsSuccess reports whether an AUTH_RESULT message signals success.
func (m Message) IsSuccess() bool {
	return m.Success != nil && *m.Success
}

// AuthResultOK builds a successful AUTH_RESULT.
func AuthResultOK() Message {
	ok := true
	return Message{Type: TypeAuthResult, Success: &ok}
}

// AuthResultError builds a failed AUTH_RESULT with a user-facing reason.
func AuthResultError(reason string) Message {
	failed := false
	return Message{Type: TypeAuthResult, Success: &failed, Error: reason}
}
