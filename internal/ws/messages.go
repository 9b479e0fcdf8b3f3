package ws

import (
	"encoding/json"

	"sketchrelay/internal/services/strokelog"
)

// Wire message types, discriminated by the "message_type" field.
const (
	MsgDraw  = "draw"
	MsgEnd   = "end"
	MsgError = "error"
)

// Frame is the shape of every inbound frame and of outbound "draw"
// frames (live fan-out and replay alike):
//
//	{"message_type":"draw","pointer":{...}}
//
// The pointer payload is opaque and passed through untouched.
type Frame struct {
	MessageType string          `json:"message_type"`
	Pointer     json.RawMessage `json:"pointer,omitempty"`
}

// EndFrame is the outbound shape for a completed stroke. It carries
// the persisted record so every client, originator included, keys the
// stroke by the same ID.
type EndFrame struct {
	MessageType string                 `json:"message_type"`
	Data        strokelog.StrokeRecord `json:"data"`
}

// ErrorFrame is sent only to the client whose action failed.
type ErrorFrame struct {
	MessageType string `json:"message_type"`
	Error       string `json:"error"`
}
