package server

import (
	"encoding/json"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "set", "setEntry", "blur", "add", "remove", "confirmRemove", "cancelRemove", "submit", "reset", "draft", "snapshot", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// SetData is the payload for "set" and "blur" messages.
type SetData struct {
	Field string `json:"field"`
	Value any    `json:"value,omitempty"`
}

// EntryData is the payload for entry messages.
type EntryData struct {
	Array string `json:"array"`
	Key   string `json:"key,omitempty"`
	Child string `json:"child,omitempty"`
	Value any    `json:"value,omitempty"`
	At    *int   `json:"at,omitempty"`
}

// ResetData is the payload for "reset" messages.
type ResetData struct {
	IgnoreDefaults bool `json:"ignoreDefaults"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "snapshot", "entry", "submitted", "pending", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EntryCreated is sent after an entry was added.
type EntryCreated struct {
	Array string `json:"array"`
	Key   string `json:"key"`
}

// SubmitData carries a submission outcome.
type SubmitData struct {
	OK           bool              `json:"ok"`
	Values       map[string]any    `json:"values"`
	Errors       map[string]string `json:"errors,omitempty"`
	SubmissionID string            `json:"submission_id,omitempty"`
}

// SessionData carries session information.
type SessionData struct {
	SessionID string `json:"session_id"`
	Form      string `json:"form"`
}
