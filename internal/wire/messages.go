// Package wire defines the WebSocket protocol between the labeling server
// and its viewers, and the hub that fans messages out to them.
package wire

import (
	"github.com/goccy/go-json"

	"github.com/matthewbaird/mllabeler/internal/types"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "selection_changed", "frustum", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// SelectionData is the payload of "selection_changed" and "replace_selection".
type SelectionData struct {
	IDs []string `json:"ids"`
}

// FrustumData is the payload of "frustum" and "setup_frustum".
type FrustumData struct {
	Frustum types.Frustum `json:"frustum"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "overlay", "replace_selection", "zoom_to_elements", "setup_frustum", "ack", "pong", "error"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// SessionData identifies the connection; it doubles as the viewport id.
type SessionData struct {
	SessionID string `json:"session_id"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
