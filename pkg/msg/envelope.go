package msg

import (
	"encoding/json"
	"time"
)

// Stream type constants for the four outbound message streams.
const (
	TypeActiveTransforms = "active_transforms"
	TypeStaticTransforms = "static_transforms"
	TypeZoneMarkers      = "zone_markers"
	TypeMeshMarkers      = "mesh_markers"
)

// TypeSessionStart announces a publishing session. It is the only envelope
// the server acknowledges.
const TypeSessionStart = "session_start"

// SessionStartPayload carries the announcing node's identity.
type SessionStartPayload struct {
	Node      string    `json:"node"`
	StartedAt time.Time `json:"started_at"`
}

// Envelope wraps every message sent over the streaming transport.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}
