package models

import "time"

// Request is an inbound user request from the chat transport.
// A Request is ephemeral: it is consumed by classification and pipeline
// construction and not persisted.
type Request struct {
	// ID is the unique identifier for this request.
	ID string `json:"id"`
	// SessionID identifies the user's ongoing interaction context.
	SessionID string `json:"session_id"`
	// Text is the raw request text.
	Text string `json:"text"`
	// Artifact is an optional attached artifact reference (e.g. an uploaded file).
	Artifact *Artifact `json:"artifact,omitempty"`
	// ReceivedAt is when the request arrived.
	ReceivedAt time.Time `json:"received_at"`
}
