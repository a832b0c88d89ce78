package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSave      Action = "save"
	ActionTelemetry Action = "telemetry"
	ActionPing      Action = "ping"
)

// RequestPayload is a single client frame. Only the fields matching the
// action are read.
type RequestPayload struct {
	Action Action `json:"action"`

	// save
	QuestionID     string  `json:"question_id,omitempty"`
	SelectedOption *string `json:"selected_option,omitempty"`
	TimeTaken      int     `json:"time_taken,omitempty"`

	// telemetry
	EventType   string          `json:"event_type,omitempty"`
	Description string          `json:"description,omitempty"`
	Severity    string          `json:"severity,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventSaved Event = "saved"
	EventAck   Event = "ack"
	EventPong  Event = "pong"
)

type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

type AckResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
