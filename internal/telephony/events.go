package telephony

import (
	"encoding/json"
	"time"
)

// Webhook event types this engine understands. The provider's schema grows
// over time; unrecognized types must be acknowledged and ignored.
const (
	EventCallStarted        = "call.started"
	EventCallEnded          = "call.ended"
	EventTranscriptComplete = "transcript.complete"
)

// WebhookPayload is the provider's event envelope:
// {type, call: {id, status, startedAt, endedAt, transcript, customer.number}}.
type WebhookPayload struct {
	Type string      `json:"type"`
	Call WebhookCall `json:"call"`
}

type WebhookCall struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	EndedAt      *time.Time      `json:"endedAt,omitempty"`
	Transcript   string          `json:"transcript,omitempty"`
	RecordingURL string          `json:"recordingUrl,omitempty"`
	Customer     WebhookCustomer `json:"customer"`
	Metadata     CallMetadata    `json:"metadata"`

	// Raw keeps fields we do not model; useful for debugging and audit.
	Raw json.RawMessage `json:"-"`
}

type WebhookCustomer struct {
	Number string `json:"number"`
}

// ParseWebhookPayload decodes the provider event body. Unknown fields are
// tolerated; only a missing envelope is an error.
func ParseWebhookPayload(body []byte) (WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return WebhookPayload{}, err
	}
	p.Call.Raw = json.RawMessage(body)
	return p, nil
}
