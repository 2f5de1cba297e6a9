package calls

import "time"

// Call is the authoritative record of one real telephony interaction.
//
// Multi-tenant invariant: OrgID is required on every row.
//
// Idempotency invariant: exactly one row exists per provider call id,
// enforced by a unique index and upsert-only writes. Once a call reaches a
// terminal status the row is immutable except for a late-arriving transcript.
type Call struct {
	ID         string `json:"id" db:"id"`
	OrgID      string `json:"org_id" db:"org_id"`
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`
	AgentID    string `json:"agent_id" db:"agent_id"`
	ContactID  string `json:"contact_id,omitempty" db:"contact_id"`

	// ProviderCallID is the external provider's unique id; empty until dispatch.
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	Direction Direction  `json:"direction" db:"direction"`
	Status    CallStatus `json:"status" db:"status"`

	// CustomerNumber is the far-end number in E.164.
	CustomerNumber string `json:"customer_number,omitempty" db:"customer_number"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is derived from started/ended, floored at zero.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// Transcript is append-once; set at most one time, after the call.
	Transcript   string `json:"transcript,omitempty" db:"transcript"`
	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusCancelled  CallStatus = "cancelled"
)

// Terminal reports whether the status ends the call's lifecycle.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusCancelled:
		return true
	default:
		return false
	}
}
