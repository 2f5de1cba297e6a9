package audit

import "time"

// Entry is an immutable, append-only audit record.
//
// Invariants:
// - Entries are never updated or deleted.
// - org_id is required for tenancy isolation.
// - Appends are best-effort; dispatch and control flows never block on
//   audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_entries with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Entry struct {
	ID    string    `json:"id" db:"id"`
	OrgID string    `json:"org_id" db:"org_id"`
	Type  EntryType `json:"type" db:"type"`

	// Target identifiers (optional, depending on the entry type).
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`
	ContactID  string `json:"contact_id,omitempty" db:"contact_id"`
	CallID     string `json:"call_id,omitempty" db:"call_id"`
	Phone      string `json:"phone,omitempty" db:"phone"`

	// Outcome is the dispatch or control result
	// (dispatched, denied, deferred, skipped, failed, injected, ended).
	Outcome string `json:"outcome,omitempty" db:"outcome"`
	// Reason qualifies the outcome (dnc_listed, consent_required,
	// outside_calling_hours, no_sendable_number, provider_error).
	Reason string `json:"reason,omitempty" db:"reason"`

	// ActorUserID is the authenticated user causing the entry, when a
	// human triggered it. Scheduler-driven entries leave it empty.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`
	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryType string

const (
	EntryTypeDispatch EntryType = "dispatch_attempt"
	EntryTypeControl  EntryType = "control_action"
)

// Filter scopes a compliance export query. OrgID is mandatory.
type Filter struct {
	OrgID      string
	Type       EntryType
	CampaignID string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}
