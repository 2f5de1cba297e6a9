package campaigns

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// Campaign is a batch of outbound calls tied to one agent.
type Campaign struct {
	ID            string         `json:"id" db:"id"`
	OrgID         string         `json:"org_id" db:"org_id"`
	AgentID       string         `json:"agent_id" db:"agent_id"`
	Name          string         `json:"name" db:"name"`
	Status        CampaignStatus `json:"status" db:"status"`
	ScheduleStart time.Time      `json:"schedule_start" db:"schedule_start"`
	ScheduleEnd   time.Time      `json:"schedule_end" db:"schedule_end"`
	BatchSize     int            `json:"batch_size" db:"batch_size"`
	MaxAttempts   int            `json:"max_attempts" db:"max_attempts"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// Due reports whether the campaign should be picked up by a tick at now.
// The schedule window is half-open: start inclusive, end exclusive.
func (c Campaign) Due(now time.Time) bool {
	return c.Status == CampaignStatusRunning &&
		!now.Before(c.ScheduleStart) && now.Before(c.ScheduleEnd)
}

// Contact is one callee. AttemptCount only moves through ClaimAttempt.
type Contact struct {
	ID           string    `json:"id" db:"id"`
	OrgID        string    `json:"org_id" db:"org_id"`
	CampaignID   string    `json:"campaign_id,omitempty" db:"campaign_id"`
	Phone        string    `json:"phone" db:"phone"`
	AttemptCount int       `json:"attempt_count" db:"attempt_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PhoneNumber is an org-owned outbound caller id.
type PhoneNumber struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"org_id" db:"org_id"`
	Number    string    `json:"number" db:"number"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Outcome classifies one dispatch attempt for the scheduler's bookkeeping.
type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeDenied     Outcome = "denied"
	OutcomeDeferred   Outcome = "deferred"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Result is one dispatch attempt's outcome. Reason qualifies denied and
// failed outcomes; CallID is set only when a call was placed.
type Result struct {
	Outcome Outcome
	Reason  string
	CallID  string
}
