package compliance

import "time"

// DNCEntry marks a number an organization must never call.
//
// Invariants:
// - Entries are append-only facts; removal is a new business event, not an update.
// - org_id is required for tenancy isolation.
type DNCEntry struct {
	ID     string `json:"id" db:"id"`
	OrgID  string `json:"org_id" db:"org_id"`
	Phone  string `json:"phone" db:"phone"`
	Source string `json:"source,omitempty" db:"source"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ConsentRecord is proof of permission to call a number in a jurisdiction
// that requires it. Append-only; a revocation is a later record with
// RevokedAt set, never a mutation of the original grant.
type ConsentRecord struct {
	ID    string `json:"id" db:"id"`
	OrgID string `json:"org_id" db:"org_id"`
	Phone string `json:"phone" db:"phone"`

	GrantedAt time.Time  `json:"granted_at" db:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
