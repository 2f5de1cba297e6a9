package compliance

import (
	"time"
)

// DenyReason is the business reason a number may not be called right now.
type DenyReason string

const (
	DenyDNCListed           DenyReason = "dnc_listed"
	DenyConsentRequired     DenyReason = "consent_required"
	DenyOutsideCallingHours DenyReason = "outside_calling_hours"
)

// Decision is the gate's verdict for one number at one instant.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

func allow() Decision                 { return Decision{Allowed: true} }
func deny(reason DenyReason) Decision { return Decision{Allowed: false, Reason: reason} }

// Snapshot is the pre-fetched lookup data the gate evaluates against.
// Build one per organization per tick; Evaluate never touches storage,
// so it is safe to call concurrently without locking.
type Snapshot struct {
	OrgID    string
	DNC      map[string]struct{}
	Consents map[string]struct{}
	Policy   Policy

	loc *time.Location
}

// NewSnapshot resolves the policy timezone once so Evaluate stays cheap.
// An unknown or empty timezone falls back to UTC.
func NewSnapshot(orgID string, dnc, consents map[string]struct{}, policy Policy) Snapshot {
	loc := time.UTC
	if policy.Timezone != "" {
		if l, err := time.LoadLocation(policy.Timezone); err == nil {
			loc = l
		}
	}
	if dnc == nil {
		dnc = map[string]struct{}{}
	}
	if consents == nil {
		consents = map[string]struct{}{}
	}
	return Snapshot{OrgID: orgID, DNC: dnc, Consents: consents, Policy: policy, loc: loc}
}

// Evaluate runs the compliance checks in order, short-circuiting on the
// first failure:
//
//  1. DNC list
//  2. two-party-consent jurisdiction without an active consent record
//  3. organization calling-hours window in the org's local time
//
// Pure: same inputs, same decision, no side effects.
func Evaluate(snap Snapshot, phone string, now time.Time) Decision {
	if _, listed := snap.DNC[phone]; listed {
		return deny(DenyDNCListed)
	}

	if RequiresTwoPartyConsent(phone) {
		if _, ok := snap.Consents[phone]; !ok {
			return deny(DenyConsentRequired)
		}
	}

	loc := snap.loc
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()
	if !snap.Policy.window(local.Weekday()).contains(minute) {
		return deny(DenyOutsideCallingHours)
	}

	return allow()
}
