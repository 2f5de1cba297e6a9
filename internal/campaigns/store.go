package campaigns

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("campaigns: not found")
	ErrNoActiveNumber = errors.New("campaigns: no active outbound number")
)

// Store is the persistence contract for campaigns, contacts and the
// outbound number pool.
type Store interface {
	// ListDueCampaigns returns running campaigns whose schedule window
	// contains now, in stable (created_at, id) order.
	ListDueCampaigns(ctx context.Context, now time.Time) ([]Campaign, error)

	// ListEndedRunning returns running campaigns whose schedule window has
	// closed. Candidates for auto-completion.
	ListEndedRunning(ctx context.Context, now time.Time) ([]Campaign, error)

	// ListPendingContacts returns up to limit contacts of the campaign that
	// still owe a call: attempt count below maxAttempts and no terminal
	// call recorded for them in this campaign. Stable (created_at, id)
	// order so concurrent ticks contend on the same rows.
	ListPendingContacts(ctx context.Context, campaignID string, maxAttempts, limit int) ([]Contact, error)

	// HasPendingContacts reports whether the campaign still owes any call.
	HasPendingContacts(ctx context.Context, campaignID string, maxAttempts int) (bool, error)

	// ClaimAttempt increments the contact's attempt count if and only if
	// it still equals expected. Returns false when a concurrent claimer
	// won the race.
	ClaimAttempt(ctx context.Context, contactID string, expected int, now time.Time) (bool, error)

	// CompleteCampaign moves a running campaign to completed.
	CompleteCampaign(ctx context.Context, campaignID string, now time.Time) error

	// ResolveOutboundNumber picks an active caller id for the org.
	// ErrNoActiveNumber when the pool is empty.
	ResolveOutboundNumber(ctx context.Context, orgID string) (PhoneNumber, error)
}
