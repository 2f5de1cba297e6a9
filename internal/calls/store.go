package calls

import (
	"context"
	"errors"
	"time"

	"voiceagent-platform/internal/telephony"
)

var ErrNotFound = errors.New("calls: not found")

// EventUpsert is one webhook event folded into the calls projection.
// Every field present in the event is written; absent fields keep their
// stored values, which makes the merge commutative under reordering.
type EventUpsert struct {
	ProviderCallID string
	Metadata       telephony.CallMetadata
	CustomerNumber string
	Direction      Direction

	Status CallStatus
	// StatusAuthoritative forces the status even over a terminal one.
	// Set for ended events (the provider is the source of truth); a late
	// started event must not resurrect a finished call.
	StatusAuthoritative bool

	StartedAt    *time.Time
	EndedAt      *time.Time
	RecordingURL string

	Now time.Time
}

// Store persists Call rows.
//
// Writes are upsert-shaped and keyed on provider_call_id so that webhook
// handlers and the dispatcher can race freely without ever producing a
// duplicate row.
type Store interface {
	// Create records the row made at dispatch time. If a webhook event for
	// the same provider call id already created the row, Create fills in the
	// identity fields (org, campaign, agent, contact) and leaves lifecycle
	// fields alone.
	Create(ctx context.Context, c Call) (Call, error)

	GetByID(ctx context.Context, id string) (Call, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error)

	// UpsertEvent applies one lifecycle event idempotently and returns the
	// resulting row plus the status it had before the event (empty when the
	// event created the row).
	UpsertEvent(ctx context.Context, e EventUpsert) (Call, CallStatus, error)

	// AppendTranscript sets the transcript once on an existing row.
	// Returns ErrNotFound when no row exists for the provider call id;
	// transcripts never fabricate calls.
	AppendTranscript(ctx context.Context, providerCallID, transcript string, now time.Time) (Call, error)

	// MarkCancelled speculatively cancels a non-terminal call. Returns
	// ErrNotFound when the call is missing or already terminal.
	MarkCancelled(ctx context.Context, id string, now time.Time) (Call, error)
}
