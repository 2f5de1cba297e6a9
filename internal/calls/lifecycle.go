package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"voiceagent-platform/internal/sessions"
	"voiceagent-platform/internal/telephony"
)

// SlotReleaser frees one concurrency slot when a call leaves the line.
type SlotReleaser interface {
	Release(ctx context.Context, orgID string) error
}

// Lifecycle folds asynchronous provider events into the calls projection.
//
// Events arrive on independent concurrent handlers with no ordering
// guarantee, including between events for the same call id. Rather than a
// strict state machine that rejects "impossible" sequences, each event is an
// idempotent field-level upsert: duplicates write the same values, reordered
// events merge correctly, and anomalies are logged instead of rejected.
type Lifecycle struct {
	store    Store
	registry *sessions.Registry
	releaser SlotReleaser
	clock    func() time.Time

	// unknownRefs counts events naming a provider call id we have no row
	// for. Surfaced on /healthz; a steady climb means a broken account
	// mapping, not normal churn.
	unknownRefs atomic.Int64
}

func NewLifecycle(store Store, registry *sessions.Registry, releaser SlotReleaser) *Lifecycle {
	return &Lifecycle{
		store:    store,
		registry: registry,
		releaser: releaser,
		clock:    time.Now,
	}
}

// SetClock replaces the lifecycle clock. Test hook.
func (l *Lifecycle) SetClock(clock func() time.Time) { l.clock = clock }

func (l *Lifecycle) UnknownRefCount() int64 { return l.unknownRefs.Load() }

// ApplyEvent processes one webhook event. Unknown event types and unknown
// call references are logged and ignored; they are never errors, so the
// webhook endpoint can always acknowledge.
func (l *Lifecycle) ApplyEvent(ctx context.Context, log *slog.Logger, p telephony.WebhookPayload) error {
	if p.Call.ID == "" {
		l.unknownRefs.Add(1)
		log.Warn("event without provider call id ignored", "type", p.Type)
		return nil
	}

	switch p.Type {
	case telephony.EventCallStarted:
		return l.applyStarted(ctx, log, p)
	case telephony.EventCallEnded:
		return l.applyEnded(ctx, log, p)
	case telephony.EventTranscriptComplete:
		return l.applyTranscript(ctx, log, p)
	default:
		// Forward compatibility with the provider's event schema.
		log.Info("unknown event type ignored", "type", p.Type, "provider_call_id", p.Call.ID)
		return nil
	}
}

func (l *Lifecycle) applyStarted(ctx context.Context, log *slog.Logger, p telephony.WebhookPayload) error {
	now := l.clock().UTC()
	c, prev, err := l.store.UpsertEvent(ctx, EventUpsert{
		ProviderCallID: p.Call.ID,
		Metadata:       p.Call.Metadata,
		CustomerNumber: p.Call.Customer.Number,
		Direction:      directionFor(p.Call.Metadata),
		Status:         CallStatusInProgress,
		StartedAt:      p.Call.StartedAt,
		Now:            now,
	})
	if err != nil {
		return fmt.Errorf("calls: apply started: %w", err)
	}

	if prev.Terminal() {
		log.Warn("started event arrived after terminal status", "provider_call_id", p.Call.ID, "status", c.Status)
		return nil
	}

	l.registry.Put(sessions.Session{
		ProviderCallID: c.ProviderCallID,
		CallID:         c.ID,
		OrgID:          c.OrgID,
		StartedAt:      now,
	})
	return nil
}

func (l *Lifecycle) applyEnded(ctx context.Context, log *slog.Logger, p telephony.WebhookPayload) error {
	now := l.clock().UTC()
	c, prev, err := l.store.UpsertEvent(ctx, EventUpsert{
		ProviderCallID:      p.Call.ID,
		Metadata:            p.Call.Metadata,
		CustomerNumber:      p.Call.Customer.Number,
		Direction:           directionFor(p.Call.Metadata),
		Status:              terminalStatusFor(p.Call.Status),
		StatusAuthoritative: true,
		StartedAt:           p.Call.StartedAt,
		EndedAt:             p.Call.EndedAt,
		RecordingURL:        p.Call.RecordingURL,
		Now:                 now,
	})
	if err != nil {
		return fmt.Errorf("calls: apply ended: %w", err)
	}

	if p.Call.Transcript != "" {
		if _, err := l.store.AppendTranscript(ctx, p.Call.ID, p.Call.Transcript, now); err != nil {
			log.Warn("transcript on ended event not stored", "provider_call_id", p.Call.ID, "err", err)
		}
	}

	l.registry.Delete(p.Call.ID)

	// Free the concurrency slot exactly once, on the first transition into
	// a terminal state. Duplicate ended events skip this branch.
	if !prev.Terminal() && c.OrgID != "" && l.releaser != nil {
		if err := l.releaser.Release(ctx, c.OrgID); err != nil {
			log.Warn("limiter release failed", "org_id", c.OrgID, "err", err)
		}
	}
	return nil
}

func (l *Lifecycle) applyTranscript(ctx context.Context, log *slog.Logger, p telephony.WebhookPayload) error {
	if p.Call.Transcript == "" {
		log.Warn("transcript event without transcript body", "provider_call_id", p.Call.ID)
		return nil
	}
	now := l.clock().UTC()
	if _, err := l.store.AppendTranscript(ctx, p.Call.ID, p.Call.Transcript, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Never fabricate a Call from a transcript-only event.
			l.unknownRefs.Add(1)
			log.Warn("transcript for unknown call ignored", "provider_call_id", p.Call.ID)
			return nil
		}
		return fmt.Errorf("calls: append transcript: %w", err)
	}
	return nil
}

func directionFor(md telephony.CallMetadata) Direction {
	if md.CampaignID != "" || md.ContactID != "" {
		return DirectionOutbound
	}
	return DirectionInbound
}

// terminalStatusFor maps the provider's ended status to ours. Unknown
// values collapse to completed; the raw status is still visible in logs.
func terminalStatusFor(providerStatus string) CallStatus {
	switch providerStatus {
	case "failed", "error":
		return CallStatusFailed
	case "no-answer", "no_answer", "busy", "customer-did-not-answer":
		return CallStatusNoAnswer
	case "canceled", "cancelled":
		return CallStatusCancelled
	default:
		return CallStatusCompleted
	}
}
