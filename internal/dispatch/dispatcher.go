// Package dispatch places one outbound call for one contact, enforcing the
// compliance gate and the per-org limiter in front of the provider.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/calls"
	"voiceagent-platform/internal/campaigns"
	"voiceagent-platform/internal/compliance"
	"voiceagent-platform/internal/limiter"
	"voiceagent-platform/internal/telephony"
)

// Reasons attached to denied and failed outcomes.
const (
	ReasonNoSendableNumber = "no_sendable_number"
	ReasonProviderError    = "provider_error"
)

// ContactStore is the slice of the campaign store the dispatcher needs.
type ContactStore interface {
	ClaimAttempt(ctx context.Context, contactID string, expected int, now time.Time) (bool, error)
	ResolveOutboundNumber(ctx context.Context, orgID string) (campaigns.PhoneNumber, error)
}

type Dispatcher struct {
	contacts ContactStore
	gates    compliance.SnapshotLoader
	limiter  limiter.Limiter
	provider telephony.VoiceProvider
	calls    calls.Store
	audit    *audit.Service
	log      *slog.Logger
	clock    func() time.Time
}

func NewDispatcher(
	contacts ContactStore,
	gates compliance.SnapshotLoader,
	lim limiter.Limiter,
	provider telephony.VoiceProvider,
	callStore calls.Store,
	auditSvc *audit.Service,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		contacts: contacts,
		gates:    gates,
		limiter:  lim,
		provider: provider,
		calls:    callStore,
		audit:    auditSvc,
		log:      log,
		clock:    time.Now,
	}
}

// SetClock replaces the dispatcher clock. Test hook.
func (d *Dispatcher) SetClock(clock func() time.Time) { d.clock = clock }

// Dispatch runs the full pipeline for one contact:
// resolve caller id, compliance gate, limiter, atomic attempt claim,
// provider origination. Policy outcomes (denied, deferred, skipped, failed)
// come back as Results with a nil error; the error return is reserved for
// infrastructure faults that should abort the current batch.
//
// Attempt accounting: denials and provider failures consume an attempt,
// limiter deferrals and lost claim races do not.
func (d *Dispatcher) Dispatch(ctx context.Context, campaign campaigns.Campaign, contact campaigns.Contact) (campaigns.Result, error) {
	now := d.clock().UTC()

	number, err := d.contacts.ResolveOutboundNumber(ctx, campaign.OrgID)
	if err != nil {
		if errors.Is(err, campaigns.ErrNoActiveNumber) {
			d.logDispatch(ctx, campaign, contact, "", campaigns.OutcomeFailed, ReasonNoSendableNumber)
			return campaigns.Result{Outcome: campaigns.OutcomeFailed, Reason: ReasonNoSendableNumber}, nil
		}
		return campaigns.Result{}, fmt.Errorf("dispatch: resolve outbound number: %w", err)
	}

	snap, err := d.gates.LoadSnapshot(ctx, campaign.OrgID)
	if err != nil {
		return campaigns.Result{}, fmt.Errorf("dispatch: load compliance snapshot: %w", err)
	}
	if decision := compliance.Evaluate(snap, contact.Phone, now); !decision.Allowed {
		// A denial is a real attempt against this contact.
		if _, err := d.contacts.ClaimAttempt(ctx, contact.ID, contact.AttemptCount, now); err != nil {
			return campaigns.Result{}, fmt.Errorf("dispatch: claim attempt: %w", err)
		}
		reason := string(decision.Reason)
		d.logDispatch(ctx, campaign, contact, "", campaigns.OutcomeDenied, reason)
		return campaigns.Result{Outcome: campaigns.OutcomeDenied, Reason: reason}, nil
	}

	acquired, err := d.limiter.TryAcquire(ctx, campaign.OrgID)
	if err != nil {
		return campaigns.Result{}, fmt.Errorf("dispatch: limiter: %w", err)
	}
	if !acquired {
		// No attempt consumed; the contact stays pending for the next tick.
		d.logDispatch(ctx, campaign, contact, "", campaigns.OutcomeDeferred, "")
		return campaigns.Result{Outcome: campaigns.OutcomeDeferred}, nil
	}

	// Claim the attempt before any provider I/O so two overlapping ticks
	// cannot both call the same contact.
	claimed, err := d.contacts.ClaimAttempt(ctx, contact.ID, contact.AttemptCount, now)
	if err != nil {
		d.release(ctx, campaign.OrgID)
		return campaigns.Result{}, fmt.Errorf("dispatch: claim attempt: %w", err)
	}
	if !claimed {
		d.release(ctx, campaign.OrgID)
		d.logDispatch(ctx, campaign, contact, "", campaigns.OutcomeSkipped, "")
		return campaigns.Result{Outcome: campaigns.OutcomeSkipped}, nil
	}

	origin, err := d.provider.OriginateCall(ctx, telephony.OriginateRequest{
		AgentID: campaign.AgentID,
		From:    number.Number,
		To:      contact.Phone,
		Metadata: telephony.CallMetadata{
			OrgID:      campaign.OrgID,
			CampaignID: campaign.ID,
			AgentID:    campaign.AgentID,
			ContactID:  contact.ID,
		},
	})
	if err != nil {
		// The claimed attempt stands; the slot goes back since no call
		// is on the line.
		d.release(ctx, campaign.OrgID)
		d.log.Warn("origination failed",
			"org_id", campaign.OrgID, "campaign_id", campaign.ID,
			"contact_id", contact.ID, "err", err)
		d.logDispatch(ctx, campaign, contact, "", campaigns.OutcomeFailed, ReasonProviderError)
		return campaigns.Result{Outcome: campaigns.OutcomeFailed, Reason: ReasonProviderError}, nil
	}

	call, err := d.calls.Create(ctx, calls.Call{
		OrgID:          campaign.OrgID,
		CampaignID:     campaign.ID,
		AgentID:        campaign.AgentID,
		ContactID:      contact.ID,
		ProviderCallID: origin.ProviderCallID,
		Direction:      calls.DirectionOutbound,
		Status:         calls.CallStatusQueued,
		CustomerNumber: contact.Phone,
		CreatedAt:      now,
	})
	if err != nil {
		// The provider call is live; the row will materialize from the
		// first webhook event's upsert.
		d.log.Warn("call row create failed, deferring to webhook upsert",
			"provider_call_id", origin.ProviderCallID, "err", err)
	}

	d.logDispatch(ctx, campaign, contact, call.ID, campaigns.OutcomeDispatched, "")
	return campaigns.Result{Outcome: campaigns.OutcomeDispatched, CallID: call.ID}, nil
}

func (d *Dispatcher) release(ctx context.Context, orgID string) {
	if err := d.limiter.Release(ctx, orgID); err != nil {
		d.log.Warn("limiter release failed", "org_id", orgID, "err", err)
	}
}

func (d *Dispatcher) logDispatch(ctx context.Context, campaign campaigns.Campaign, contact campaigns.Contact, callID string, outcome campaigns.Outcome, reason string) {
	err := d.audit.LogDispatch(ctx, campaign.OrgID, campaign.ID, contact.ID, callID, contact.Phone, string(outcome), reason)
	if err != nil {
		d.log.Warn("audit append failed",
			"campaign_id", campaign.ID, "contact_id", contact.ID, "err", err)
	}
}
