package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/calls"
	"voiceagent-platform/internal/campaigns"
	"voiceagent-platform/internal/compliance"
	"voiceagent-platform/internal/limiter"
	"voiceagent-platform/internal/telephony"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// A wednesday, well inside default calling hours.
var noon = time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	fail   error
	nextID string
}

func (p *fakeProvider) Name() string                        { return "fake" }
func (p *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func (p *fakeProvider) OriginateCall(ctx context.Context, req telephony.OriginateRequest) (telephony.OriginateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return telephony.OriginateResult{}, p.fail
	}
	p.calls++
	id := p.nextID
	if id == "" {
		id = "prov-1"
	}
	return telephony.OriginateResult{ProviderCallID: id, Status: "queued", CreatedAt: noon}, nil
}

func (p *fakeProvider) InjectMessage(ctx context.Context, req telephony.InjectRequest) error { return nil }
func (p *fakeProvider) EndCall(ctx context.Context, providerCallID string) error             { return nil }

func (p *fakeProvider) originations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type harness struct {
	dispatcher *Dispatcher
	contacts   *campaigns.MemoryStore
	calls      *calls.MemoryStore
	limiter    *limiter.MemoryLimiter
	provider   *fakeProvider
	auditRepo  *audit.MemoryRepo
	campaign   campaigns.Campaign
}

func newHarness(t *testing.T, limits limiter.Limits) *harness {
	t.Helper()

	contacts := campaigns.NewMemoryStore()
	contacts.AddNumber(campaigns.PhoneNumber{ID: "n1", OrgID: "org-1", Number: "+15125550100", Active: true})

	loader := compliance.NewMemoryLoader()
	loader.Put(compliance.NewSnapshot("org-1", nil, nil, compliance.DefaultPolicy("UTC")))

	lim := limiter.NewMemoryLimiter(limiter.FixedLimits(limits))
	provider := &fakeProvider{}
	callStore := calls.NewMemoryStore()
	auditRepo := audit.NewMemoryRepo()

	d := NewDispatcher(contacts, loader, lim, provider, callStore, audit.NewService(auditRepo), testLog)
	d.SetClock(func() time.Time { return noon })

	return &harness{
		dispatcher: d,
		contacts:   contacts,
		calls:      callStore,
		limiter:    lim,
		provider:   provider,
		auditRepo:  auditRepo,
		campaign: campaigns.Campaign{
			ID:          "camp-1",
			OrgID:       "org-1",
			AgentID:     "agent-1",
			Status:      campaigns.CampaignStatusRunning,
			MaxAttempts: 3,
		},
	}
}

func (h *harness) contact(id string) campaigns.Contact {
	return h.contacts.AddContact(campaigns.Contact{
		ID: id, OrgID: "org-1", CampaignID: "camp-1", Phone: "+15125550000",
	})
}

func TestDispatch_Success(t *testing.T) {
	h := newHarness(t, limiter.Limits{MaxConcurrent: 10, PerMinute: 60})
	contact := h.contact("c1")

	res, err := h.dispatcher.Dispatch(context.Background(), h.campaign, contact)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Outcome != campaigns.OutcomeDispatched {
		t.Fatalf("expected dispatched, got %+v", res)
	}

	call, err := h.calls.GetByProviderCallID(context.Background(), "prov-1")
	if err != nil {
		t.Fatalf("call row: %v", err)
	}
	if call.Status != calls.CallStatusQueued || call.OrgID != "org-1" || call.ContactID != "c1" {
		t.Fatalf("unexpected call row: %+v", call)
	}
	if c, _ := h.contacts.GetContact("c1"); c.AttemptCount != 1 {
		t.Fatalf("attempt not claimed")
	}

	entries := h.auditRepo.Entries()
	if len(entries) != 1 || entries[0].Outcome != "dispatched" {
		t.Fatalf("expected one dispatched audit entry, got %+v", entries)
	}
}

func TestDispatch_DeniedConsumesAttemptWithoutProviderCall(t *testing.T) {
	h := newHarness(t, limiter.Limits{MaxConcurrent: 10, PerMinute: 60})
	contact := h.contact("c1")

	loader := compliance.NewMemoryLoader()
	dnc := map[string]struct{}{"+15125550000": {}}
	loader.Put(compliance.NewSnapshot("org-1", dnc, nil, compliance.DefaultPolicy("UTC")))
	h.dispatcher.gates = loader

	res, err := h.dispatcher.Dispatch(context.Background(), h.campaign, contact)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Outcome != campaigns.OutcomeDenied || res.Reason != "dnc_listed" {
		t.Fatalf("expected dnc denial, got %+v", res)
	}
	if h.provider.originations() != 0 {
		t.Fatalf("denied contact must never reach the provider")
	}
	if c, _ := h.contacts.GetContact("c1"); c.AttemptCount != 1 {
		t.Fatalf("denial must consume an attempt")
	}

	entries := h.auditRepo.Entries()
	if len(entries) != 1 || entries[0].Reason != "dnc_listed" {
		t.Fatalf("expected denial audited with reason, got %+v", entries)
	}
}

func TestDispatch_DeferredLeavesContactPending(t *testing.T) {
	h := newHarness(t, limiter.Limits{MaxConcurrent: 0, PerMinute: 60})
	contact := h.contact("c1")

	res, err := h.dispatcher.Dispatch(context.Background(), h.campaign, contact)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Outcome != campaigns.OutcomeDeferred {
		t.Fatalf("expected deferred, got %+v", res)
	}
	if c, _ := h.contacts.GetContact("c1"); c.AttemptCount != 0 {
		t.Fatalf("deferral must not consume an attempt")
	}
	if h.provider.originations() != 0 {
		t.Fatalf("deferred contact must never reach the provider")
	}
}

func TestDispatch_LostClaimRaceReleasesSlot(t *testing.T) {
	h := newHarness(t, limiter.Limits{MaxConcurrent: 1, PerMinute: 60})
	contact := h.contact("c1")

	// Another tick claims the attempt between selection and claim.
	if ok, _ := h.contacts.ClaimAttempt(context.Background(), "c1", 0, noon); !ok {
		t.Fatalf("setup claim failed")
	}

	res, err := h.dispatcher.Dispatch(context.Background(), h.campaign, contact)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Outcome != campaigns.OutcomeSkipped {
		t.Fatalf("expected skipped, got %+v", res)
	}
	if h.provider.originations() != 0 {
		t.Fatalf("lost race must never reach the provider")
	}

	// The slot went back: a fresh contact can still take the only slot.
	c2 := h.contact("c2")
	res, err = h.dispatcher.Dispatch(context.Background(), h.campaign, c2)
	if err != nil || res.Outcome != campaigns.OutcomeDispatched {
		t.Fatalf("slot was not released: %+v %v", res, err)
	}
}

func TestDispatch_ProviderFailureCountsAttemptAndReleasesSlot(t *testing.T) {
	h := newHarness(t, limiter.Limits{MaxConcurrent: 1, PerMinute: 60})
	contact := h.contact("c1")
	h.provider.fail = &telephony.ProviderError{StatusCode: 500, Body: "boom"}

	res, err := h.dispatcher.Dispatch(context.Background(), h.campaign, contact)
	if err != nil {
		t.Fatalf("provider failure is an outcome, not an error: %v", err)
	}
	if res.Outcome != campaigns.OutcomeFailed || res.Reason != ReasonProviderError {
		t.Fatalf("expected provider_error failure, got %+v", res)
	}
	if c, _ := h.contacts.GetContact("c1"); c.AttemptCount != 1 {
		t.Fatalf("provider failure must consume an attempt")
	}

	h.provider.fail = nil
	h.provider.nextID = "prov-2"
	c2 := h.contact("c2")
	res, err = h.dispatcher.Dispatch(context.Background(), h.campaign, c2)
	if err != nil || res.Outcome != campaigns.OutcomeDispatched {
		t.Fatalf("slot was not released after provider failure: %+v %v", res, err)
	}
}

func TestDispatch_NoActiveNumberFailsWithoutAttempt(t *testing.T) {
	h := newHarness(t, limiter.Limits{MaxConcurrent: 10, PerMinute: 60})
	contact := h.contact("c1")
	h.campaign.OrgID = "org-without-numbers"

	// Snapshot exists only for org-1; the number pool check runs first.
	res, err := h.dispatcher.Dispatch(context.Background(), h.campaign, contact)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Outcome != campaigns.OutcomeFailed || res.Reason != ReasonNoSendableNumber {
		t.Fatalf("expected no_sendable_number, got %+v", res)
	}
	if c, _ := h.contacts.GetContact("c1"); c.AttemptCount != 0 {
		t.Fatalf("missing caller id must not consume an attempt")
	}
}

func TestDispatch_ConcurrentTicksClaimOnce(t *testing.T) {
	h := newHarness(t, limiter.Limits{MaxConcurrent: 10, PerMinute: 60})
	contact := h.contact("c1")

	const ticks = 8
	results := make(chan campaigns.Result, ticks)
	var wg sync.WaitGroup
	for i := 0; i < ticks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.dispatcher.Dispatch(context.Background(), h.campaign, contact)
			if err != nil {
				t.Errorf("dispatch: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	dispatched := 0
	for res := range results {
		if res.Outcome == campaigns.OutcomeDispatched {
			dispatched++
		}
	}
	if dispatched != 1 {
		t.Fatalf("expected exactly one winner dispatching the contact, got %d", dispatched)
	}
	if h.provider.originations() != 1 {
		t.Fatalf("provider must be called exactly once, got %d", h.provider.originations())
	}
}
