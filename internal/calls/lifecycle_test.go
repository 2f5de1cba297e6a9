package calls

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"voiceagent-platform/internal/sessions"
	"voiceagent-platform/internal/telephony"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeReleaser struct {
	released []string
}

func (f *fakeReleaser) Release(ctx context.Context, orgID string) error {
	f.released = append(f.released, orgID)
	return nil
}

func newTestLifecycle() (*Lifecycle, *MemoryStore, *sessions.Registry, *fakeReleaser) {
	store := NewMemoryStore()
	reg := sessions.NewRegistry()
	rel := &fakeReleaser{}
	l := NewLifecycle(store, reg, rel)
	l.SetClock(func() time.Time { return time.Unix(1700000000, 0).UTC() })
	return l, store, reg, rel
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func startedEvent(pid string) telephony.WebhookPayload {
	return telephony.WebhookPayload{
		Type: telephony.EventCallStarted,
		Call: telephony.WebhookCall{
			ID:        pid,
			Status:    "in-progress",
			StartedAt: ts("2025-03-05T12:00:00Z"),
			Customer:  telephony.WebhookCustomer{Number: "+15551234567"},
			Metadata:  telephony.CallMetadata{OrgID: "org-1", CampaignID: "camp-1", AgentID: "agent-1", ContactID: "contact-1"},
		},
	}
}

func TestApplyEvent_StartedIsIdempotent(t *testing.T) {
	l, store, reg, _ := newTestLifecycle()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.ApplyEvent(ctx, testLog, startedEvent("prov-1")); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	c, err := store.GetByProviderCallID(ctx, "prov-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Status != CallStatusInProgress {
		t.Fatalf("expected in_progress, got %q", c.Status)
	}
	if c.StartedAt == nil || !c.StartedAt.Equal(*ts("2025-03-05T12:00:00Z")) {
		t.Fatalf("unexpected startedAt: %v", c.StartedAt)
	}

	// Exactly one row regardless of duplicates.
	if _, err := store.GetByID(ctx, c.ID); err != nil {
		t.Fatalf("row lookup: %v", err)
	}
	if _, ok := reg.Get("prov-1"); !ok {
		t.Fatalf("expected live session")
	}
}

func TestApplyEvent_EndedComputesDurationFromStoredStart(t *testing.T) {
	l, store, _, _ := newTestLifecycle()
	ctx := context.Background()

	if err := l.ApplyEvent(ctx, testLog, startedEvent("prov-1")); err != nil {
		t.Fatalf("started: %v", err)
	}

	// Ended event omits startedAt; duration must come from the stored value.
	ended := telephony.WebhookPayload{
		Type: telephony.EventCallEnded,
		Call: telephony.WebhookCall{
			ID:      "prov-1",
			Status:  "completed",
			EndedAt: ts("2025-03-05T12:02:30Z"),
		},
	}
	if err := l.ApplyEvent(ctx, testLog, ended); err != nil {
		t.Fatalf("ended: %v", err)
	}

	c, _ := store.GetByProviderCallID(ctx, "prov-1")
	if c.Status != CallStatusCompleted {
		t.Fatalf("expected completed, got %q", c.Status)
	}
	if c.DurationSeconds != 150 {
		t.Fatalf("expected 150s, got %d", c.DurationSeconds)
	}
}

func TestApplyEvent_EndedWithoutStartFloorsDurationAtZero(t *testing.T) {
	l, store, _, _ := newTestLifecycle()
	ctx := context.Background()

	ended := telephony.WebhookPayload{
		Type: telephony.EventCallEnded,
		Call: telephony.WebhookCall{
			ID:       "prov-2",
			Status:   "no-answer",
			EndedAt:  ts("2025-03-05T12:02:30Z"),
			Metadata: telephony.CallMetadata{OrgID: "org-1", AgentID: "agent-1", ContactID: "c"},
		},
	}
	if err := l.ApplyEvent(ctx, testLog, ended); err != nil {
		t.Fatalf("ended: %v", err)
	}

	c, err := store.GetByProviderCallID(ctx, "prov-2")
	if err != nil {
		t.Fatalf("row should exist even when ended arrives first: %v", err)
	}
	if c.Status != CallStatusNoAnswer {
		t.Fatalf("expected no_answer, got %q", c.Status)
	}
	if c.DurationSeconds != 0 {
		t.Fatalf("expected zero duration, got %d", c.DurationSeconds)
	}
}

func TestApplyEvent_EndedBeforeStartedStillMerges(t *testing.T) {
	l, store, reg, _ := newTestLifecycle()
	ctx := context.Background()

	ended := telephony.WebhookPayload{
		Type: telephony.EventCallEnded,
		Call: telephony.WebhookCall{
			ID:       "prov-1",
			Status:   "completed",
			EndedAt:  ts("2025-03-05T12:02:30Z"),
			Metadata: telephony.CallMetadata{OrgID: "org-1", CampaignID: "camp-1", AgentID: "agent-1", ContactID: "c"},
		},
	}
	if err := l.ApplyEvent(ctx, testLog, ended); err != nil {
		t.Fatalf("ended: %v", err)
	}
	if err := l.ApplyEvent(ctx, testLog, startedEvent("prov-1")); err != nil {
		t.Fatalf("started: %v", err)
	}

	c, _ := store.GetByProviderCallID(ctx, "prov-1")
	if c.Status != CallStatusCompleted {
		t.Fatalf("late started must not resurrect a terminal call, got %q", c.Status)
	}
	if c.StartedAt == nil || c.EndedAt == nil {
		t.Fatalf("expected both timestamps present")
	}
	if c.DurationSeconds != 150 {
		t.Fatalf("expected recomputed duration 150s, got %d", c.DurationSeconds)
	}
	if _, ok := reg.Get("prov-1"); ok {
		t.Fatalf("late started must not register a session for a finished call")
	}
}

func TestApplyEvent_EndedReleasesSlotExactlyOnce(t *testing.T) {
	l, _, reg, rel := newTestLifecycle()
	ctx := context.Background()

	if err := l.ApplyEvent(ctx, testLog, startedEvent("prov-1")); err != nil {
		t.Fatalf("started: %v", err)
	}
	ended := telephony.WebhookPayload{
		Type: telephony.EventCallEnded,
		Call: telephony.WebhookCall{ID: "prov-1", Status: "completed", EndedAt: ts("2025-03-05T12:01:00Z")},
	}
	for i := 0; i < 3; i++ {
		if err := l.ApplyEvent(ctx, testLog, ended); err != nil {
			t.Fatalf("ended %d: %v", i, err)
		}
	}

	if len(rel.released) != 1 {
		t.Fatalf("expected exactly one release, got %d", len(rel.released))
	}
	if rel.released[0] != "org-1" {
		t.Fatalf("released wrong org: %q", rel.released[0])
	}
	if _, ok := reg.Get("prov-1"); ok {
		t.Fatalf("expected session destroyed")
	}
}

func TestApplyEvent_TranscriptForUnknownCallIsCountedNoop(t *testing.T) {
	l, store, _, _ := newTestLifecycle()
	ctx := context.Background()

	ev := telephony.WebhookPayload{
		Type: telephony.EventTranscriptComplete,
		Call: telephony.WebhookCall{ID: "prov-unknown", Transcript: "hello"},
	}
	if err := l.ApplyEvent(ctx, testLog, ev); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if l.UnknownRefCount() != 1 {
		t.Fatalf("expected unknown ref counted, got %d", l.UnknownRefCount())
	}
	if _, err := store.GetByProviderCallID(ctx, "prov-unknown"); err == nil {
		t.Fatalf("transcript event must not fabricate a call row")
	}
}

func TestApplyEvent_TranscriptAppendsOnce(t *testing.T) {
	l, store, _, _ := newTestLifecycle()
	ctx := context.Background()

	if err := l.ApplyEvent(ctx, testLog, startedEvent("prov-1")); err != nil {
		t.Fatalf("started: %v", err)
	}
	first := telephony.WebhookPayload{
		Type: telephony.EventTranscriptComplete,
		Call: telephony.WebhookCall{ID: "prov-1", Transcript: "first"},
	}
	second := telephony.WebhookPayload{
		Type: telephony.EventTranscriptComplete,
		Call: telephony.WebhookCall{ID: "prov-1", Transcript: "second"},
	}
	if err := l.ApplyEvent(ctx, testLog, first); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := l.ApplyEvent(ctx, testLog, second); err != nil {
		t.Fatalf("second: %v", err)
	}

	c, _ := store.GetByProviderCallID(ctx, "prov-1")
	if c.Transcript != "first" {
		t.Fatalf("transcript must be append-once, got %q", c.Transcript)
	}
}

func TestApplyEvent_UnknownTypeIgnored(t *testing.T) {
	l, store, _, _ := newTestLifecycle()
	ctx := context.Background()

	ev := telephony.WebhookPayload{
		Type: "call.speech-update",
		Call: telephony.WebhookCall{ID: "prov-9", Status: "speaking"},
	}
	if err := l.ApplyEvent(ctx, testLog, ev); err != nil {
		t.Fatalf("unknown type must not error: %v", err)
	}
	if _, err := store.GetByProviderCallID(ctx, "prov-9"); err == nil {
		t.Fatalf("unknown type must not create rows")
	}
}

func TestTerminalStatusMapping(t *testing.T) {
	cases := map[string]CallStatus{
		"completed":               CallStatusCompleted,
		"failed":                  CallStatusFailed,
		"busy":                    CallStatusNoAnswer,
		"no-answer":               CallStatusNoAnswer,
		"customer-did-not-answer": CallStatusNoAnswer,
		"cancelled":               CallStatusCancelled,
		"something-new":           CallStatusCompleted,
	}
	for in, want := range cases {
		if got := terminalStatusFor(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}
