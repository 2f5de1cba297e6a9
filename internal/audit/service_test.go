package audit

import (
	"context"
	"testing"
	"time"
)

func TestService_AppendRequiresOrgAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Entry{Type: EntryTypeDispatch}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Entry{OrgID: "org-1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_LogDispatchAppendsImmutableEntry(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogDispatch(context.Background(), "org-1", "camp-1", "contact-1", "", "+15125550000", "denied", "dnc_listed"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	entries := repo.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry")
	}
	e := entries[0]
	if e.Type != EntryTypeDispatch {
		t.Fatalf("expected dispatch_attempt, got %q", e.Type)
	}
	if e.Outcome != "denied" || e.Reason != "dnc_listed" {
		t.Fatalf("outcome not captured: %+v", e)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp filled")
	}
}

func TestService_ExportScopesByOrgAndRange(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	base := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return base }

	seed := []Entry{
		{OrgID: "org-1", Type: EntryTypeDispatch, CampaignID: "camp-1", CreatedAt: base},
		{OrgID: "org-1", Type: EntryTypeDispatch, CampaignID: "camp-2", CreatedAt: base.Add(time.Hour)},
		{OrgID: "org-2", Type: EntryTypeDispatch, CampaignID: "camp-1", CreatedAt: base},
		{OrgID: "org-1", Type: EntryTypeControl, CallID: "call-1", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, e := range seed {
		if err := svc.Append(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := svc.Export(context.Background(), Filter{OrgID: "org-1", Type: EntryTypeDispatch})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 dispatch entries for org-1, got %d", len(got))
	}
	for _, e := range got {
		if e.OrgID != "org-1" {
			t.Fatalf("foreign org leaked into export: %+v", e)
		}
	}

	got, err = svc.Export(context.Background(), Filter{
		OrgID: "org-1",
		From:  base.Add(30 * time.Minute),
		To:    base.Add(90 * time.Minute),
	})
	if err != nil {
		t.Fatalf("export range: %v", err)
	}
	if len(got) != 1 || got[0].CampaignID != "camp-2" {
		t.Fatalf("range filter wrong: %+v", got)
	}

	if _, err := svc.Export(context.Background(), Filter{}); err == nil {
		t.Fatalf("export without org must fail")
	}
}
