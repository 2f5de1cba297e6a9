package sessions

import (
	"testing"
	"time"
)

func TestRegistry_PutGetDelete(t *testing.T) {
	r := NewRegistry()

	s := Session{ProviderCallID: "prov-1", CallID: "call-1", OrgID: "org-1", StartedAt: time.Now()}
	r.Put(s)

	got, ok := r.Get("prov-1")
	if !ok {
		t.Fatalf("expected session")
	}
	if got.CallID != "call-1" || got.OrgID != "org-1" {
		t.Fatalf("unexpected session: %+v", got)
	}

	r.Delete("prov-1")
	if _, ok := r.Get("prov-1"); ok {
		t.Fatalf("expected session gone after delete")
	}
}

func TestRegistry_IgnoresEmptyKey(t *testing.T) {
	r := NewRegistry()
	r.Put(Session{CallID: "call-1"})
	if r.Count() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestRegistry_EntriesExpire(t *testing.T) {
	r := NewRegistryWithTTL(10 * time.Millisecond)
	r.Put(Session{ProviderCallID: "prov-1"})

	time.Sleep(30 * time.Millisecond)
	if _, ok := r.Get("prov-1"); ok {
		t.Fatalf("expected entry to expire")
	}
}
