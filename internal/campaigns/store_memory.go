package campaigns

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore mirrors the Postgres store's selection and claim semantics in
// memory. Useful for tests. It is not intended for production use.
type MemoryStore struct {
	mu        sync.Mutex
	campaigns map[string]*Campaign
	contacts  map[string]*Contact
	numbers   []PhoneNumber

	// settled marks contacts whose campaign call reached any terminal
	// status, which takes them out of the pending set for good.
	settled map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns: map[string]*Campaign{},
		contacts:  map[string]*Contact{},
		settled:   map[string]bool{},
	}
}

func (s *MemoryStore) AddCampaign(c Campaign) Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := c
	s.campaigns[cp.ID] = &cp
	return cp
}

func (s *MemoryStore) AddContact(c Contact) Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := c
	s.contacts[cp.ID] = &cp
	return cp
}

func (s *MemoryStore) AddNumber(n PhoneNumber) PhoneNumber {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	s.numbers = append(s.numbers, n)
	return n
}

// MarkContactSettled records a terminal call outcome for the contact.
func (s *MemoryStore) MarkContactSettled(contactID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled[contactID] = true
}

func (s *MemoryStore) GetCampaign(id string) (Campaign, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.campaigns[id]; ok {
		return *c, true
	}
	return Campaign{}, false
}

func (s *MemoryStore) GetContact(id string) (Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contacts[id]; ok {
		return *c, true
	}
	return Contact{}, false
}

func (s *MemoryStore) ListDueCampaigns(ctx context.Context, now time.Time) ([]Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Campaign
	for _, c := range s.campaigns {
		if c.Due(now) {
			out = append(out, *c)
		}
	}
	sortCampaigns(out)
	return out, nil
}

func (s *MemoryStore) ListEndedRunning(ctx context.Context, now time.Time) ([]Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Campaign
	for _, c := range s.campaigns {
		if c.Status == CampaignStatusRunning && !now.Before(c.ScheduleEnd) {
			out = append(out, *c)
		}
	}
	sortCampaigns(out)
	return out, nil
}

func (s *MemoryStore) ListPendingContacts(ctx context.Context, campaignID string, maxAttempts, limit int) ([]Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pendingLocked(campaignID, maxAttempts)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) HasPendingContacts(ctx context.Context, campaignID string, maxAttempts int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingLocked(campaignID, maxAttempts)) > 0, nil
}

func (s *MemoryStore) pendingLocked(campaignID string, maxAttempts int) []Contact {
	var out []Contact
	for _, c := range s.contacts {
		if c.CampaignID != campaignID || c.AttemptCount >= maxAttempts || s.settled[c.ID] {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) ClaimAttempt(ctx context.Context, contactID string, expected int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[contactID]
	if !ok || c.AttemptCount != expected {
		return false, nil
	}
	c.AttemptCount++
	c.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) CompleteCampaign(ctx context.Context, campaignID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok || c.Status != CampaignStatusRunning {
		return ErrNotFound
	}
	c.Status = CampaignStatusCompleted
	c.UpdatedAt = now
	return nil
}

func (s *MemoryStore) ResolveOutboundNumber(ctx context.Context, orgID string) (PhoneNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []PhoneNumber
	for _, n := range s.numbers {
		if n.OrgID == orgID && n.Active {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return PhoneNumber{}, ErrNoActiveNumber
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], nil
}

func sortCampaigns(cs []Campaign) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}
