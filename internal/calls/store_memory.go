package calls

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore mirrors the Postgres store's upsert semantics in memory.
// Useful for tests. It is not intended for production use.
type MemoryStore struct {
	mu         sync.Mutex
	byID       map[string]*Call
	byProvider map[string]*Call
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       map[string]*Call{},
		byProvider: map[string]*Call{},
	}
}

func (s *MemoryStore) Create(ctx context.Context, c Call) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byProvider[c.ProviderCallID]; ok && c.ProviderCallID != "" {
		existing.OrgID = c.OrgID
		existing.CampaignID = c.CampaignID
		existing.AgentID = c.AgentID
		existing.ContactID = c.ContactID
		existing.Direction = c.Direction
		existing.UpdatedAt = c.CreatedAt
		return *existing, nil
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.UpdatedAt = c.CreatedAt
	cp := c
	s.byID[cp.ID] = &cp
	if cp.ProviderCallID != "" {
		s.byProvider[cp.ProviderCallID] = &cp
	}
	return cp, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok {
		return *c, nil
	}
	return Call{}, ErrNotFound
}

func (s *MemoryStore) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byProvider[providerCallID]; ok {
		return *c, nil
	}
	return Call{}, ErrNotFound
}

func (s *MemoryStore) UpsertEvent(ctx context.Context, e EventUpsert) (Call, CallStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byProvider[e.ProviderCallID]
	var prev CallStatus
	if !ok {
		c = &Call{
			ID:             uuid.NewString(),
			OrgID:          e.Metadata.OrgID,
			CampaignID:     e.Metadata.CampaignID,
			AgentID:        e.Metadata.AgentID,
			ContactID:      e.Metadata.ContactID,
			ProviderCallID: e.ProviderCallID,
			Direction:      e.Direction,
			Status:         e.Status,
			CreatedAt:      e.Now,
		}
		s.byID[c.ID] = c
		s.byProvider[e.ProviderCallID] = c
	} else {
		prev = c.Status
		if e.StatusAuthoritative || !c.Status.Terminal() {
			c.Status = e.Status
		}
	}

	if e.CustomerNumber != "" {
		c.CustomerNumber = e.CustomerNumber
	}
	if e.StartedAt != nil {
		t := *e.StartedAt
		c.StartedAt = &t
	}
	if e.EndedAt != nil {
		t := *e.EndedAt
		c.EndedAt = &t
	}
	if c.StartedAt != nil && c.EndedAt != nil {
		d := int(c.EndedAt.Sub(*c.StartedAt).Seconds())
		if d < 0 {
			d = 0
		}
		c.DurationSeconds = d
	}
	if e.RecordingURL != "" {
		c.RecordingURL = e.RecordingURL
	}
	c.UpdatedAt = e.Now

	return *c, prev, nil
}

func (s *MemoryStore) AppendTranscript(ctx context.Context, providerCallID, transcript string, now time.Time) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byProvider[providerCallID]
	if !ok {
		return Call{}, ErrNotFound
	}
	if c.Transcript == "" {
		c.Transcript = transcript
	}
	c.UpdatedAt = now
	return *c, nil
}

func (s *MemoryStore) MarkCancelled(ctx context.Context, id string, now time.Time) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	switch c.Status {
	case CallStatusQueued, CallStatusRinging, CallStatusInProgress:
		c.Status = CallStatusCancelled
		c.UpdatedAt = now
		return *c, nil
	default:
		return Call{}, ErrNotFound
	}
}
