package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit entries.
//
// It MUST be append-only. No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Service records dispatch attempts and control actions, and serves the
// compliance export. Callers treat appends as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEntry = errors.New("audit: invalid entry")

const defaultExportLimit = 100

func (s *Service) Append(ctx context.Context, e Entry) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrgID == "" {
		return ErrInvalidEntry
	}
	if e.Type == "" {
		return ErrInvalidEntry
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogDispatch records one dispatch attempt outcome for a contact.
func (s *Service) LogDispatch(ctx context.Context, orgID, campaignID, contactID, callID, phone, outcome, reason string) error {
	return s.Append(ctx, Entry{
		OrgID:      orgID,
		Type:       EntryTypeDispatch,
		CampaignID: campaignID,
		ContactID:  contactID,
		CallID:     callID,
		Phone:      phone,
		Outcome:    outcome,
		Reason:     reason,
	})
}

// LogControl records a live-call control action taken by a user.
func (s *Service) LogControl(ctx context.Context, orgID, actorUserID, callID, action, detail string) error {
	return s.Append(ctx, Entry{
		OrgID:       orgID,
		Type:        EntryTypeControl,
		CallID:      callID,
		Outcome:     action,
		ActorUserID: actorUserID,
		Message:     detail,
	})
}

// Export returns entries matching the filter, newest first. OrgID is
// required; the zero time range means unbounded.
func (s *Service) Export(ctx context.Context, f Filter) ([]Entry, error) {
	if f.OrgID == "" {
		return nil, ErrInvalidEntry
	}
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = defaultExportLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}
