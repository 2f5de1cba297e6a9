// Package control is the live-call control plane: operators inject messages
// into a call in progress or end it.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/calls"
	"voiceagent-platform/internal/sessions"
	"voiceagent-platform/internal/telephony"
)

var (
	// ErrCallNotActive distinguishes "that call is not on the line" from a
	// provider fault; handlers map it to 409, provider faults to 502.
	ErrCallNotActive = errors.New("control: call not active")

	ErrInvalidArgument = errors.New("control: invalid argument")
)

type Service struct {
	store    calls.Store
	registry *sessions.Registry
	provider telephony.VoiceProvider
	audit    *audit.Service
	log      *slog.Logger
	clock    func() time.Time
}

func NewService(store calls.Store, registry *sessions.Registry, provider telephony.VoiceProvider, auditSvc *audit.Service, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		registry: registry,
		provider: provider,
		audit:    auditSvc,
		log:      log,
		clock:    time.Now,
	}
}

// SetClock replaces the service clock. Test hook.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

// Inject speaks a message into a live call. Channel "caller" barges in
// audibly to the callee; "agent" whispers to the agent only.
func (s *Service) Inject(ctx context.Context, orgID, actorUserID, callID string, channel telephony.Channel, message string) error {
	if !channel.Valid() {
		return fmt.Errorf("%w: channel %q", ErrInvalidArgument, channel)
	}
	if message == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidArgument)
	}

	sess, err := s.activeSession(ctx, orgID, callID)
	if err != nil {
		return err
	}

	if err := s.provider.InjectMessage(ctx, telephony.InjectRequest{
		ProviderCallID: sess.ProviderCallID,
		Channel:        channel,
		Message:        message,
	}); err != nil {
		return fmt.Errorf("control: inject: %w", err)
	}

	s.logAction(ctx, orgID, actorUserID, callID, "injected", string(channel))
	return nil
}

// EndCall hangs up a live call. The local row is speculatively marked
// cancelled so operators see the effect immediately; the provider's
// authoritative ended event overwrites it.
func (s *Service) EndCall(ctx context.Context, orgID, actorUserID, callID string) error {
	sess, err := s.activeSession(ctx, orgID, callID)
	if err != nil {
		return err
	}

	if err := s.provider.EndCall(ctx, sess.ProviderCallID); err != nil {
		return fmt.Errorf("control: end call: %w", err)
	}

	if _, err := s.store.MarkCancelled(ctx, callID, s.clock().UTC()); err != nil && !errors.Is(err, calls.ErrNotFound) {
		s.log.Warn("speculative cancel failed", "call_id", callID, "err", err)
	}
	s.registry.Delete(sess.ProviderCallID)

	s.logAction(ctx, orgID, actorUserID, callID, "ended", "")
	return nil
}

// activeSession resolves the live session for a call the org owns. The
// registry is a cache; after a restart it is rebuilt from an in_progress
// call row.
func (s *Service) activeSession(ctx context.Context, orgID, callID string) (sessions.Session, error) {
	call, err := s.store.GetByID(ctx, callID)
	if err != nil {
		return sessions.Session{}, err
	}
	if call.OrgID != orgID {
		// Cross-org probing reads the same as a missing call.
		return sessions.Session{}, calls.ErrNotFound
	}
	if call.Status != calls.CallStatusInProgress || call.ProviderCallID == "" {
		return sessions.Session{}, ErrCallNotActive
	}

	if sess, ok := s.registry.Get(call.ProviderCallID); ok {
		return sess, nil
	}

	sess := sessions.Session{
		ProviderCallID: call.ProviderCallID,
		CallID:         call.ID,
		OrgID:          call.OrgID,
		StartedAt:      s.clock().UTC(),
	}
	if call.StartedAt != nil {
		sess.StartedAt = *call.StartedAt
	}
	s.registry.Put(sess)
	return sess, nil
}

func (s *Service) logAction(ctx context.Context, orgID, actorUserID, callID, action, detail string) {
	if err := s.audit.LogControl(ctx, orgID, actorUserID, callID, action, detail); err != nil {
		s.log.Warn("audit append failed", "call_id", callID, "err", err)
	}
}
