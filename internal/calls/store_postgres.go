package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PostgresStore stores calls in Postgres.
//
// Assumed schema: table calls with UNIQUE (provider_call_id) and the columns
// scanned below. duration_seconds is derived inside the upsert so that the
// computation is atomic with the event write.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const callColumns = `
id, org_id, campaign_id, agent_id, contact_id, provider_call_id,
direction, status, customer_number, started_at, ended_at, duration_seconds,
transcript, recording_url, created_at, updated_at
`

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.OrgID,
		&c.CampaignID,
		&c.AgentID,
		&c.ContactID,
		&c.ProviderCallID,
		&c.Direction,
		&c.Status,
		&c.CustomerNumber,
		&c.StartedAt,
		&c.EndedAt,
		&c.DurationSeconds,
		&c.Transcript,
		&c.RecordingURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (s *PostgresStore) Create(ctx context.Context, c Call) (Call, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const q = `
INSERT INTO calls (
  id, org_id, campaign_id, agent_id, contact_id, provider_call_id,
  direction, status, customer_number, started_at, ended_at, duration_seconds,
  transcript, recording_url, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,NULL,NULL,0,'','',$10,$10
)
ON CONFLICT (provider_call_id)
DO UPDATE SET org_id       = EXCLUDED.org_id,
              campaign_id  = EXCLUDED.campaign_id,
              agent_id     = EXCLUDED.agent_id,
              contact_id   = EXCLUDED.contact_id,
              direction    = EXCLUDED.direction,
              updated_at   = EXCLUDED.updated_at
RETURNING ` + callColumns
	return scanCall(s.db.QueryRowContext(ctx, q,
		c.ID,
		c.OrgID,
		c.CampaignID,
		c.AgentID,
		c.ContactID,
		c.ProviderCallID,
		c.Direction,
		c.Status,
		c.CustomerNumber,
		c.CreatedAt,
	))
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	return scanCall(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE provider_call_id = $1`
	return scanCall(s.db.QueryRowContext(ctx, q, providerCallID))
}

func (s *PostgresStore) UpsertEvent(ctx context.Context, e EventUpsert) (Call, CallStatus, error) {
	// prev captures the status before this event for the caller (slot
	// release happens only on the first transition into a terminal state).
	const q = `
WITH prev AS (
  SELECT status FROM calls WHERE provider_call_id = $1
)
INSERT INTO calls (
  id, org_id, campaign_id, agent_id, contact_id, provider_call_id,
  direction, status, customer_number, started_at, ended_at, duration_seconds,
  transcript, recording_url, created_at, updated_at
) VALUES (
  $2,$3,$4,$5,$6,$1,$7,$8,$9,$10,$11,
  GREATEST(0, COALESCE(EXTRACT(EPOCH FROM ($11::timestamptz - $10::timestamptz))::INT, 0)),
  '',$12,$13,$13
)
ON CONFLICT (provider_call_id)
DO UPDATE SET
  status = CASE
             WHEN $14 OR calls.status NOT IN ('completed','failed','no_answer','cancelled')
               THEN EXCLUDED.status
             ELSE calls.status
           END,
  customer_number = CASE WHEN EXCLUDED.customer_number <> '' THEN EXCLUDED.customer_number ELSE calls.customer_number END,
  started_at = COALESCE($10::timestamptz, calls.started_at),
  ended_at   = COALESCE($11::timestamptz, calls.ended_at),
  duration_seconds = GREATEST(0, COALESCE(
    EXTRACT(EPOCH FROM (COALESCE($11::timestamptz, calls.ended_at) - COALESCE($10::timestamptz, calls.started_at)))::INT,
    calls.duration_seconds
  )),
  recording_url = CASE WHEN EXCLUDED.recording_url <> '' THEN EXCLUDED.recording_url ELSE calls.recording_url END,
  updated_at = EXCLUDED.updated_at
RETURNING ` + callColumns + `, (SELECT status FROM prev)`

	var c Call
	var prev sql.NullString
	err := s.db.QueryRowContext(ctx, q,
		e.ProviderCallID,
		uuid.NewString(),
		e.Metadata.OrgID,
		e.Metadata.CampaignID,
		e.Metadata.AgentID,
		e.Metadata.ContactID,
		e.Direction,
		e.Status,
		e.CustomerNumber,
		e.StartedAt,
		e.EndedAt,
		e.RecordingURL,
		e.Now,
		e.StatusAuthoritative,
	).Scan(
		&c.ID,
		&c.OrgID,
		&c.CampaignID,
		&c.AgentID,
		&c.ContactID,
		&c.ProviderCallID,
		&c.Direction,
		&c.Status,
		&c.CustomerNumber,
		&c.StartedAt,
		&c.EndedAt,
		&c.DurationSeconds,
		&c.Transcript,
		&c.RecordingURL,
		&c.CreatedAt,
		&c.UpdatedAt,
		&prev,
	)
	if err != nil {
		return Call{}, "", err
	}
	return c, CallStatus(prev.String), nil
}

func (s *PostgresStore) AppendTranscript(ctx context.Context, providerCallID, transcript string, now time.Time) (Call, error) {
	// Append-once: a stored transcript is never overwritten.
	const q = `
UPDATE calls
SET transcript = CASE WHEN transcript = '' THEN $2 ELSE transcript END,
    updated_at = $3
WHERE provider_call_id = $1
RETURNING ` + callColumns
	return scanCall(s.db.QueryRowContext(ctx, q, providerCallID, transcript, now))
}

func (s *PostgresStore) MarkCancelled(ctx context.Context, id string, now time.Time) (Call, error) {
	const q = `
UPDATE calls
SET status = 'cancelled', updated_at = $2
WHERE id = $1 AND status IN ('queued','ringing','in_progress')
RETURNING ` + callColumns
	return scanCall(s.db.QueryRowContext(ctx, q, id, now))
}
