package campaigns

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore stores campaigns and contacts in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const campaignColumns = `
id, org_id, agent_id, name, status, schedule_start, schedule_end,
batch_size, max_attempts, created_at, updated_at
`

func scanCampaigns(rows *sql.Rows) ([]Campaign, error) {
	defer rows.Close()
	var out []Campaign
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(
			&c.ID, &c.OrgID, &c.AgentID, &c.Name, &c.Status,
			&c.ScheduleStart, &c.ScheduleEnd, &c.BatchSize, &c.MaxAttempts,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListDueCampaigns(ctx context.Context, now time.Time) ([]Campaign, error) {
	const q = `
SELECT ` + campaignColumns + `
FROM campaigns
WHERE status = 'running' AND schedule_start <= $1 AND schedule_end > $1
ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return scanCampaigns(rows)
}

func (s *PostgresStore) ListEndedRunning(ctx context.Context, now time.Time) ([]Campaign, error) {
	const q = `
SELECT ` + campaignColumns + `
FROM campaigns
WHERE status = 'running' AND schedule_end <= $1
ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return scanCampaigns(rows)
}

// pendingContactsQuery excludes contacts whose campaign call reached any
// terminal status. A terminal call settles the contact outright; the
// attempt cap only bounds dispatches that never produced a call row.
const pendingContactsQuery = `
SELECT c.id, c.org_id, c.campaign_id, c.phone, c.attempt_count, c.created_at, c.updated_at
FROM contacts c
WHERE c.campaign_id = $1
  AND c.attempt_count < $2
  AND NOT EXISTS (
    SELECT 1 FROM calls
    WHERE calls.campaign_id = c.campaign_id
      AND calls.contact_id = c.id
      AND calls.status IN ('completed','failed','no_answer','cancelled')
  )
ORDER BY c.created_at, c.id`

func (s *PostgresStore) ListPendingContacts(ctx context.Context, campaignID string, maxAttempts, limit int) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, pendingContactsQuery+` LIMIT $3`, campaignID, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.OrgID, &c.CampaignID, &c.Phone, &c.AttemptCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) HasPendingContacts(ctx context.Context, campaignID string, maxAttempts int) (bool, error) {
	q := `SELECT EXISTS (` + pendingContactsQuery + `)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, campaignID, maxAttempts).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresStore) ClaimAttempt(ctx context.Context, contactID string, expected int, now time.Time) (bool, error) {
	const q = `
UPDATE contacts
SET attempt_count = attempt_count + 1, updated_at = $3
WHERE id = $1 AND attempt_count = $2`
	res, err := s.db.ExecContext(ctx, q, contactID, expected, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStore) CompleteCampaign(ctx context.Context, campaignID string, now time.Time) error {
	const q = `
UPDATE campaigns
SET status = 'completed', updated_at = $2
WHERE id = $1 AND status = 'running'`
	res, err := s.db.ExecContext(ctx, q, campaignID, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ResolveOutboundNumber(ctx context.Context, orgID string) (PhoneNumber, error) {
	const q = `
SELECT id, org_id, number, active, created_at
FROM phone_numbers
WHERE org_id = $1 AND active
ORDER BY created_at, id
LIMIT 1`
	var n PhoneNumber
	err := s.db.QueryRowContext(ctx, q, orgID).Scan(&n.ID, &n.OrgID, &n.Number, &n.Active, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PhoneNumber{}, ErrNoActiveNumber
		}
		return PhoneNumber{}, err
	}
	return n, nil
}
