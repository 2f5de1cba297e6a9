package compliance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voiceagent-platform/pkg/utils"
)

// SnapshotLoader fetches the lookup data the gate needs for one organization.
//
// Implementations must enforce org scoping; the gate itself never queries.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, orgID string) (Snapshot, error)
}

// PostgresLoader reads DNC entries, consent records and the calling-hours
// policy from Postgres.
//
// Assumed tables:
// - dnc_entries (org_id, phone, ...)
// - consent_records (org_id, phone, granted_at, revoked_at, ...)
// - organizations (id, timezone)
// - org_calling_windows (org_id, weekday, start_minute, end_minute)
type PostgresLoader struct {
	db *sql.DB
}

func NewPostgresLoader(db *sql.DB) *PostgresLoader {
	return &PostgresLoader{db: db}
}

var ErrOrgNotFound = errors.New("compliance: organization not found")

// LoadSnapshot reads all four tables inside one read-only repeatable-read
// transaction so the gate never sees a DNC list and a consent list from
// different points in time.
func (l *PostgresLoader) LoadSnapshot(ctx context.Context, orgID string) (Snapshot, error) {
	if orgID == "" {
		return Snapshot{}, ErrOrgNotFound
	}

	var snap Snapshot
	txOpts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := utils.WithTx(ctx, l.db, txOpts, func(ctx context.Context, tx *sql.Tx) error {
		const orgQ = `
SELECT timezone
FROM organizations
WHERE id = $1
`
		var tz string
		if err := tx.QueryRowContext(ctx, orgQ, orgID).Scan(&tz); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOrgNotFound
			}
			return err
		}

		policy := DefaultPolicy(tz)
		policy.Windows = map[time.Weekday]Window{}

		const winQ = `
SELECT weekday, start_minute, end_minute
FROM org_calling_windows
WHERE org_id = $1
`
		rows, err := tx.QueryContext(ctx, winQ, orgID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var day, start, end int
			if err := rows.Scan(&day, &start, &end); err != nil {
				return err
			}
			policy.Windows[time.Weekday(day)] = Window{StartMinute: start, EndMinute: end}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		dnc, err := loadPhoneSet(ctx, tx, `SELECT phone FROM dnc_entries WHERE org_id = $1`, orgID)
		if err != nil {
			return err
		}

		// Only consents without a revocation are active.
		consents, err := loadPhoneSet(ctx, tx, `
SELECT phone FROM consent_records
WHERE org_id = $1 AND revoked_at IS NULL
`, orgID)
		if err != nil {
			return err
		}

		snap = NewSnapshot(orgID, dnc, consents, policy)
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func loadPhoneSet(ctx context.Context, tx *sql.Tx, q, orgID string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, err
		}
		out[phone] = struct{}{}
	}
	return out, rows.Err()
}
