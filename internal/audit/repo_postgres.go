package audit

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// PostgresRepo stores audit entries in Postgres. Append-only; the schema
// carries no UPDATE path.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO audit_entries (
  id, org_id, type, campaign_id, contact_id, call_id, phone,
  outcome, reason, actor_user_id, message, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.OrgID, e.Type, e.CampaignID, e.ContactID, e.CallID, e.Phone,
		e.Outcome, e.Reason, e.ActorUserID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Entry, error) {
	var sb strings.Builder
	sb.WriteString(`
SELECT id, org_id, type, campaign_id, contact_id, call_id, phone,
       outcome, reason, actor_user_id, message, metadata, created_at
FROM audit_entries
WHERE org_id = $1`)
	args := []any{f.OrgID}

	if f.Type != "" {
		args = append(args, f.Type)
		sb.WriteString(" AND type = $" + strconv.Itoa(len(args)))
	}
	if f.CampaignID != "" {
		args = append(args, f.CampaignID)
		sb.WriteString(" AND campaign_id = $" + strconv.Itoa(len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		sb.WriteString(" AND created_at >= $" + strconv.Itoa(len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		sb.WriteString(" AND created_at < $" + strconv.Itoa(len(args)))
	}
	args = append(args, f.Limit)
	sb.WriteString(" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)))
	args = append(args, f.Offset)
	sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.OrgID, &e.Type, &e.CampaignID, &e.ContactID, &e.CallID,
			&e.Phone, &e.Outcome, &e.Reason, &e.ActorUserID, &e.Message,
			&e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
