package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_user_id, actor_role, ip_address, target_user_id, target_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = string(e.Metadata)
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.TargetUserID, e.TargetID, e.Message, metadata, e.CreatedAt)
	return err
}

func (r *PostgresRepo) ListByTargetUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	q := `
SELECT id, type, actor_user_id, actor_role, ip_address, target_user_id, target_id, message, metadata, created_at
FROM audit_events
WHERE target_user_id = $1
ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			e        Event
			typ      string
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &typ, &e.ActorUserID, &e.ActorRole, &e.IPAddress,
			&e.TargetUserID, &e.TargetID, &e.Message, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		if len(metadata) > 0 {
			e.Metadata = json.RawMessage(metadata)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
