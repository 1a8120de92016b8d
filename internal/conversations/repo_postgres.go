package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const convColumns = `
id, user_id, user_email, agent_id, agent_name, property_address,
external_agent_id, external_conversation_id, start_time, end_time, status,
token_usage, duration, raw_analysis, analysis, analysis_error, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		c             Conversation
		end           sql.NullTime
		raw, analysis []byte
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.UserEmail, &c.AgentID, &c.AgentName, &c.PropertyAddress,
		&c.ExternalAgentID, &c.ExternalConversationID, &c.StartTime, &end, &c.Status,
		&c.TokenUsage, &c.Duration, &raw, &analysis, &c.AnalysisError, &c.UpdatedAt,
	)
	if err != nil {
		return Conversation{}, err
	}
	if end.Valid {
		e := end.Time.UTC()
		c.EndTime = &e
	}
	if len(raw) > 0 {
		c.RawAnalysis = json.RawMessage(raw)
	}
	if len(analysis) > 0 {
		c.Analysis = json.RawMessage(analysis)
	}
	return c, nil
}

func (r *PostgresRepo) Create(ctx context.Context, c Conversation) error {
	if c.ID == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO conversations (
  id, user_id, user_email, agent_id, agent_name, property_address,
  external_agent_id, external_conversation_id, start_time, status, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.UserID, c.UserEmail, c.AgentID, c.AgentName, c.PropertyAddress,
		c.ExternalAgentID, c.ExternalConversationID, c.StartTime, string(c.Status),
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `SELECT `+convColumns+` FROM conversations WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE user_id = $1 ORDER BY start_time DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindByExternalID(ctx context.Context, externalID string) (Conversation, error) {
	if externalID == "" {
		return Conversation{}, ErrNotFound
	}
	c, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT `+convColumns+` FROM conversations WHERE external_conversation_id = $1 ORDER BY start_time DESC LIMIT 1`, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) Complete(ctx context.Context, id string, end time.Time, durationSec int) (Conversation, error) {
	const q = `
UPDATE conversations
SET status = 'completed', end_time = $2, duration = $3, updated_at = now()
WHERE id = $1 AND status = 'ongoing'
RETURNING ` + convColumns
	c, err := scanConversation(r.db.QueryRowContext(ctx, q, id, end.UTC(), durationSec))
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, r.missOrGuard(ctx, id, ErrCompleted)
	}
	return c, err
}

func (r *PostgresRepo) SetExternalID(ctx context.Context, id, externalID string) error {
	return r.guardedExec(ctx, id, ErrCompleted,
		`UPDATE conversations SET external_conversation_id = $2, updated_at = now() WHERE id = $1 AND status = 'ongoing'`,
		externalID)
}

func (r *PostgresRepo) RecordExternalID(ctx context.Context, id, externalID string) error {
	if externalID == "" {
		return ErrInvalidArgument
	}
	return r.guardedExec(ctx, id, ErrExternalIDSet,
		`UPDATE conversations SET external_conversation_id = $2, updated_at = now()
		 WHERE id = $1 AND (external_conversation_id = '' OR external_conversation_id = $2)`,
		externalID)
}

func (r *PostgresRepo) AddTokenUsage(ctx context.Context, id string, n int64) error {
	return r.guardedExec(ctx, id, ErrCompleted,
		`UPDATE conversations SET token_usage = token_usage + $2, updated_at = now() WHERE id = $1 AND status = 'ongoing'`,
		n)
}

func (r *PostgresRepo) SetRawAnalysis(ctx context.Context, id string, raw json.RawMessage) error {
	return r.guardedExec(ctx, id, ErrAlreadySet,
		`UPDATE conversations SET raw_analysis = $2::jsonb, updated_at = now() WHERE id = $1 AND raw_analysis IS NULL`,
		string(raw))
}

func (r *PostgresRepo) SetAnalysis(ctx context.Context, id string, analysis json.RawMessage) error {
	return r.guardedExec(ctx, id, ErrAlreadySet,
		`UPDATE conversations SET analysis = $2::jsonb, analysis_error = '', updated_at = now() WHERE id = $1 AND analysis IS NULL`,
		string(analysis))
}

func (r *PostgresRepo) SetAnalysisError(ctx context.Context, id, msg string) error {
	return r.guardedExec(ctx, id, ErrAlreadySet,
		`UPDATE conversations SET analysis_error = $2, updated_at = now() WHERE id = $1 AND analysis IS NULL AND analysis_error = ''`,
		msg)
}

// guardedExec runs a conditional UPDATE. Zero affected rows means either the
// row is missing or the guard rejected the write.
func (r *PostgresRepo) guardedExec(ctx context.Context, id string, guardErr error, q string, arg any) error {
	res, err := r.db.ExecContext(ctx, q, id, arg)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.missOrGuard(ctx, id, guardErr)
	}
	return nil
}

func (r *PostgresRepo) missOrGuard(ctx context.Context, id string, guardErr error) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return guardErr
}
