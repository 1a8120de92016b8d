package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sales-trainer/pkg/utils"
)

const mutateAttempts = 3

// PostgresRepo stores users in the users table. Mutate locks the row with
// SELECT ... FOR UPDATE so concurrent call-ends for one user serialize.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const userColumns = `
id, email, display_name, role, is_active, tier,
total_token_usage, total_time_usage, max_time_limit, last_reset_date, tracking_start_date,
trial_end_date, is_trial_complete, has_paid, is_overdue,
call_durations, total_call_duration, stripe_customer_id, created_at, last_login`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u                                  User
		lastReset, trackingStart, lastSeen sql.NullTime
		durations                          []byte
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.IsActive, &u.Tier,
		&u.TotalTokenUsage, &u.TotalTimeUsage, &u.MaxTimeLimit, &lastReset, &trackingStart,
		&u.TrialEndDate, &u.IsTrialComplete, &u.HasPaid, &u.IsOverdue,
		&durations, &u.TotalCallDuration, &u.StripeCustomerID, &u.CreatedAt, &lastSeen,
	); err != nil {
		return User{}, err
	}
	u.LastResetDate = nullTimePtr(lastReset)
	u.TrackingStartDate = nullTimePtr(trackingStart)
	u.LastLogin = nullTimePtr(lastSeen)
	u.CallDurations = []int{}
	if len(durations) > 0 {
		if err := json.Unmarshal(durations, &u.CallDurations); err != nil {
			return User{}, fmt.Errorf("decode call_durations: %w", err)
		}
	}
	return u, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) ORDER BY created_at LIMIT 1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *PostgresRepo) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Create(ctx context.Context, u User) error {
	n, err := insertUser(ctx, r.db, u)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *PostgresRepo) Mutate(ctx context.Context, id string, fn MutateFunc) error {
	if id == "" {
		return ErrInvalidArgument
	}
	err := utils.WithTxRetry(ctx, r.db, &sql.TxOptions{}, mutateAttempts, func(ctx context.Context, tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		exists := true
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
			u = User{ID: id}
		} else if err != nil {
			return err
		}

		write, err := fn(&u, exists)
		if err != nil || !write {
			return err
		}
		u.ID = id

		if exists {
			return updateUser(ctx, tx, u)
		}
		n, err := insertUser(ctx, tx, u)
		if err != nil {
			return err
		}
		if n == 0 {
			// a concurrent insert won; rerun against the now-existing row
			return utils.ErrRetryTx
		}
		return nil
	})
	if errors.Is(err, utils.ErrTxConflict) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (r *PostgresRepo) IncrementTokenUsage(ctx context.Context, id string, n int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET total_token_usage = total_token_usage + $2 WHERE id = $1`, id, n)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) PutPending(ctx context.Context, p PendingUser) error {
	const q = `
INSERT INTO pending_users (email, display_name, invited_by, created_at)
VALUES (lower($1), $2, $3, $4)
ON CONFLICT (email) DO UPDATE SET display_name = EXCLUDED.display_name, invited_by = EXCLUDED.invited_by
`
	_, err := r.db.ExecContext(ctx, q, p.Email, p.DisplayName, p.InvitedBy, p.CreatedAt)
	return err
}

func (r *PostgresRepo) GetPending(ctx context.Context, email string) (PendingUser, error) {
	var p PendingUser
	err := r.db.QueryRowContext(ctx,
		`SELECT email, display_name, invited_by, created_at FROM pending_users WHERE email = lower($1)`, email,
	).Scan(&p.Email, &p.DisplayName, &p.InvitedBy, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingUser{}, ErrNotFound
	}
	return p, err
}

func (r *PostgresRepo) DeletePending(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_users WHERE email = lower($1)`, email)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUser(ctx context.Context, db execer, u User) (int64, error) {
	durations, err := encodeDurations(u.CallDurations)
	if err != nil {
		return 0, err
	}
	const q = `
INSERT INTO users (` + userColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16::jsonb, $17, $18, $19, $20)
ON CONFLICT (id) DO NOTHING
`
	res, err := db.ExecContext(ctx, q,
		u.ID, u.Email, u.DisplayName, u.Role, u.IsActive, u.Tier,
		u.TotalTokenUsage, u.TotalTimeUsage, u.MaxTimeLimit, timePtrArg(u.LastResetDate), timePtrArg(u.TrackingStartDate),
		u.TrialEndDate, u.IsTrialComplete, u.HasPaid, u.IsOverdue,
		durations, u.TotalCallDuration, u.StripeCustomerID, u.CreatedAt, timePtrArg(u.LastLogin),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func updateUser(ctx context.Context, tx *sql.Tx, u User) error {
	durations, err := encodeDurations(u.CallDurations)
	if err != nil {
		return err
	}
	const q = `
UPDATE users SET
  email = $2, display_name = $3, role = $4, is_active = $5, tier = $6,
  total_token_usage = $7, total_time_usage = $8, max_time_limit = $9,
  last_reset_date = $10, tracking_start_date = $11,
  trial_end_date = $12, is_trial_complete = $13, has_paid = $14, is_overdue = $15,
  call_durations = $16::jsonb, total_call_duration = $17, stripe_customer_id = $18, last_login = $19
WHERE id = $1
`
	_, err = tx.ExecContext(ctx, q,
		u.ID, u.Email, u.DisplayName, u.Role, u.IsActive, u.Tier,
		u.TotalTokenUsage, u.TotalTimeUsage, u.MaxTimeLimit,
		timePtrArg(u.LastResetDate), timePtrArg(u.TrackingStartDate),
		u.TrialEndDate, u.IsTrialComplete, u.HasPaid, u.IsOverdue,
		durations, u.TotalCallDuration, u.StripeCustomerID, timePtrArg(u.LastLogin),
	)
	return err
}

func encodeDurations(d []int) (string, error) {
	if d == nil {
		d = []int{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func timePtrArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
