package billing

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"
)

// Records stores PaymentFailed and TrialEnded rows. It also satisfies
// access.Records.
type Records interface {
	InsertPaymentFailed(ctx context.Context, p PaymentFailed) (bool, error)
	// DeletePaymentFailedByEmail removes every row whose email matches
	// case-insensitively and returns how many were removed.
	DeletePaymentFailedByEmail(ctx context.Context, email string) (int, error)
	HasPaymentFailed(ctx context.Context, email string) (bool, error)
	RecordTrialEnded(ctx context.Context, email, userID string, at time.Time) (bool, error)
}

type MemoryRecords struct {
	mu         sync.Mutex
	failed     []PaymentFailed
	trialEnded map[string]TrialEnded
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{trialEnded: map[string]TrialEnded{}}
}

func (r *MemoryRecords) InsertPaymentFailed(ctx context.Context, p PaymentFailed) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.StripeInvoiceID != "" {
		for _, f := range r.failed {
			if f.StripeInvoiceID == p.StripeInvoiceID {
				return false, nil
			}
		}
	}
	r.failed = append(r.failed, p)
	return true, nil
}

func (r *MemoryRecords) DeletePaymentFailedByEmail(ctx context.Context, email string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.failed[:0]
	removed := 0
	for _, f := range r.failed {
		if strings.EqualFold(f.Email, email) {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	r.failed = kept
	return removed, nil
}

func (r *MemoryRecords) HasPaymentFailed(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.failed {
		if strings.EqualFold(f.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRecords) RecordTrialEnded(ctx context.Context, email, userID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := r.trialEnded[key]; ok {
		return false, nil
	}
	r.trialEnded[key] = TrialEnded{Email: key, UserID: userID, EndedAt: at}
	return true, nil
}

// PaymentFailedRows returns a copy of the stored rows (tests).
func (r *MemoryRecords) PaymentFailedRows() []PaymentFailed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PaymentFailed(nil), r.failed...)
}

type PostgresRecords struct {
	db *sql.DB
}

func NewPostgresRecords(db *sql.DB) *PostgresRecords { return &PostgresRecords{db: db} }

func (r *PostgresRecords) InsertPaymentFailed(ctx context.Context, p PaymentFailed) (bool, error) {
	const q = `
INSERT INTO payment_failed (id, email, stripe_invoice_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q, p.ID, p.Email, p.StripeInvoiceID, p.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresRecords) DeletePaymentFailedByEmail(ctx context.Context, email string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payment_failed WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *PostgresRecords) HasPaymentFailed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_failed WHERE lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

func (r *PostgresRecords) RecordTrialEnded(ctx context.Context, email, userID string, at time.Time) (bool, error) {
	const q = `
INSERT INTO trial_ended (email, user_id, ended_at)
VALUES (lower($1), $2, $3)
ON CONFLICT (email) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q, email, userID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
