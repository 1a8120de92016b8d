package billing

import "time"

// PaymentFailed marks an email whose last invoice payment failed.
// Rows are removed by a later successful payment.
type PaymentFailed struct {
	ID              string    `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	StripeInvoiceID string    `json:"stripe_invoice_id,omitempty" db:"stripe_invoice_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// TrialEnded is written once per email when the trial is first seen ended.
type TrialEnded struct {
	Email   string    `json:"email" db:"email"`
	UserID  string    `json:"user_id" db:"user_id"`
	EndedAt time.Time `json:"ended_at" db:"ended_at"`
}
