package users

import "time"

// Signup defaults.
const (
	DefaultMaxTimeLimit = 600 // minutes per 30-day cycle
	DefaultTier         = "basic"
	TrialLength         = 72 * time.Hour
)

// User is the per-account document. Usage counters are owned by internal/usage
// and only change through Store.Mutate or Store.IncrementTokenUsage.
type User struct {
	ID          string `json:"id" db:"id"`
	Email       string `json:"email" db:"email"`
	DisplayName string `json:"display_name" db:"display_name"`
	Role        string `json:"role" db:"role"`
	IsActive    bool   `json:"is_active" db:"is_active"`
	Tier        string `json:"tier" db:"tier"`

	TotalTokenUsage int64 `json:"total_token_usage" db:"total_token_usage"`
	// TotalTimeUsage is minutes consumed in the current cycle.
	TotalTimeUsage    int        `json:"total_time_usage" db:"total_time_usage"`
	MaxTimeLimit      int        `json:"max_time_limit" db:"max_time_limit"`
	LastResetDate     *time.Time `json:"last_reset_date,omitempty" db:"last_reset_date"`
	TrackingStartDate *time.Time `json:"tracking_start_date,omitempty" db:"tracking_start_date"`

	TrialEndDate    time.Time `json:"trial_end_date" db:"trial_end_date"`
	IsTrialComplete bool      `json:"is_trial_complete" db:"is_trial_complete"`
	HasPaid         bool      `json:"has_paid" db:"has_paid"`
	IsOverdue       bool      `json:"is_overdue" db:"is_overdue"`

	// CallDurations is append-only, seconds per finished call.
	CallDurations     []int `json:"call_durations" db:"call_durations"`
	TotalCallDuration int   `json:"total_call_duration" db:"total_call_duration"`

	StripeCustomerID string     `json:"stripe_customer_id,omitempty" db:"stripe_customer_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	LastLogin        *time.Time `json:"last_login,omitempty" db:"last_login"`
}

// PendingUser is an invited email waiting for the create-password step.
type PendingUser struct {
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	InvitedBy   string    `json:"invited_by" db:"invited_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewUser returns a user document with signup defaults.
func NewUser(id, email, displayName string, now time.Time) User {
	now = now.UTC()
	return User{
		ID:                id,
		Email:             email,
		DisplayName:       displayName,
		Role:              "user",
		IsActive:          true,
		Tier:              DefaultTier,
		MaxTimeLimit:      DefaultMaxTimeLimit,
		LastResetDate:     &now,
		TrackingStartDate: &now,
		TrialEndDate:      now.Add(TrialLength),
		CallDurations:     []int{},
		CreatedAt:         now,
		LastLogin:         &now,
	}
}

// EffectiveMaxTimeLimit treats an unset limit as the default.
func (u User) EffectiveMaxTimeLimit() int {
	if u.MaxTimeLimit <= 0 {
		return DefaultMaxTimeLimit
	}
	return u.MaxTimeLimit
}
