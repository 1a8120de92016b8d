package reporting

import "time"

// UserStats are the dashboard KPIs of one user.
type UserStats struct {
	UserID string `json:"user_id"`

	TotalCalls      int `json:"total_calls"`
	CallsThisMonth  int `json:"calls_this_month"`
	SuccessfulCalls int `json:"successful_calls"`
	FailedCalls     int `json:"failed_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// SuccessRate is a percentage rounded to one decimal.
	SuccessRate float64 `json:"success_rate"`

	MonthStart  time.Time `json:"month_start"`
	GeneratedAt time.Time `json:"generated_at"`
}
