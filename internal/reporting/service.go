package reporting

import (
	"context"
	"errors"
	"math"
	"time"

	"sales-trainer/internal/conversations"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Source lists a user's conversations. conversations.Repository satisfies it.
type Source interface {
	ListByUser(ctx context.Context, userID string) ([]conversations.Conversation, error)
}

type Service struct {
	src Source
}

func NewService(src Source) *Service { return &Service{src: src} }

// UserStats aggregates the user's conversation history. The month is the
// calendar month of now in UTC.
func (s *Service) UserStats(ctx context.Context, userID string, now time.Time) (UserStats, error) {
	if userID == "" {
		return UserStats{}, ErrInvalidRequest
	}
	if s.src == nil {
		return UserStats{}, errors.New("reporting: source not configured")
	}

	rows, err := s.src.ListByUser(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}

	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)

	out := UserStats{UserID: userID, MonthStart: monthStart, GeneratedAt: now}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.Duration
		st := c.StartTime.UTC()
		if !st.Before(monthStart) && st.Before(nextMonth) {
			out.CallsThisMonth++
		}
		switch {
		case c.CallSuccessful():
			out.SuccessfulCalls++
		case c.Status == conversations.StatusCompleted:
			out.FailedCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
		rate := float64(out.SuccessfulCalls) / float64(out.TotalCalls) * 100
		out.SuccessRate = math.Round(rate*10) / 10
	}
	return out, nil
}
