package access

import (
	"context"
	"fmt"
	"time"

	"sales-trainer/internal/rbac"
	"sales-trainer/internal/users"
)

// Records is the billing-side view the gate needs. The billing package's
// repositories implement it.
type Records interface {
	HasPaymentFailed(ctx context.Context, email string) (bool, error)
	// RecordTrialEnded stores the trial-end marker once per email and
	// reports whether a new row was written.
	RecordTrialEnded(ctx context.Context, email, userID string, at time.Time) (bool, error)
}

type Service struct {
	users   users.Store
	records Records
	clock   func() time.Time
}

func NewService(store users.Store, records Records) *Service {
	return &Service{users: store, records: records, clock: time.Now}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Check evaluates the gate without writing anything.
func (s *Service) Check(ctx context.Context, userID string) (Decision, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	overdue, err := s.overdue(ctx, u)
	if err != nil {
		return Decision{}, err
	}
	st := Evaluate(s.clock().UTC(), u.TrialEndDate, u.HasPaid, overdue)
	return decide(st, u.TrialEndDate, rbac.IsAdmin(u.Role)), nil
}

// OnAuthenticated runs on every sign-in. It evaluates the gate, marks the
// trial complete and records TrialEnded the first time the trial is seen
// ended, and stamps last_login.
func (s *Service) OnAuthenticated(ctx context.Context, userID string) (Decision, error) {
	now := s.clock().UTC()
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	overdue, err := s.overdue(ctx, u)
	if err != nil {
		return Decision{}, err
	}
	st := Evaluate(now, u.TrialEndDate, u.HasPaid, overdue)

	newlyEnded := false
	err = users.Update(ctx, s.users, userID, func(cur *users.User) (bool, error) {
		login := now
		cur.LastLogin = &login
		if st == StateTrialEnded && !cur.IsTrialComplete {
			cur.IsTrialComplete = true
			newlyEnded = true
		}
		u = *cur
		return true, nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("update login state: %w", err)
	}

	if newlyEnded && s.records != nil && u.Email != "" {
		if _, err := s.records.RecordTrialEnded(ctx, u.Email, u.ID, now); err != nil {
			return Decision{}, fmt.Errorf("record trial ended: %w", err)
		}
	}
	return decide(st, u.TrialEndDate, rbac.IsAdmin(u.Role)), nil
}

func (s *Service) overdue(ctx context.Context, u users.User) (bool, error) {
	if u.IsOverdue {
		return true, nil
	}
	if s.records == nil || u.Email == "" {
		return false, nil
	}
	failed, err := s.records.HasPaymentFailed(ctx, u.Email)
	if err != nil {
		return false, fmt.Errorf("payment failed lookup: %w", err)
	}
	return failed, nil
}
