package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"sales-trainer/internal/rbac"
)

// SignupInput is the verified identity of a user signing in for the first time.
type SignupInput struct {
	UserID      string
	Email       string
	DisplayName string
	Admin       bool
}

// AdminPatch lists the fields an admin may change. Nil means unchanged.
type AdminPatch struct {
	MaxTimeLimit *int    `json:"max_time_limit"`
	HasPaid      *bool   `json:"has_paid"`
	IsOverdue    *bool   `json:"is_overdue"`
	Role         *string `json:"role"`
	IsActive     *bool   `json:"is_active"`
}

func (p AdminPatch) empty() bool {
	return p.MaxTimeLimit == nil && p.HasPaid == nil && p.IsOverdue == nil && p.Role == nil && p.IsActive == nil
}

type Service struct {
	store Store
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) Store() Store { return s.store }

// Signup creates the user document with signup defaults. It is idempotent:
// an existing row is returned unchanged with created=false. Any pending
// invitation for the email is removed either way.
func (s *Service) Signup(ctx context.Context, in SignupInput) (User, bool, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.UserID == "" {
		return User{}, false, fmt.Errorf("%w: user id required", ErrInvalidArgument)
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if in.Email != "" {
		if p, err := s.store.GetPending(ctx, in.Email); err == nil && displayName == "" {
			displayName = p.DisplayName
		}
	}

	var (
		out     User
		created bool
	)
	err := s.store.Mutate(ctx, in.UserID, func(u *User, exists bool) (bool, error) {
		if exists {
			out = *u
			return false, nil
		}
		*u = NewUser(in.UserID, in.Email, displayName, s.clock())
		if in.Admin {
			u.Role = rbac.RoleAdmin
		}
		out = *u
		created = true
		return true, nil
	})
	if err != nil {
		return User{}, false, err
	}

	if in.Email != "" {
		if err := s.store.DeletePending(ctx, in.Email); err != nil {
			return out, created, fmt.Errorf("delete pending user: %w", err)
		}
	}
	return out, created, nil
}

// Invite records an email that may complete signup through /create-password.
func (s *Service) Invite(ctx context.Context, email, displayName, invitedBy string) (PendingUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return PendingUser{}, fmt.Errorf("%w: invalid email", ErrInvalidArgument)
	}
	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return PendingUser{}, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return PendingUser{}, err
	}

	p := PendingUser{
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		InvitedBy:   invitedBy,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.store.PutPending(ctx, p); err != nil {
		return PendingUser{}, err
	}
	return p, nil
}

func (s *Service) GetPending(ctx context.Context, email string) (PendingUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return PendingUser{}, ErrInvalidArgument
	}
	return s.store.GetPending(ctx, email)
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrInvalidArgument
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

// AdminUpdate applies an admin patch and returns the stored row.
func (s *Service) AdminUpdate(ctx context.Context, id string, p AdminPatch) (User, error) {
	if id == "" || p.empty() {
		return User{}, ErrInvalidArgument
	}
	if p.MaxTimeLimit != nil && *p.MaxTimeLimit <= 0 {
		return User{}, fmt.Errorf("%w: max_time_limit must be positive", ErrInvalidArgument)
	}

	var out User
	err := Update(ctx, s.store, id, func(u *User) (bool, error) {
		if p.MaxTimeLimit != nil {
			u.MaxTimeLimit = *p.MaxTimeLimit
		}
		if p.HasPaid != nil {
			u.HasPaid = *p.HasPaid
		}
		if p.IsOverdue != nil {
			u.IsOverdue = *p.IsOverdue
		}
		if p.Role != nil {
			u.Role = rbac.Normalize(*p.Role)
		}
		if p.IsActive != nil {
			u.IsActive = *p.IsActive
		}
		out = *u
		return true, nil
	})
	return out, err
}

// SetStripeCustomer stores the billing customer id found for the user.
func (s *Service) SetStripeCustomer(ctx context.Context, id, customerID string) error {
	return Update(ctx, s.store, id, func(u *User) (bool, error) {
		if u.StripeCustomerID == customerID {
			return false, nil
		}
		u.StripeCustomerID = customerID
		return true, nil
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	return s.store.Delete(ctx, id)
}

// BackfillTrials fills trial and cycle fields on rows created before those
// fields existed, anchoring them on created_at. Returns the number of rows changed.
func (s *Service) BackfillTrials(ctx context.Context) (int, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, cur := range all {
		wrote := false
		err := Update(ctx, s.store, cur.ID, func(u *User) (bool, error) {
			anchor := u.CreatedAt.UTC()
			if anchor.IsZero() {
				anchor = s.clock().UTC()
			}
			if u.TrialEndDate.IsZero() {
				u.TrialEndDate = anchor.Add(TrialLength)
				wrote = true
			}
			if u.LastResetDate == nil {
				t := anchor
				u.LastResetDate = &t
				wrote = true
			}
			if u.TrackingStartDate == nil {
				t := *u.LastResetDate
				u.TrackingStartDate = &t
				wrote = true
			}
			if u.MaxTimeLimit <= 0 {
				u.MaxTimeLimit = DefaultMaxTimeLimit
				wrote = true
			}
			if u.CallDurations == nil {
				u.CallDurations = []int{}
				wrote = true
			}
			return wrote, nil
		})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return changed, fmt.Errorf("backfill %s: %w", cur.ID, err)
		}
		if wrote {
			changed++
		}
	}
	return changed, nil
}
