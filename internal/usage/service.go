package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sales-trainer/internal/users"
)

var (
	ErrNotFound        = users.ErrNotFound
	ErrInvalidArgument = errors.New("invalid argument")
	ErrLimitExceeded   = errors.New("Max time limit exceeded")
	ErrConflict        = users.ErrConflict
)

// Service owns the time and token counters on the user row.
//
// Invariants:
// - total_time_usage only changes inside Store.Mutate (row locked).
// - A rejected UpdateTimeUsage writes nothing.
// - CheckAndReset and UpdateTimeUsage decide expiry with the same CycleExpired.
type Service struct {
	store users.Store
	clock func() time.Time
}

func NewService(store users.Store) *Service {
	return &Service{store: store, clock: time.Now}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Snapshot is the usage view shown on the account page.
type Snapshot struct {
	UsedMinutes      int       `json:"used_minutes"`
	LimitMinutes     int       `json:"limit_minutes"`
	RemainingMinutes int       `json:"remaining_minutes"`
	CycleStart       time.Time `json:"cycle_start"`
	NextReset        time.Time `json:"next_reset"`
	TotalTokens      int64     `json:"total_tokens"`
	TotalCallSeconds int       `json:"total_call_seconds"`
	CallCount        int       `json:"call_count"`
}

// CheckAndReset resets the cycle counters when the cycle has expired.
func (s *Service) CheckAndReset(ctx context.Context, userID string) (reset bool, err error) {
	if userID == "" {
		return false, ErrInvalidArgument
	}
	now := s.clock().UTC()
	err = users.Update(ctx, s.store, userID, func(u *users.User) (bool, error) {
		if !CycleExpired(u.LastResetDate, now) {
			return false, nil
		}
		resetCycle(u, now)
		reset = true
		return true, nil
	})
	if err != nil {
		return false, wrapStoreErr("check and reset", err)
	}
	return reset, nil
}

// AddCallDuration appends a finished call's seconds. A missing user row is
// created with signup defaults and the single entry.
func (s *Service) AddCallDuration(ctx context.Context, userID string, seconds int) error {
	if userID == "" || seconds < 0 {
		return ErrInvalidArgument
	}
	now := s.clock()
	err := s.store.Mutate(ctx, userID, func(u *users.User, exists bool) (bool, error) {
		if !exists {
			*u = users.NewUser(userID, "", "", now)
		}
		u.CallDurations = append(u.CallDurations, seconds)
		total := 0
		for _, d := range u.CallDurations {
			total += d
		}
		u.TotalCallDuration = total
		return true, nil
	})
	return wrapStoreErr("add call duration", err)
}

// AddTokenUsage is a single atomic increment.
func (s *Service) AddTokenUsage(ctx context.Context, userID string, tokens int64) error {
	if userID == "" || tokens < 0 {
		return ErrInvalidArgument
	}
	if tokens == 0 {
		return nil
	}
	return wrapStoreErr("add token usage", s.store.IncrementTokenUsage(ctx, userID, tokens))
}

// UpdateTimeUsage charges ceil(seconds/60) minutes against the cycle limit and
// returns the stored total. Over the limit it returns ErrLimitExceeded and
// leaves the row untouched.
func (s *Service) UpdateTimeUsage(ctx context.Context, userID string, seconds int) (int, error) {
	if userID == "" || seconds < 0 {
		return 0, ErrInvalidArgument
	}
	minutes := MinutesFromSeconds(seconds)
	now := s.clock().UTC()

	var total int
	err := users.Update(ctx, s.store, userID, func(u *users.User) (bool, error) {
		expired := CycleExpired(u.LastResetDate, now)
		base := u.TotalTimeUsage
		if expired {
			base = 0
		}
		if base+minutes > u.EffectiveMaxTimeLimit() {
			return false, ErrLimitExceeded
		}
		if expired {
			resetCycle(u, now)
		}
		u.TotalTimeUsage = base + minutes
		total = u.TotalTimeUsage
		return true, nil
	})
	if err != nil {
		return 0, wrapStoreErr("update time usage", err)
	}
	return total, nil
}

// CheckMonthlyUsage reports whether the user still has minutes left in the
// current cycle. An expired cycle counts as zero usage.
func (s *Service) CheckMonthlyUsage(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrInvalidArgument
	}
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	used := u.TotalTimeUsage
	if CycleExpired(u.LastResetDate, s.clock().UTC()) {
		used = 0
	}
	return used < u.EffectiveMaxTimeLimit(), nil
}

func (s *Service) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	if userID == "" {
		return Snapshot{}, ErrInvalidArgument
	}
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	now := s.clock().UTC()

	snap := Snapshot{
		UsedMinutes:      u.TotalTimeUsage,
		LimitMinutes:     u.EffectiveMaxTimeLimit(),
		TotalTokens:      u.TotalTokenUsage,
		TotalCallSeconds: u.TotalCallDuration,
		CallCount:        len(u.CallDurations),
	}
	if CycleExpired(u.LastResetDate, now) {
		snap.UsedMinutes = 0
		snap.CycleStart = now
	} else {
		snap.CycleStart = u.LastResetDate.UTC()
	}
	snap.NextReset = snap.CycleStart.Add(CycleLength)
	snap.RemainingMinutes = snap.LimitMinutes - snap.UsedMinutes
	if snap.RemainingMinutes < 0 {
		snap.RemainingMinutes = 0
	}
	return snap, nil
}

func resetCycle(u *users.User, now time.Time) {
	u.TotalTimeUsage = 0
	reset, start := now, now
	u.LastResetDate = &reset
	u.TrackingStartDate = &start
}

func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrLimitExceeded) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidArgument) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
