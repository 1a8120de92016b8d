package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only;
// there are no update or delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
	// ListByTargetUser returns events whose target is userID, newest first.
	// limit <= 0 means no limit.
	ListByTargetUser(ctx context.Context, userID string, limit int) ([]Event, error)
}

// DefaultHistoryLimit is the most events ForTargetUser returns.
const DefaultHistoryLimit = 100

// Service records admin actions. Audit is internal-only and callers treat
// it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.ActorUserID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends an event of type t by actor. metadata, if non-nil, is
// stored as JSON.
func (s *Service) Record(ctx context.Context, t EventType, actor Actor, targetUserID, targetID, message string, metadata any) error {
	e := Event{
		Type:         t,
		ActorUserID:  actor.UserID,
		ActorRole:    actor.Role,
		IPAddress:    actor.IP,
		TargetUserID: targetUserID,
		TargetID:     targetID,
		Message:      message,
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("audit: encode metadata: %w", err)
		}
		e.Metadata = raw
	}
	return s.Append(ctx, e)
}

// ForTargetUser lists the admin actions taken on a user for the admin panel.
func (s *Service) ForTargetUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if userID == "" {
		return nil, ErrInvalidEvent
	}
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	return s.repo.ListByTargetUser(ctx, userID, limit)
}
