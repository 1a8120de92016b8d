package conversations

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service exposes conversations to their owners.
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

func (s *Service) Repo() Repository { return s.repo }

// NewConversation is the input for Start.
type NewConversation struct {
	// ID is generated when empty.
	ID              string
	UserID          string
	UserEmail       string
	AgentID         string
	AgentName       string
	PropertyAddress string
	ExternalAgentID string
}

// Start creates an ongoing conversation.
func (s *Service) Start(ctx context.Context, in NewConversation) (Conversation, error) {
	if in.UserID == "" || in.AgentID == "" {
		return Conversation{}, ErrInvalidArgument
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.clock().UTC()
	c := Conversation{
		ID:              id,
		UserID:          in.UserID,
		UserEmail:       in.UserEmail,
		AgentID:         in.AgentID,
		AgentName:       in.AgentName,
		PropertyAddress: in.PropertyAddress,
		ExternalAgentID: in.ExternalAgentID,
		StartTime:       now,
		Status:          StatusOngoing,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// GetForUser returns the conversation if userID owns it. admin skips the check.
func (s *Service) GetForUser(ctx context.Context, userID, id string, admin bool) (Conversation, error) {
	if id == "" {
		return Conversation{}, ErrInvalidArgument
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if !admin && c.UserID != userID {
		return Conversation{}, ErrForbidden
	}
	return c, nil
}

// ListForUser returns the user's history, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Conversation, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	out, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Conversation{}
	}
	return out, nil
}
