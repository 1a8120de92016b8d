package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

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

// ScenarioInput is a scenario without server-assigned fields.
type ScenarioInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	Category    string     `json:"category"`
	AgentID     string     `json:"agentId"`
	AgentName   string     `json:"agentName"`
	Objectives  []string   `json:"objectives"`
}

func (in ScenarioInput) normalize() (ScenarioInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AgentID = strings.TrimSpace(in.AgentID)
	in.AgentName = strings.TrimSpace(in.AgentName)
	in.Category = strings.TrimSpace(in.Category)

	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	if in.AgentID == "" {
		missing = append(missing, "agentId")
	}
	if in.AgentName == "" {
		missing = append(missing, "agentName")
	}
	if len(missing) > 0 {
		return in, fmt.Errorf("%w: missing %s", ErrInvalidArgument, strings.Join(missing, ", "))
	}
	if in.Difficulty == "" {
		in.Difficulty = DifficultyBeginner
	}
	if !in.Difficulty.valid() {
		return in, fmt.Errorf("%w: difficulty must be Beginner, Intermediate or Advanced", ErrInvalidArgument)
	}
	if in.Objectives == nil {
		in.Objectives = []string{}
	}
	return in, nil
}

// CreateScenario validates the input and assigns id and timestamps.
func (s *Service) CreateScenario(ctx context.Context, in ScenarioInput) (Scenario, error) {
	return s.createScenario(ctx, in, s.clock().UTC())
}

func (s *Service) createScenario(ctx context.Context, in ScenarioInput, now time.Time) (Scenario, error) {
	in, err := in.normalize()
	if err != nil {
		return Scenario{}, err
	}
	sc := Scenario{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Difficulty:  in.Difficulty,
		Category:    in.Category,
		AgentID:     in.AgentID,
		AgentName:   in.AgentName,
		Objectives:  in.Objectives,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateScenario(ctx, sc); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func (s *Service) UpdateScenario(ctx context.Context, id string, in ScenarioInput) (Scenario, error) {
	in, err := in.normalize()
	if err != nil {
		return Scenario{}, err
	}
	cur, err := s.repo.GetScenario(ctx, id)
	if err != nil {
		return Scenario{}, err
	}
	cur.Title, cur.Description, cur.Difficulty = in.Title, in.Description, in.Difficulty
	cur.Category, cur.AgentID, cur.AgentName = in.Category, in.AgentID, in.AgentName
	cur.Objectives = in.Objectives
	cur.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdateScenario(ctx, cur); err != nil {
		return Scenario{}, err
	}
	return cur, nil
}

func (s *Service) DeleteScenario(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	return s.repo.DeleteScenario(ctx, id)
}

func (s *Service) GetScenario(ctx context.Context, id string) (Scenario, error) {
	return s.repo.GetScenario(ctx, id)
}

func (s *Service) ListScenarios(ctx context.Context) ([]Scenario, error) {
	return s.repo.ListScenarios(ctx)
}

// SellerInput is a seller without server-assigned fields.
type SellerInput struct {
	Name              string       `json:"name"`
	Description       string       `json:"description"`
	ExternalAgentID   string       `json:"elevenLabsId"`
	ImageURL          string       `json:"imageUrl"`
	ProfilePictureURL string       `json:"profilePictureUrl"`
	PropertyInfo      PropertyInfo `json:"propertyInfo"`
	IsPlaceholder     bool         `json:"isPlaceholder"`
	Comps             []Comp       `json:"comps"`
}

func (in SellerInput) normalize() (SellerInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ExternalAgentID = strings.TrimSpace(in.ExternalAgentID)
	if in.Name == "" {
		return in, fmt.Errorf("%w: missing name", ErrInvalidArgument)
	}
	if !in.IsPlaceholder && in.ExternalAgentID == "" {
		return in, fmt.Errorf("%w: elevenLabsId required unless placeholder", ErrInvalidArgument)
	}
	if in.Comps == nil {
		in.Comps = []Comp{}
	}
	if in.PropertyInfo.Details == nil {
		in.PropertyInfo.Details = []string{}
	}
	return in, nil
}

func (in SellerInput) apply(s *Seller) {
	s.Name, s.Description, s.ExternalAgentID = in.Name, in.Description, in.ExternalAgentID
	s.ImageURL, s.ProfilePictureURL = in.ImageURL, in.ProfilePictureURL
	s.PropertyInfo, s.IsPlaceholder, s.Comps = in.PropertyInfo, in.IsPlaceholder, in.Comps
}

func (s *Service) CreateSeller(ctx context.Context, in SellerInput) (Seller, error) {
	in, err := in.normalize()
	if err != nil {
		return Seller{}, err
	}
	now := s.clock().UTC()
	sel := Seller{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	in.apply(&sel)
	if err := s.repo.CreateSeller(ctx, sel); err != nil {
		return Seller{}, err
	}
	return sel, nil
}

func (s *Service) UpdateSeller(ctx context.Context, id string, in SellerInput) (Seller, error) {
	in, err := in.normalize()
	if err != nil {
		return Seller{}, err
	}
	sel, err := s.repo.GetSeller(ctx, id)
	if err != nil {
		return Seller{}, err
	}
	in.apply(&sel)
	sel.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdateSeller(ctx, sel); err != nil {
		return Seller{}, err
	}
	return sel, nil
}

func (s *Service) DeleteSeller(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	return s.repo.DeleteSeller(ctx, id)
}

func (s *Service) GetSeller(ctx context.Context, id string) (Seller, error) {
	if id == "" {
		return Seller{}, ErrInvalidArgument
	}
	return s.repo.GetSeller(ctx, id)
}

func (s *Service) ListSellers(ctx context.Context) ([]Seller, error) {
	return s.repo.ListSellers(ctx)
}
