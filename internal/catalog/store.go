package catalog

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

type ScenarioRepository interface {
	CreateScenario(ctx context.Context, s Scenario) error
	UpdateScenario(ctx context.Context, s Scenario) error
	DeleteScenario(ctx context.Context, id string) error
	GetScenario(ctx context.Context, id string) (Scenario, error)
	// ListScenarios returns scenarios ordered by CreatedAt ascending.
	ListScenarios(ctx context.Context) ([]Scenario, error)
	CountScenarios(ctx context.Context) (int, error)
}

type SellerRepository interface {
	CreateSeller(ctx context.Context, s Seller) error
	UpdateSeller(ctx context.Context, s Seller) error
	DeleteSeller(ctx context.Context, id string) error
	GetSeller(ctx context.Context, id string) (Seller, error)
	ListSellers(ctx context.Context) ([]Seller, error)
}

// Repository covers both collections.
type Repository interface {
	ScenarioRepository
	SellerRepository
}
