package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu        sync.Mutex
	scenarios map[string]Scenario
	sellers   map[string]Seller
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{scenarios: map[string]Scenario{}, sellers: map[string]Seller{}}
}

func (r *MemoryRepo) CreateScenario(ctx context.Context, s Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenarios[s.ID] = cloneScenario(s)
	return nil
}

func (r *MemoryRepo) UpdateScenario(ctx context.Context, s Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scenarios[s.ID]; !ok {
		return ErrNotFound
	}
	r.scenarios[s.ID] = cloneScenario(s)
	return nil
}

func (r *MemoryRepo) DeleteScenario(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scenarios[id]; !ok {
		return ErrNotFound
	}
	delete(r.scenarios, id)
	return nil
}

func (r *MemoryRepo) GetScenario(ctx context.Context, id string) (Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scenarios[id]
	if !ok {
		return Scenario{}, ErrNotFound
	}
	return cloneScenario(s), nil
}

func (r *MemoryRepo) ListScenarios(ctx context.Context) ([]Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Scenario, 0, len(r.scenarios))
	for _, s := range r.scenarios {
		out = append(out, cloneScenario(s))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) CountScenarios(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scenarios), nil
}

func (r *MemoryRepo) CreateSeller(ctx context.Context, s Seller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sellers[s.ID] = cloneSeller(s)
	return nil
}

func (r *MemoryRepo) UpdateSeller(ctx context.Context, s Seller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sellers[s.ID]; !ok {
		return ErrNotFound
	}
	r.sellers[s.ID] = cloneSeller(s)
	return nil
}

func (r *MemoryRepo) DeleteSeller(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sellers[id]; !ok {
		return ErrNotFound
	}
	delete(r.sellers, id)
	return nil
}

func (r *MemoryRepo) GetSeller(ctx context.Context, id string) (Seller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sellers[id]
	if !ok {
		return Seller{}, ErrNotFound
	}
	return cloneSeller(s), nil
}

func (r *MemoryRepo) ListSellers(ctx context.Context) ([]Seller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Seller, 0, len(r.sellers))
	for _, s := range r.sellers {
		out = append(out, cloneSeller(s))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneScenario(s Scenario) Scenario {
	s.Objectives = cloneSlice(s.Objectives)
	return s
}

func cloneSeller(s Seller) Seller {
	s.PropertyInfo.Details = cloneSlice(s.PropertyInfo.Details)
	s.Comps = cloneSlice(s.Comps)
	return s
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
