package users

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory Store for tests and local runs.
// Mutate holds the lock for the whole callback, which gives the same
// serialization as the row lock in PostgresRepo.
type MemoryRepo struct {
	mu      sync.Mutex
	users   map[string]User
	pending map[string]PendingUser
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: map[string]User{}, pending: map[string]PendingUser{}}
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) List(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, clone(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Create(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return ErrAlreadyExists
	}
	r.users[u.ID] = clone(u)
	return nil
}

func (r *MemoryRepo) Mutate(ctx context.Context, id string, fn MutateFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, exists := r.users[id]
	u := clone(cur)
	if !exists {
		u = User{ID: id}
	}
	write, err := fn(&u, exists)
	if err != nil {
		return err
	}
	if write {
		u.ID = id
		r.users[id] = clone(u)
	}
	return nil
}

func (r *MemoryRepo) IncrementTokenUsage(ctx context.Context, id string, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.TotalTokenUsage += n
	r.users[id] = u
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryRepo) PutPending(ctx context.Context, p PendingUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[strings.ToLower(p.Email)] = p
	return nil
}

func (r *MemoryRepo) GetPending(ctx context.Context, email string) (PendingUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[strings.ToLower(email)]
	if !ok {
		return PendingUser{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) DeletePending(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, strings.ToLower(email))
	return nil
}

func clone(u User) User {
	out := u
	if u.CallDurations != nil {
		out.CallDurations = append([]int(nil), u.CallDurations...)
	}
	out.LastResetDate = clonePtr(u.LastResetDate)
	out.TrackingStartDate = clonePtr(u.TrackingStartDate)
	out.LastLogin = clonePtr(u.LastLogin)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
