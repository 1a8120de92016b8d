package audit

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryRepo keeps audit events in process. Reads hand out copies so a
// caller cannot rewrite history through a returned slice.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, cloneEvent(e))
	return nil
}

// ListByTargetUser returns the admin actions taken on userID, newest first.
func (r *MemoryRepo) ListByTargetUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Event{}
	for i := len(r.events) - 1; i >= 0; i-- {
		if e := r.events[i]; e.TargetUserID == userID {
			out = append(out, cloneEvent(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Events returns every event in append order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, cloneEvent(e))
	}
	return out
}

func cloneEvent(e Event) Event {
	if len(e.Metadata) > 0 {
		e.Metadata = append(json.RawMessage(nil), e.Metadata...)
	}
	return e
}
