package conversations

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	convs map[string]Conversation
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{convs: map[string]Conversation{}, now: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, c Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		return ErrInvalidArgument
	}
	c.UpdatedAt = r.now().UTC()
	r.convs[c.ID] = clone(c)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return clone(c), nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Conversation
	for _, c := range r.convs {
		if c.UserID == userID {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (r *MemoryRepo) FindByExternalID(ctx context.Context, externalID string) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if externalID == "" {
		return Conversation{}, ErrNotFound
	}
	for _, c := range r.convs {
		if c.ExternalConversationID == externalID {
			return clone(c), nil
		}
	}
	return Conversation{}, ErrNotFound
}

func (r *MemoryRepo) Complete(ctx context.Context, id string, end time.Time, durationSec int) (Conversation, error) {
	var out Conversation
	err := r.update(id, func(c *Conversation) error {
		if c.Status != StatusOngoing {
			return ErrCompleted
		}
		e := end.UTC()
		c.EndTime = &e
		c.Duration = durationSec
		c.Status = StatusCompleted
		out = *c
		return nil
	})
	return clone(out), err
}

func (r *MemoryRepo) SetExternalID(ctx context.Context, id, externalID string) error {
	return r.update(id, func(c *Conversation) error {
		if c.Status != StatusOngoing {
			return ErrCompleted
		}
		c.ExternalConversationID = externalID
		return nil
	})
}

func (r *MemoryRepo) RecordExternalID(ctx context.Context, id, externalID string) error {
	if externalID == "" {
		return ErrInvalidArgument
	}
	return r.update(id, func(c *Conversation) error {
		switch c.ExternalConversationID {
		case "":
			c.ExternalConversationID = externalID
			return nil
		case externalID:
			return nil
		}
		return ErrExternalIDSet
	})
}

func (r *MemoryRepo) AddTokenUsage(ctx context.Context, id string, n int64) error {
	return r.update(id, func(c *Conversation) error {
		if c.Status != StatusOngoing {
			return ErrCompleted
		}
		c.TokenUsage += n
		return nil
	})
}

func (r *MemoryRepo) SetRawAnalysis(ctx context.Context, id string, raw json.RawMessage) error {
	return r.update(id, func(c *Conversation) error {
		if len(c.RawAnalysis) > 0 {
			return ErrAlreadySet
		}
		c.RawAnalysis = append(json.RawMessage(nil), raw...)
		return nil
	})
}

func (r *MemoryRepo) SetAnalysis(ctx context.Context, id string, analysis json.RawMessage) error {
	return r.update(id, func(c *Conversation) error {
		if len(c.Analysis) > 0 {
			return ErrAlreadySet
		}
		c.Analysis = append(json.RawMessage(nil), analysis...)
		c.AnalysisError = ""
		return nil
	})
}

func (r *MemoryRepo) SetAnalysisError(ctx context.Context, id, msg string) error {
	return r.update(id, func(c *Conversation) error {
		if len(c.Analysis) > 0 || c.AnalysisError != "" {
			return ErrAlreadySet
		}
		c.AnalysisError = msg
		return nil
	})
}

func (r *MemoryRepo) update(id string, fn func(c *Conversation) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&c); err != nil {
		return err
	}
	c.UpdatedAt = r.now().UTC()
	r.convs[id] = c
	return nil
}

func clone(c Conversation) Conversation {
	out := c
	if c.EndTime != nil {
		e := *c.EndTime
		out.EndTime = &e
	}
	if c.RawAnalysis != nil {
		out.RawAnalysis = append(json.RawMessage(nil), c.RawAnalysis...)
	}
	if c.Analysis != nil {
		out.Analysis = append(json.RawMessage(nil), c.Analysis...)
	}
	return out
}
