package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Update kinds pushed to conversation subscribers.
const (
	TypeStatus        = "status"
	TypeAnalysis      = "analysis"
	TypeAnalysisError = "analysis_error"
)

// Update is one change to a conversation document.
type Update struct {
	ConversationID string          `json:"conversation_id"`
	Type           string          `json:"type"`
	Status         string          `json:"status,omitempty"`
	Analysis       json.RawMessage `json:"analysis,omitempty"`
	Error          string          `json:"error,omitempty"`
	At             time.Time       `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, u Update) error
}

type Subscriber interface {
	// Subscribe returns a channel of updates for one conversation. The
	// returned cancel func closes the subscription and the channel.
	Subscribe(ctx context.Context, conversationID string) (<-chan Update, func(), error)
}

type Broker interface {
	Publisher
	Subscriber
}

// Channel is the pub/sub channel name for a conversation.
func Channel(conversationID string) string { return "conversation:" + conversationID }

const subscriberBuffer = 16

// MemoryBroker fans out updates inside one process.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan Update]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: map[string]map[chan Update]struct{}{}}
}

func (b *MemoryBroker) Publish(ctx context.Context, u Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[u.ConversationID] {
		select {
		case ch <- u:
		default:
			// slow subscriber; drop
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, conversationID string) (<-chan Update, func(), error) {
	ch := make(chan Update, subscriberBuffer)
	b.mu.Lock()
	set, ok := b.subs[conversationID]
	if !ok {
		set = map[chan Update]struct{}{}
		b.subs[conversationID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[conversationID], ch)
			if len(b.subs[conversationID]) == 0 {
				delete(b.subs, conversationID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

// NopPublisher drops every update.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Update) error { return nil }
