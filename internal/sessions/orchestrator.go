package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sales-trainer/internal/access"
	"sales-trainer/internal/analysis"
	"sales-trainer/internal/catalog"
	"sales-trainer/internal/conversations"
	"sales-trainer/internal/observability"
	"sales-trainer/internal/realtime"
	"sales-trainer/internal/usage"
	"sales-trainer/internal/voice"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotCallable      = errors.New("seller is not available for calls")
	ErrSessionActive    = errors.New("another session is already active")
	ErrVoiceUnavailable = errors.New("voice platform unavailable")
)

// AccessError is returned by Start when the access gate refuses calls.
type AccessError struct {
	Decision access.Decision
}

func (e *AccessError) Error() string { return "calls not allowed: " + e.Decision.Reason }

// Client event types relayed by the browser voice SDK.
const (
	EventConnect        = "connect"
	EventDisconnect     = "disconnect"
	EventModeChange     = "mode_change"
	EventTokenUsage     = "token_usage"
	EventConversationID = "conversation_id"
)

type Sellers interface {
	GetSeller(ctx context.Context, id string) (catalog.Seller, error)
}

type Quota interface {
	CheckMonthlyUsage(ctx context.Context, userID string) (bool, error)
	AddCallDuration(ctx context.Context, userID string, seconds int) error
	UpdateTimeUsage(ctx context.Context, userID string, seconds int) (int, error)
	AddTokenUsage(ctx context.Context, userID string, tokens int64) error
}

type Voice interface {
	SignedURL(ctx context.Context, agentID string) (string, error)
	LatestConversationID(ctx context.Context, agentID string) (string, error)
	GetConversation(ctx context.Context, conversationID string) (voice.Conversation, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (analysis.Response, error)
}

// Deps are the collaborators of the orchestrator. Metrics and Logger may be nil.
type Deps struct {
	Gate          access.Checker
	Sellers       Sellers
	Quota         Quota
	Voice         Voice
	Analyzer      Analyzer
	Conversations *conversations.Service
	Limiter       Limiter
	Publisher     realtime.Publisher
	Metrics       *observability.Metrics
	Logger        *slog.Logger
}

type Options struct {
	PollAttempts     int
	PollInitialDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollAttempts <= 0 {
		o.PollAttempts = 10
	}
	if o.PollInitialDelay <= 0 {
		o.PollInitialDelay = 2 * time.Second
	}
	return o
}

// Caller is the authenticated user driving a session.
type Caller struct {
	UserID string
	Email  string
	Admin  bool
}

// Orchestrator runs the call lifecycle. Post-call work runs on a context
// owned by the orchestrator, not the request, and is awaited by Shutdown.
type Orchestrator struct {
	d     Deps
	opts  Options
	log   *slog.Logger
	clock func() time.Time

	base   context.Context
	cancel context.CancelFunc

	// mu orders spawn against Shutdown so wg.Add never races wg.Wait.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(d Deps, opts Options) *Orchestrator {
	if d.Publisher == nil {
		d.Publisher = realtime.NopPublisher{}
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		d:      d,
		opts:   opts.withDefaults(),
		log:    log.With("component", "sessions"),
		clock:  time.Now,
		base:   base,
		cancel: cancel,
	}
}

func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

type StartResult struct {
	ConversationID  string    `json:"conversation_id"`
	SignedURL       string    `json:"signed_url"`
	AgentID         string    `json:"agent_id"`
	ExternalAgentID string    `json:"external_agent_id"`
	StartTime       time.Time `json:"start_time"`
}

// Start opens a call with a seller persona. Preconditions are checked in
// order: access gate, seller callable, remaining minutes, free session slot.
func (o *Orchestrator) Start(ctx context.Context, caller Caller, sellerID string) (StartResult, error) {
	if caller.UserID == "" || sellerID == "" {
		return StartResult{}, ErrInvalidArgument
	}
	dec, err := o.d.Gate.Check(ctx, caller.UserID)
	if err != nil {
		return StartResult{}, err
	}
	if !dec.AllowCalls {
		o.d.Metrics.SessionStarted("denied")
		return StartResult{}, &AccessError{Decision: dec}
	}

	seller, err := o.d.Sellers.GetSeller(ctx, sellerID)
	if err != nil {
		return StartResult{}, err
	}
	if !seller.Callable() {
		return StartResult{}, ErrNotCallable
	}

	ok, err := o.d.Quota.CheckMonthlyUsage(ctx, caller.UserID)
	if err != nil {
		return StartResult{}, err
	}
	if !ok {
		o.d.Metrics.SessionStarted("quota")
		o.d.Metrics.QuotaRejected("start")
		return StartResult{}, usage.ErrLimitExceeded
	}

	// the slot is owned by the conversation id so Stop releases only its own lease
	convID := uuid.NewString()
	acquired, err := o.d.Limiter.Acquire(ctx, caller.UserID, convID)
	if err != nil {
		return StartResult{}, fmt.Errorf("acquire session slot: %w", err)
	}
	if !acquired {
		o.d.Metrics.SessionStarted("busy")
		return StartResult{}, ErrSessionActive
	}

	conv, err := o.d.Conversations.Start(ctx, conversations.NewConversation{
		ID:              convID,
		UserID:          caller.UserID,
		UserEmail:       caller.Email,
		AgentID:         seller.ID,
		AgentName:       seller.Name,
		PropertyAddress: seller.PropertyInfo.Address,
		ExternalAgentID: seller.ExternalAgentID,
	})
	if err != nil {
		o.release(ctx, caller.UserID, convID)
		return StartResult{}, err
	}

	url, err := o.d.Voice.SignedURL(ctx, seller.ExternalAgentID)
	if err != nil {
		o.abandon(ctx, conv)
		o.release(ctx, caller.UserID, conv.ID)
		o.d.Metrics.SessionStarted("voice_error")
		o.log.Warn("signed url failed", "conversation_id", conv.ID, "err", err)
		return StartResult{}, fmt.Errorf("%w: %v", ErrVoiceUnavailable, err)
	}

	o.d.Metrics.SessionStarted("ok")
	o.log.Info("session started", "conversation_id", conv.ID, "user_id", caller.UserID, "seller_id", seller.ID)
	return StartResult{
		ConversationID:  conv.ID,
		SignedURL:       url,
		AgentID:         seller.ID,
		ExternalAgentID: seller.ExternalAgentID,
		StartTime:       conv.StartTime,
	}, nil
}

// Event is one client-side lifecycle callback.
type Event struct {
	Type string `json:"type"`
	// Mode is "speaking" or "listening" for mode_change.
	Mode   string `json:"mode,omitempty"`
	Tokens int64  `json:"tokens,omitempty"`
	// ExternalConversationID is the voice platform id for conversation_id.
	ExternalConversationID string `json:"conversation_id,omitempty"`
}

// HandleEvent applies a client event to the caller's ongoing conversation.
func (o *Orchestrator) HandleEvent(ctx context.Context, caller Caller, conversationID string, ev Event) error {
	conv, err := o.d.Conversations.GetForUser(ctx, caller.UserID, conversationID, caller.Admin)
	if err != nil {
		return err
	}
	o.d.Metrics.SessionEvent(ev.Type)

	switch ev.Type {
	case EventConnect, EventDisconnect:
		status := "connected"
		if ev.Type == EventDisconnect {
			status = "disconnected"
		} else {
			o.refresh(ctx, conv)
		}
		o.publish(ctx, realtime.Update{ConversationID: conv.ID, Type: realtime.TypeStatus, Status: status})
		return nil
	case EventModeChange:
		if ev.Mode != "speaking" && ev.Mode != "listening" {
			return fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, ev.Mode)
		}
		o.refresh(ctx, conv)
		o.publish(ctx, realtime.Update{ConversationID: conv.ID, Type: realtime.TypeStatus, Status: ev.Mode})
		return nil
	case EventTokenUsage:
		if ev.Tokens <= 0 {
			return fmt.Errorf("%w: tokens must be positive", ErrInvalidArgument)
		}
		if err := o.d.Conversations.Repo().AddTokenUsage(ctx, conv.ID, ev.Tokens); err != nil {
			return err
		}
		return o.d.Quota.AddTokenUsage(ctx, conv.UserID, ev.Tokens)
	case EventConversationID:
		if ev.ExternalConversationID == "" {
			return fmt.Errorf("%w: conversation_id is required", ErrInvalidArgument)
		}
		return o.d.Conversations.Repo().SetExternalID(ctx, conv.ID, ev.ExternalConversationID)
	default:
		return fmt.Errorf("%w: unknown event %q", ErrInvalidArgument, ev.Type)
	}
}

type StopResult struct {
	Conversation conversations.Conversation `json:"conversation"`
	// TotalMinutes is the cycle usage after this call was charged.
	TotalMinutes  int  `json:"total_minutes"`
	LimitExceeded bool `json:"limit_exceeded"`
}

// Stop completes the conversation, charges the minutes, frees the session
// slot and starts analysis retrieval in the background.
func (o *Orchestrator) Stop(ctx context.Context, caller Caller, conversationID string, durationSeconds int) (StopResult, error) {
	if durationSeconds < 0 {
		return StopResult{}, fmt.Errorf("%w: duration must not be negative", ErrInvalidArgument)
	}
	conv, err := o.d.Conversations.GetForUser(ctx, caller.UserID, conversationID, caller.Admin)
	if err != nil {
		return StopResult{}, err
	}
	conv, err = o.d.Conversations.Repo().Complete(ctx, conv.ID, o.clock().UTC(), durationSeconds)
	if err != nil {
		return StopResult{}, err
	}
	o.d.Metrics.SessionStopped()
	log := o.log.With("conversation_id", conv.ID, "user_id", conv.UserID)

	res := StopResult{Conversation: conv}
	if err := o.d.Quota.AddCallDuration(ctx, conv.UserID, durationSeconds); err != nil {
		log.Error("record call duration failed", "err", err)
	}
	total, err := o.d.Quota.UpdateTimeUsage(ctx, conv.UserID, durationSeconds)
	switch {
	case errors.Is(err, usage.ErrLimitExceeded):
		res.LimitExceeded = true
		o.d.Metrics.QuotaRejected("stop")
		log.Warn("call exceeded the cycle limit", "seconds", durationSeconds)
	case err != nil:
		log.Error("update time usage failed", "err", err)
	default:
		res.TotalMinutes = total
	}

	o.release(ctx, conv.UserID, conv.ID)
	o.publish(ctx, realtime.Update{ConversationID: conv.ID, Type: realtime.TypeStatus, Status: string(conv.Status)})

	o.spawn(func(ctx context.Context) { o.collectAnalysis(ctx, conv) })
	return res, nil
}

// Shutdown stops accepting background work and waits for what is running.
// When ctx ends first the work is cancelled and Shutdown still waits for it
// to return.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}

func (o *Orchestrator) spawn(fn func(ctx context.Context)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		o.log.Warn("background work dropped during shutdown")
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn(o.base)
	}()
}

// abandon completes a conversation that never connected.
func (o *Orchestrator) abandon(ctx context.Context, conv conversations.Conversation) {
	if _, err := o.d.Conversations.Repo().Complete(ctx, conv.ID, o.clock().UTC(), 0); err != nil {
		o.log.Error("complete abandoned conversation failed", "conversation_id", conv.ID, "err", err)
	}
}

func (o *Orchestrator) refresh(ctx context.Context, conv conversations.Conversation) {
	if err := o.d.Limiter.Refresh(ctx, conv.UserID, conv.ID); err != nil {
		o.log.Warn("refresh session slot failed", "conversation_id", conv.ID, "err", err)
	}
}

func (o *Orchestrator) release(ctx context.Context, userID, owner string) {
	if err := o.d.Limiter.Release(context.WithoutCancel(ctx), userID, owner); err != nil {
		o.log.Warn("release session slot failed", "user_id", userID, "err", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, u realtime.Update) {
	if u.At.IsZero() {
		u.At = o.clock().UTC()
	}
	if err := o.d.Publisher.Publish(ctx, u); err != nil {
		o.log.Warn("publish update failed", "conversation_id", u.ConversationID, "type", u.Type, "err", err)
	}
}
