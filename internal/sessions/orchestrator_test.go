package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sales-trainer/internal/access"
	"sales-trainer/internal/analysis"
	"sales-trainer/internal/catalog"
	"sales-trainer/internal/conversations"
	"sales-trainer/internal/realtime"
	"sales-trainer/internal/usage"
	"sales-trainer/internal/users"
	"sales-trainer/internal/voice"
)

type fakeGate struct {
	dec access.Decision
}

func (g fakeGate) Check(ctx context.Context, userID string) (access.Decision, error) {
	return g.dec, nil
}

type fakeVoice struct {
	mu         sync.Mutex
	signedErr  error
	latest     string
	readyAfter int
	gets       int
	getErr     error
	conv       voice.Conversation
}

func (v *fakeVoice) SignedURL(ctx context.Context, agentID string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.signedErr != nil {
		return "", v.signedErr
	}
	return "wss://voice.example/" + agentID, nil
}

func (v *fakeVoice) LatestConversationID(ctx context.Context, agentID string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.latest == "" {
		return "", voice.ErrNoConversation
	}
	return v.latest, nil
}

func (v *fakeVoice) GetConversation(ctx context.Context, id string) (voice.Conversation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gets++
	if v.getErr != nil {
		return voice.Conversation{}, v.getErr
	}
	if v.readyAfter < 0 || v.gets <= v.readyAfter {
		return voice.Conversation{}, voice.ErrNotReady
	}
	return v.conv, nil
}

type fakeAnalyzer struct {
	calls atomic.Int32
	err   error
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, transcript string) (analysis.Response, error) {
	a.calls.Add(1)
	if a.err != nil {
		return analysis.Response{}, a.err
	}
	resp := analysis.ZeroResponse()
	resp.OverallScore = 7.5
	return resp, nil
}

type harness struct {
	orch     *Orchestrator
	users    *users.MemoryRepo
	convs    *conversations.Service
	voice    *fakeVoice
	analyzer *fakeAnalyzer
	broker   *realtime.MemoryBroker
	seller   catalog.Seller
	caller   Caller
}

func newHarness(t *testing.T, dec access.Decision) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{
		users:    users.NewMemoryRepo(),
		convs:    conversations.NewService(conversations.NewMemoryRepo()),
		voice:    &fakeVoice{latest: "ext-1", conv: platformConversation()},
		analyzer: &fakeAnalyzer{},
		broker:   realtime.NewMemoryBroker(),
		caller:   Caller{UserID: "u1", Email: "rep@example.com"},
	}
	if err := h.users.Create(ctx, users.NewUser("u1", "rep@example.com", "Rep", time.Now())); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	cat := catalog.NewService(catalog.NewMemoryRepo())
	seller, err := cat.CreateSeller(ctx, catalog.SellerInput{
		Name:            "Margaret",
		ExternalAgentID: "agent-ext",
		PropertyInfo:    catalog.PropertyInfo{Address: "12 Elm St"},
	})
	if err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	h.seller = seller

	h.orch = New(Deps{
		Gate:          fakeGate{dec: dec},
		Sellers:       cat,
		Quota:         usage.NewService(h.users),
		Voice:         h.voice,
		Analyzer:      h.analyzer,
		Conversations: h.convs,
		Limiter:       NewMemoryLimiter(time.Hour),
		Publisher:     h.broker,
	}, Options{PollAttempts: 3, PollInitialDelay: time.Millisecond})
	return h
}

func allowed() access.Decision {
	return access.Decision{State: access.StateTrialActive, AllowCalls: true}
}

func platformConversation() voice.Conversation {
	vc := voice.Conversation{ConversationID: "ext-1", Status: "done"}
	vc.Transcript = []voice.TranscriptTurn{{Role: "user", Message: "Hi"}, {Role: "agent", Message: "Hello"}}
	vc.Analysis = json.RawMessage(`{"call_successful":"success","transcript_summary":"ok"}`)
	return vc
}

func (h *harness) shutdown(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.orch.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestStart_OpensSessionAndHoldsSlot(t *testing.T) {
	h := newHarness(t, allowed())
	ctx := context.Background()

	res, err := h.orch.Start(ctx, h.caller, h.seller.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.SignedURL != "wss://voice.example/agent-ext" || res.ExternalAgentID != "agent-ext" {
		t.Fatalf("unexpected result %+v", res)
	}
	conv, err := h.convs.Repo().Get(ctx, res.ConversationID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if conv.Status != conversations.StatusOngoing || conv.PropertyAddress != "12 Elm St" || conv.AgentName != "Margaret" {
		t.Fatalf("unexpected conversation %+v", conv)
	}

	if _, err := h.orch.Start(ctx, h.caller, h.seller.ID); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestStart_GateDenied(t *testing.T) {
	h := newHarness(t, access.Decision{State: access.StateTrialEnded, Reason: access.ReasonTrialEnded})
	_, err := h.orch.Start(context.Background(), h.caller, h.seller.ID)
	var accessErr *AccessError
	if !errors.As(err, &accessErr) || accessErr.Decision.Reason != access.ReasonTrialEnded {
		t.Fatalf("expected AccessError, got %v", err)
	}
	list, _ := h.convs.ListForUser(context.Background(), "u1")
	if len(list) != 0 {
		t.Fatalf("no conversation should be created, got %d", len(list))
	}
}

func TestStart_PlaceholderSellerRejected(t *testing.T) {
	h := newHarness(t, allowed())
	cat := catalog.NewService(catalog.NewMemoryRepo())
	placeholder, err := cat.CreateSeller(context.Background(), catalog.SellerInput{Name: "Soon", IsPlaceholder: true})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	h.orch.d.Sellers = cat
	if _, err := h.orch.Start(context.Background(), h.caller, placeholder.ID); !errors.Is(err, ErrNotCallable) {
		t.Fatalf("expected ErrNotCallable, got %v", err)
	}
}

func TestStart_NoMinutesLeft(t *testing.T) {
	h := newHarness(t, allowed())
	ctx := context.Background()
	err := users.Update(ctx, h.users, "u1", func(u *users.User) (bool, error) {
		u.TotalTimeUsage = u.MaxTimeLimit
		return true, nil
	})
	if err != nil {
		t.Fatalf("seed usage: %v", err)
	}
	if _, err := h.orch.Start(ctx, h.caller, h.seller.ID); !errors.Is(err, usage.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestStart_VoiceFailureCompletesAndReleases(t *testing.T) {
	h := newHarness(t, allowed())
	ctx := context.Background()
	h.voice.signedErr = errors.New("upstream down")

	if _, err := h.orch.Start(ctx, h.caller, h.seller.ID); !errors.Is(err, ErrVoiceUnavailable) {
		t.Fatalf("expected ErrVoiceUnavailable, got %v", err)
	}
	list, _ := h.convs.ListForUser(ctx, "u1")
	if len(list) != 1 || list[0].Status != conversations.StatusCompleted || list[0].Duration != 0 {
		t.Fatalf("expected one completed zero-length conversation, got %+v", list)
	}

	h.voice.signedErr = nil
	if _, err := h.orch.Start(ctx, h.caller, h.seller.ID); err != nil {
		t.Fatalf("slot should be free after failure: %v", err)
	}
}

func TestStop_ChargesUsageAndStoresAnalysis(t *testing.T) {
	h := newHarness(t, allowed())
	ctx := context.Background()
	res, err := h.orch.Start(ctx, h.caller, h.seller.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	updates, cancel, _ := h.broker.Subscribe(ctx, res.ConversationID)
	defer cancel()

	stop, err := h.orch.Stop(ctx, h.caller, res.ConversationID, 95)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stop.TotalMinutes != 2 || stop.LimitExceeded {
		t.Fatalf("unexpected stop result %+v", stop)
	}
	if stop.Conversation.Status != conversations.StatusCompleted || stop.Conversation.Duration != 95 {
		t.Fatalf("unexpected conversation %+v", stop.Conversation)
	}
	h.shutdown(t)

	u, _ := h.users.Get(ctx, "u1")
	if len(u.CallDurations) != 1 || u.CallDurations[0] != 95 || u.TotalTimeUsage != 2 {
		t.Fatalf("unexpected usage: durations=%v used=%d", u.CallDurations, u.TotalTimeUsage)
	}
	conv, _ := h.convs.Repo().Get(ctx, res.ConversationID)
	if !conv.HasAnalysis() || !conv.CallSuccessful() || conv.AnalysisError != "" {
		t.Fatalf("expected stored analysis, got %+v", conv)
	}
	var scored analysis.Response
	if err := json.Unmarshal(conv.Analysis, &scored); err != nil || scored.OverallScore != 7.5 {
		t.Fatalf("unexpected analysis %s (%v)", conv.Analysis, err)
	}

	var sawAnalysis bool
	for len(updates) > 0 {
		if u := <-updates; u.Type == realtime.TypeAnalysis {
			sawAnalysis = true
		}
	}
	if !sawAnalysis {
		t.Fatalf("expected an analysis update to be published")
	}

	// slot released by Stop
	if _, err := h.orch.Start(ctx, h.caller, h.seller.ID); err != nil {
		t.Fatalf("start after stop: %v", err)
	}
}

func TestStop_OverLimitIsReported(t *testing.T) {
	h := newHarness(t, allowed())
	ctx := context.Background()
	res, err := h.orch.Start(ctx, h.caller, h.seller.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = users.Update(ctx, h.users, "u1", func(u *users.User) (bool, error) {
		u.TotalTimeUsage = 599
		return true, nil
	})

	stop, err := h.orch.Stop(ctx, h.caller, res.ConversationID, 120)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !stop.LimitExceeded || stop.Conversation.Status != conversations.StatusCompleted {
		t.Fatalf("expected completed conversation with limit flag, got %+v", stop)
	}
	h.shutdown(t)
	u, _ := h.users.Get(ctx, "u1")
	if u.TotalTimeUsage != 599 {
		t.Fatalf("usage must not change on rejection, got %d", u.TotalTimeUsage)
	}

	if _, err := h.orch.Stop(ctx, h.caller, res.ConversationID, 10); !errors.Is(err, conversations.ErrCompleted) {
		t.Fatalf("expected ErrCompleted on second stop, got %v", err)
	}
}

func TestStop_PollingExhaustedStoresBanner(t *testing.T) {
	h := newHarness(t, allowed())
	h.voice.readyAfter = -1
	ctx := context.Background()
	res, err := h.orch.Start(ctx, h.caller, h.seller.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.orch.Stop(ctx, h.caller, res.ConversationID, 30); err != nil {
		t.Fatalf("stop: %v", err)
	}
	h.shutdown(t)

	conv, _ := h.convs.Repo().Get(ctx, res.ConversationID)
	if conv.AnalysisError != AnalysisUnavailable || conv.HasAnalysis() {
		t.Fatalf("expected unavailable banner, got %+v", conv)
	}
	if h.voice.gets != 3 {
		t.Fatalf("expected 3 polls, got %d", h.voice.gets)
	}
	if h.analyzer.calls.Load() != 0 {
		t.Fatalf("analyzer must not run without platform analysis")
	}
}

func TestStop_PollRetriesUntilReady(t *testing.T) {
	h := newHarness(t, allowed())
	h.voice.readyAfter = 2
	ctx := context.Background()
	res, _ := h.orch.Start(ctx, h.caller, h.seller.ID)
	if _, err := h.orch.Stop(ctx, h.caller, res.ConversationID, 30); err != nil {
		t.Fatalf("stop: %v", err)
	}
	h.shutdown(t)
	conv, _ := h.convs.Repo().Get(ctx, res.ConversationID)
	if !conv.HasAnalysis() {
		t.Fatalf("expected analysis after retries, got %+v", conv)
	}
}

func TestStop_RejectedPollGivesUpEarly(t *testing.T) {
	h := newHarness(t, allowed())
	h.voice.getErr = &voice.APIError{Status: 401, Body: "invalid api key"}
	ctx := context.Background()
	res, _ := h.orch.Start(ctx, h.caller, h.seller.ID)
	if _, err := h.orch.Stop(ctx, h.caller, res.ConversationID, 30); err != nil {
		t.Fatalf("stop: %v", err)
	}
	h.shutdown(t)

	if h.voice.gets != 1 {
		t.Fatalf("expected a single poll on 401, got %d", h.voice.gets)
	}
	conv, _ := h.convs.Repo().Get(ctx, res.ConversationID)
	if conv.AnalysisError != AnalysisUnavailable {
		t.Fatalf("expected unavailable banner, got %+v", conv)
	}
}

func TestStop_ThrottledPollKeepsRetrying(t *testing.T) {
	h := newHarness(t, allowed())
	h.voice.getErr = &voice.APIError{Status: 429}
	ctx := context.Background()
	res, _ := h.orch.Start(ctx, h.caller, h.seller.ID)
	if _, err := h.orch.Stop(ctx, h.caller, res.ConversationID, 30); err != nil {
		t.Fatalf("stop: %v", err)
	}
	h.shutdown(t)
	if h.voice.gets != 3 {
		t.Fatalf("expected all 3 polls on 429, got %d", h.voice.gets)
	}
}

func TestStop_PolledExternalIDIsRecorded(t *testing.T) {
	h := newHarness(t, allowed())
	h.voice.readyAfter = -1
	ctx := context.Background()
	res, _ := h.orch.Start(ctx, h.caller, h.seller.ID)
	if _, err := h.orch.Stop(ctx, h.caller, res.ConversationID, 30); err != nil {
		t.Fatalf("stop: %v", err)
	}
	h.shutdown(t)

	conv, _ := h.convs.Repo().Get(ctx, res.ConversationID)
	if conv.ExternalConversationID != "ext-1" {
		t.Fatalf("expected polled external id to be stored, got %q", conv.ExternalConversationID)
	}
	found, err := h.convs.Repo().FindByExternalID(ctx, "ext-1")
	if err != nil || found.ID != res.ConversationID {
		t.Fatalf("late webhook could not match: %+v %v", found, err)
	}
}

func TestStop_ModelFailureStoresError(t *testing.T) {
	h := newHarness(t, allowed())
	h.analyzer.err = analysis.ErrMalformedResponse
	ctx := context.Background()
	res, _ := h.orch.Start(ctx, h.caller, h.seller.ID)
	if _, err := h.orch.Stop(ctx, h.caller, res.ConversationID, 30); err != nil {
		t.Fatalf("stop: %v", err)
	}
	h.shutdown(t)
	conv, _ := h.convs.Repo().Get(ctx, res.ConversationID)
	if conv.AnalysisError != AnalysisFailed || len(conv.RawAnalysis) == 0 {
		t.Fatalf("expected raw analysis and failure banner, got %+v", conv)
	}
}

func TestHandleEvent(t *testing.T) {
	h := newHarness(t, allowed())
	ctx := context.Background()
	res, err := h.orch.Start(ctx, h.caller, h.seller.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := res.ConversationID

	for _, ev := range []Event{
		{Type: EventConnect},
		{Type: EventModeChange, Mode: "speaking"},
		{Type: EventTokenUsage, Tokens: 40},
		{Type: EventTokenUsage, Tokens: 2},
		{Type: EventConversationID, ExternalConversationID: "ext-1"},
		{Type: EventDisconnect},
	} {
		if err := h.orch.HandleEvent(ctx, h.caller, id, ev); err != nil {
			t.Fatalf("%s: %v", ev.Type, err)
		}
	}
	conv, _ := h.convs.Repo().Get(ctx, id)
	if conv.TokenUsage != 42 || conv.ExternalConversationID != "ext-1" {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	u, _ := h.users.Get(ctx, "u1")
	if u.TotalTokenUsage != 42 {
		t.Fatalf("expected 42 user tokens, got %d", u.TotalTokenUsage)
	}

	if err := h.orch.HandleEvent(ctx, h.caller, id, Event{Type: "bogus"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := h.orch.HandleEvent(ctx, h.caller, id, Event{Type: EventModeChange, Mode: "shouting"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for mode, got %v", err)
	}
	other := Caller{UserID: "u2"}
	if err := h.orch.HandleEvent(ctx, other, id, Event{Type: EventConnect}); !errors.Is(err, conversations.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestHandlePostCall(t *testing.T) {
	h := newHarness(t, allowed())
	ctx := context.Background()
	res, _ := h.orch.Start(ctx, h.caller, h.seller.ID)
	if err := h.orch.HandleEvent(ctx, h.caller, res.ConversationID, Event{Type: EventConversationID, ExternalConversationID: "ext-1"}); err != nil {
		t.Fatalf("conversation id: %v", err)
	}

	matched, err := h.orch.HandlePostCall(ctx, voice.PostCallEvent{Type: "post_call_transcription", Data: platformConversation()})
	if err != nil || !matched {
		t.Fatalf("expected match, got %v %v", matched, err)
	}
	h.shutdown(t)
	conv, _ := h.convs.Repo().Get(ctx, res.ConversationID)
	if !conv.HasAnalysis() {
		t.Fatalf("expected analysis from webhook")
	}

	unknown := platformConversation()
	unknown.ConversationID = "ext-unknown"
	if matched, err := h.orch.HandlePostCall(ctx, voice.PostCallEvent{Data: unknown}); err != nil || matched {
		t.Fatalf("unknown conversation should not match: %v %v", matched, err)
	}
}

func TestShutdown_RefusesNewBackgroundWork(t *testing.T) {
	h := newHarness(t, allowed())
	ctx := context.Background()
	res, _ := h.orch.Start(ctx, h.caller, h.seller.ID)
	h.shutdown(t)

	ran := make(chan struct{}, 1)
	h.orch.spawn(func(context.Context) { ran <- struct{}{} })
	select {
	case <-ran:
		t.Fatalf("spawn ran after shutdown")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := h.orch.Stop(ctx, h.caller, res.ConversationID, 30); err != nil {
		t.Fatalf("stop after shutdown: %v", err)
	}
	h.shutdown(t)
	if h.voice.gets != 0 {
		t.Fatalf("no polling expected after shutdown, got %d", h.voice.gets)
	}
}

func TestShutdown_ConcurrentWithSpawn(t *testing.T) {
	h := newHarness(t, allowed())
	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.orch.spawn(func(context.Context) { ran.Add(1) })
		}()
	}
	h.shutdown(t)
	wg.Wait()
	before := ran.Load()
	// anything accepted before Shutdown returned has finished running
	time.Sleep(10 * time.Millisecond)
	if ran.Load() != before {
		t.Fatalf("work ran after Shutdown returned: %d then %d", before, ran.Load())
	}
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := l.Acquire(ctx, "u1", "a"); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if ok, _ := l.Acquire(ctx, "u1", "b"); ok {
		t.Fatalf("second owner must wait")
	}
	_ = l.Release(ctx, "u1", "b")
	if ok, _ := l.Acquire(ctx, "u1", "b"); ok {
		t.Fatalf("release by non-owner must not free the slot")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := l.Acquire(ctx, "u1", "b"); !ok {
		t.Fatalf("expired lease should be taken over")
	}
}
