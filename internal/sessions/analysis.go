package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sales-trainer/internal/analysis"
	"sales-trainer/internal/conversations"
	"sales-trainer/internal/realtime"
	"sales-trainer/internal/reliability"
	"sales-trainer/internal/voice"
)

const (
	// AnalysisUnavailable is stored when polling gave up.
	AnalysisUnavailable = "Analysis not available yet, please check back later"
	// AnalysisFailed is stored when the model call or its output failed.
	AnalysisFailed = "Analysis could not be generated for this call"

	persistTimeout = 5 * time.Second
)

// collectAnalysis polls the voice platform until the conversation analysis is
// present, then scores it. It stops early when a webhook already stored it.
func (o *Orchestrator) collectAnalysis(ctx context.Context, conv conversations.Conversation) {
	log := o.log.With("conversation_id", conv.ID)
	externalID := conv.ExternalConversationID

	for attempt := 0; attempt < o.opts.PollAttempts; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, o.opts.PollInitialDelay, 0)
			if err := reliability.Sleep(ctx, wait); err != nil {
				log.Warn("analysis polling interrupted", "attempt", attempt, "err", err)
				o.giveUp(ctx, conv.ID, AnalysisUnavailable, "interrupted")
				return
			}
		}

		if cur, err := o.d.Conversations.Repo().Get(ctx, conv.ID); err == nil && cur.HasAnalysis() {
			o.d.Metrics.AnalysisOutcome("already_stored")
			return
		}

		o.d.Metrics.PollAttempt()
		if externalID == "" {
			id, err := o.d.Voice.LatestConversationID(ctx, conv.ExternalAgentID)
			if err != nil {
				if rejected(err) {
					log.Warn("analysis polling rejected", "attempt", attempt+1, "err", err)
					o.giveUp(ctx, conv.ID, AnalysisUnavailable, "rejected")
					return
				}
				logPollError(log, attempt, err)
				continue
			}
			externalID = id
			o.recordExternalID(ctx, conv.ID, id)
		}
		vc, err := o.d.Voice.GetConversation(ctx, externalID)
		if err != nil {
			if rejected(err) {
				log.Warn("analysis polling rejected", "attempt", attempt+1, "err", err)
				o.giveUp(ctx, conv.ID, AnalysisUnavailable, "rejected")
				return
			}
			logPollError(log, attempt, err)
			continue
		}
		if !vc.HasAnalysis() {
			log.Debug("analysis not complete", "attempt", attempt+1, "of", o.opts.PollAttempts)
			continue
		}

		if err := o.storeAnalysis(ctx, conv.ID, vc); err != nil {
			log.Error("store analysis failed", "err", err)
		}
		return
	}

	log.Warn("analysis polling exhausted", "attempts", o.opts.PollAttempts)
	o.giveUp(ctx, conv.ID, AnalysisUnavailable, "exhausted")
}

// storeAnalysis persists the platform analysis, scores the transcript and
// publishes the result. A concurrent writer winning the race is not an error.
func (o *Orchestrator) storeAnalysis(ctx context.Context, conversationID string, vc voice.Conversation) error {
	repo := o.d.Conversations.Repo()
	if err := repo.SetRawAnalysis(ctx, conversationID, vc.Analysis); err != nil && !errors.Is(err, conversations.ErrAlreadySet) {
		return fmt.Errorf("set raw analysis: %w", err)
	}

	turns := make([]analysis.Turn, 0, len(vc.Transcript))
	for _, t := range vc.Transcript {
		turns = append(turns, analysis.Turn{Role: t.Role, Message: t.Message})
	}
	resp, err := o.d.Analyzer.Analyze(ctx, analysis.BuildTranscript(turns))
	if err != nil {
		o.giveUp(ctx, conversationID, AnalysisFailed, "model_error")
		return fmt.Errorf("analyze: %w", err)
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := repo.SetAnalysis(ctx, conversationID, raw); err != nil {
		if errors.Is(err, conversations.ErrAlreadySet) {
			o.d.Metrics.AnalysisOutcome("already_stored")
			return nil
		}
		return fmt.Errorf("set analysis: %w", err)
	}
	o.d.Metrics.AnalysisOutcome("stored")
	o.publish(ctx, realtime.Update{ConversationID: conversationID, Type: realtime.TypeAnalysis, Analysis: raw})
	return nil
}

// giveUp records msg as the analysis error. It uses a short detached context
// so the banner is written even when ctx was cancelled by shutdown.
func (o *Orchestrator) giveUp(ctx context.Context, conversationID, msg, outcome string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	err := o.d.Conversations.Repo().SetAnalysisError(ctx, conversationID, msg)
	if errors.Is(err, conversations.ErrAlreadySet) {
		return
	}
	if err != nil {
		o.log.Error("store analysis error failed", "conversation_id", conversationID, "err", err)
		return
	}
	o.d.Metrics.AnalysisOutcome(outcome)
	o.publish(ctx, realtime.Update{ConversationID: conversationID, Type: realtime.TypeAnalysisError, Error: msg})
}

// HandlePostCall applies a verified post-call webhook. It reports whether the
// event matched a known conversation; scoring runs in the background.
func (o *Orchestrator) HandlePostCall(ctx context.Context, ev voice.PostCallEvent) (bool, error) {
	conv, err := o.d.Conversations.Repo().FindByExternalID(ctx, ev.Data.ConversationID)
	if errors.Is(err, conversations.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if conv.HasAnalysis() || !ev.Data.HasAnalysis() {
		return true, nil
	}
	o.spawn(func(ctx context.Context) {
		if err := o.storeAnalysis(ctx, conv.ID, ev.Data); err != nil {
			o.log.Error("store webhook analysis failed", "conversation_id", conv.ID, "err", err)
		}
	})
	return true, nil
}

// recordExternalID links the platform conversation found by polling so the
// post-call webhook can match it later.
func (o *Orchestrator) recordExternalID(ctx context.Context, conversationID, externalID string) {
	err := o.d.Conversations.Repo().RecordExternalID(ctx, conversationID, externalID)
	if err != nil {
		o.log.Warn("record external conversation id failed", "conversation_id", conversationID, "external_id", externalID, "err", err)
	}
}

// rejected reports a platform error that retrying cannot fix.
func rejected(err error) bool {
	var apiErr *voice.APIError
	return errors.As(err, &apiErr) && !apiErr.Retryable()
}

func logPollError(log *slog.Logger, attempt int, err error) {
	if errors.Is(err, voice.ErrNotReady) || errors.Is(err, voice.ErrNoConversation) {
		log.Debug("analysis not ready", "attempt", attempt+1, "err", err)
		return
	}
	log.Warn("analysis poll failed", "attempt", attempt+1, "err", err)
}
