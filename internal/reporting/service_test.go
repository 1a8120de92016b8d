package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"sales-trainer/internal/conversations"
)

func TestUserStats(t *testing.T) {
	repo := conversations.NewMemoryRepo()
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	seed := []conversations.Conversation{
		{ID: "c1", UserID: "u1", StartTime: now.Add(-time.Hour), Status: conversations.StatusCompleted, Duration: 120,
			RawAnalysis: json.RawMessage(`{"call_successful":"success"}`)},
		{ID: "c2", UserID: "u1", StartTime: now.AddDate(0, -1, 0), Status: conversations.StatusCompleted, Duration: 60,
			RawAnalysis: json.RawMessage(`{"call_successful":"failure"}`)},
		{ID: "c3", UserID: "u1", StartTime: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Status: conversations.StatusCompleted, Duration: 31},
		{ID: "c4", UserID: "u1", StartTime: now, Status: conversations.StatusOngoing},
		{ID: "other", UserID: "u2", StartTime: now, Status: conversations.StatusCompleted, Duration: 500},
	}
	for _, c := range seed {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	stats, err := NewService(repo).UserStats(ctx, "u1", now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalCalls != 4 || stats.CallsThisMonth != 3 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.SuccessfulCalls != 1 || stats.FailedCalls != 2 {
		t.Fatalf("unexpected outcome split: %+v", stats)
	}
	if stats.AverageDurationSeconds != 52 {
		t.Fatalf("expected avg 52s, got %d", stats.AverageDurationSeconds)
	}
	if stats.SuccessRate != 25 {
		t.Fatalf("expected 25%%, got %v", stats.SuccessRate)
	}
}

func TestUserStats_RoundsRateAndHandlesEmpty(t *testing.T) {
	repo := conversations.NewMemoryRepo()
	ctx := context.Background()
	now := time.Now()

	stats, err := NewService(repo).UserStats(ctx, "u1", now)
	if err != nil || stats.TotalCalls != 0 || stats.SuccessRate != 0 {
		t.Fatalf("unexpected empty stats %+v %v", stats, err)
	}

	for i, outcome := range []string{"success", "failure", "failure"} {
		c := conversations.Conversation{
			ID: string(rune('a' + i)), UserID: "u1", StartTime: now, Status: conversations.StatusCompleted,
			RawAnalysis: json.RawMessage(`{"call_successful":"` + outcome + `"}`),
		}
		_ = repo.Create(ctx, c)
	}
	stats, _ = NewService(repo).UserStats(ctx, "u1", now)
	if stats.SuccessRate != 33.3 {
		t.Fatalf("expected 33.3, got %v", stats.SuccessRate)
	}
}

func TestUserStats_RequiresUser(t *testing.T) {
	if _, err := NewService(conversations.NewMemoryRepo()).UserStats(context.Background(), "", time.Now()); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
