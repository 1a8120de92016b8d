package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestService_AppendRequiresActorAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventUserDeleted}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent without actor, got %v", err)
	}
	if err := svc.Append(context.Background(), Event{ActorUserID: "admin-1"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent without type, got %v", err)
	}
}

func TestService_RecordAppendsImmutableEvent(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	actor := Actor{UserID: "admin-1", Role: "admin", IP: "1.2.3.4"}
	err := svc.Record(context.Background(), EventUserUpdated, actor, "u1", "", "updated limits",
		map[string]any{"max_time_limit": 900})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
	if e.IPAddress != "1.2.3.4" || e.TargetUserID != "u1" || e.Type != EventUserUpdated {
		t.Fatalf("unexpected event %+v", e)
	}
	if string(e.Metadata) != `{"max_time_limit":900}` {
		t.Fatalf("unexpected metadata %s", e.Metadata)
	}
}

func TestService_ForTargetUserNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(repo).WithClock(func() time.Time { return now })
	ctx := context.Background()
	actor := Actor{UserID: "admin-1", Role: "admin"}

	_ = svc.Record(ctx, EventUserUpdated, actor, "u1", "", "first", map[string]int{"max_time_limit": 600})
	now = now.Add(time.Minute)
	_ = svc.Record(ctx, EventSellerWritten, actor, "", "seller-1", "unrelated", nil)
	_ = svc.Record(ctx, EventUserDeleted, actor, "u1", "", "second", nil)

	evs, err := svc.ForTargetUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 2 || evs[0].Message != "second" || evs[1].Message != "first" {
		t.Fatalf("unexpected history %+v", evs)
	}

	// returned metadata is a copy
	evs[1].Metadata[0] = 'X'
	again, _ := svc.ForTargetUser(ctx, "u1", 1)
	if len(again) != 1 || again[0].Message != "second" {
		t.Fatalf("expected limit of 1, got %+v", again)
	}
	if all := repo.Events(); string(all[0].Metadata) != `{"max_time_limit":600}` {
		t.Fatalf("stored metadata was mutated: %s", all[0].Metadata)
	}

	if _, err := svc.ForTargetUser(ctx, "", 0); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for empty user, got %v", err)
	}
}
