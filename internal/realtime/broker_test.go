package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestMemoryBroker_FanOutPerConversation(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	a1, cancelA1, _ := b.Subscribe(ctx, "conv-a")
	a2, cancelA2, _ := b.Subscribe(ctx, "conv-a")
	other, cancelOther, _ := b.Subscribe(ctx, "conv-b")
	defer cancelA1()
	defer cancelA2()
	defer cancelOther()

	if err := b.Publish(ctx, Update{ConversationID: "conv-a", Type: TypeStatus, Status: "completed"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	for _, ch := range []<-chan Update{a1, a2} {
		select {
		case u := <-ch:
			if u.Status != "completed" {
				t.Fatalf("unexpected update %+v", u)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive update")
		}
	}
	select {
	case u := <-other:
		t.Fatalf("other conversation got %+v", u)
	default:
	}
}

func TestMemoryBroker_CancelClosesChannel(t *testing.T) {
	b := NewMemoryBroker()
	ch, cancel, _ := b.Subscribe(context.Background(), "conv-a")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if err := b.Publish(context.Background(), Update{ConversationID: "conv-a"}); err != nil {
		t.Fatalf("publish after cancel: %v", err)
	}
}

func TestStream_DeliversInitialAndUpdates(t *testing.T) {
	b := NewMemoryBroker()
	upgrader := NewUpgrader(nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = Stream(r.Context(), conn, b, "conv-1", Update{ConversationID: "conv-1", Type: TypeStatus, Status: "ongoing"})
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var first Update
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.Status != "ongoing" {
		t.Fatalf("unexpected initial %+v", first)
	}

	// the subscription is registered before the initial frame is written
	if err := b.Publish(context.Background(), Update{ConversationID: "conv-1", Type: TypeAnalysis, Analysis: []byte(`{"overallScore":7}`)}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	var next Update
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if next.Type != TypeAnalysis || string(next.Analysis) != `{"overallScore":7}` {
		t.Fatalf("unexpected update %+v", next)
	}
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	up := NewUpgrader([]string{"https://app.example.com/"})
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"http://127.0.0.1:8080", true},
		{"https://evil.example", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8080/v1/conversations/c/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := up.CheckOrigin(r); got != tc.want {
			t.Fatalf("origin %q: got %v want %v", tc.origin, got, tc.want)
		}
	}
}
