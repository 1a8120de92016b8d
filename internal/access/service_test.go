package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sales-trainer/internal/auth"
	"sales-trainer/internal/users"

	"github.com/gin-gonic/gin"
)

type fakeRecords struct {
	mu         sync.Mutex
	failed     map[string]bool
	trialEnded map[string]time.Time
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{failed: map[string]bool{}, trialEnded: map[string]time.Time{}}
}

func (f *fakeRecords) HasPaymentFailed(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed[strings.ToLower(email)], nil
}

func (f *fakeRecords) RecordTrialEnded(ctx context.Context, email, userID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trialEnded[email]; ok {
		return false, nil
	}
	f.trialEnded[email] = at
	return true, nil
}

func setup(t *testing.T, at *time.Time) (*Service, *users.MemoryRepo, *fakeRecords, time.Time) {
	t.Helper()
	created := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	repo := users.NewMemoryRepo()
	if err := repo.Create(context.Background(), users.NewUser("u1", "rep@example.com", "Rep", created)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec := newFakeRecords()
	svc := NewService(repo, rec).WithClock(func() time.Time { return *at })
	return svc, repo, rec, created
}

func TestOnAuthenticated_TrialWindow(t *testing.T) {
	var now time.Time
	svc, repo, rec, created := setup(t, &now)
	ctx := context.Background()

	now = created.Add(71 * time.Hour)
	d, err := svc.OnAuthenticated(ctx, "u1")
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	if d.State != StateTrialActive || !d.AllowCalls {
		t.Fatalf("expected active trial, got %+v", d)
	}
	u, _ := repo.Get(ctx, "u1")
	if u.LastLogin == nil || !u.LastLogin.Equal(now) || u.IsTrialComplete {
		t.Fatalf("unexpected row %+v", u)
	}

	now = created.Add(72 * time.Hour)
	d, err = svc.OnAuthenticated(ctx, "u1")
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	if d.State != StateTrialEnded || d.AllowCalls || d.Reason != ReasonTrialEnded {
		t.Fatalf("expected ended trial, got %+v", d)
	}
	u, _ = repo.Get(ctx, "u1")
	if !u.IsTrialComplete {
		t.Fatalf("expected trial marked complete")
	}
	first := rec.trialEnded["rep@example.com"]
	if !first.Equal(now) {
		t.Fatalf("expected TrialEnded recorded at %v, got %v", now, first)
	}

	now = now.Add(24 * time.Hour)
	if _, err := svc.OnAuthenticated(ctx, "u1"); err != nil {
		t.Fatalf("auth: %v", err)
	}
	if !rec.trialEnded["rep@example.com"].Equal(first) {
		t.Fatalf("TrialEnded rewritten on later sign-in")
	}
}

func TestOnAuthenticated_PaymentFailedRecordMakesOverdue(t *testing.T) {
	var now time.Time
	svc, repo, rec, created := setup(t, &now)
	ctx := context.Background()
	now = created.Add(24 * time.Hour)

	_ = users.Update(ctx, repo, "u1", func(u *users.User) (bool, error) {
		u.HasPaid = true
		return true, nil
	})
	d, _ := svc.OnAuthenticated(ctx, "u1")
	if d.State != StatePaidActive {
		t.Fatalf("expected paid, got %s", d.State)
	}

	rec.failed["rep@example.com"] = true
	d, _ = svc.OnAuthenticated(ctx, "u1")
	if d.State != StatePaymentFailed || d.AllowCalls {
		t.Fatalf("expected payment failed, got %+v", d)
	}
}

func TestRequireCallAccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var now time.Time
	svc, _, _, created := setup(t, &now)

	newRouter := func(role string) *gin.Engine {
		r := gin.New()
		r.POST("/start", func(c *gin.Context) {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "u1", "rep@example.com", role))
			c.Next()
		}, RequireCallAccess(svc), func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	now = created.Add(time.Hour)
	w := httptest.NewRecorder()
	newRouter("user").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 during trial, got %d", w.Code)
	}

	now = created.Add(80 * time.Hour)
	w = httptest.NewRecorder()
	newRouter("user").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", nil))
	if w.Code != http.StatusPaymentRequired || !strings.Contains(w.Body.String(), ReasonTrialEnded) {
		t.Fatalf("expected 402 trial_ended, got %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	newRouter("admin").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected admin bypass, got %d", w.Code)
	}
}
