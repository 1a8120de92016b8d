package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sales-trainer/internal/access"
	"sales-trainer/internal/audit"
	"sales-trainer/internal/auth"
	"sales-trainer/internal/billing"
	"sales-trainer/internal/catalog"
	"sales-trainer/internal/conversations"
	"sales-trainer/internal/observability"
	"sales-trainer/internal/rbac"
	"sales-trainer/internal/realtime"
	"sales-trainer/internal/reporting"
	"sales-trainer/internal/sessions"
	"sales-trainer/internal/usage"
	"sales-trainer/internal/users"
	"sales-trainer/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	IDTokens auth.IDTokenVerifier
	Accounts AccountDeleter

	Users         *users.Service
	Access        *access.Service
	Usage         *usage.Service
	Conversations *conversations.Service
	Sessions      *sessions.Orchestrator
	Catalog       *catalog.Service
	Billing       *billing.Service
	Reporting     *reporting.Service
	Audit         *audit.Service

	Realtime realtime.Subscriber
	Upgrader websocket.Upgrader
	Metrics  *observability.Metrics

	CookieName   string
	CookieSecure bool
	// PublicURL is the front-end origin used when a request has no Origin header.
	PublicURL          string
	VoiceWebhookSecret string

	Clock func() time.Time
}

// AccountDeleter removes accounts from the identity provider.
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, uid string) error
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func (h Handlers) cookieName() string {
	if h.CookieName == "" {
		return "session"
	}
	return h.CookieName
}

// caller reads the identity set by auth.SessionGate.
func caller(c *gin.Context) (sessions.Caller, bool) {
	ctx := c.Request.Context()
	uid, err := auth.UserID(ctx)
	if err != nil {
		return sessions.Caller{}, false
	}
	role, _ := auth.Role(ctx)
	return sessions.Caller{UserID: uid, Email: auth.Email(ctx), Admin: rbac.IsAdmin(role)}, true
}

func requireCaller(c *gin.Context) (sessions.Caller, bool) {
	cl, ok := caller(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return cl, ok
}

func actor(c *gin.Context) audit.Actor {
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	return audit.Actor{UserID: uid, Role: role, IP: c.ClientIP()}
}

// recordAudit is best-effort: a failed append is logged, never returned.
func (h Handlers) recordAudit(c *gin.Context, t audit.EventType, targetUserID, targetID, message string, metadata any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(c.Request.Context(), t, actor(c), targetUserID, targetID, message, metadata); err != nil {
		logger.FromGin(c).Warn("audit append failed", "type", t, "err", err)
	}
}

// respondError maps service errors to status codes and JSON bodies.
func respondError(c *gin.Context, err error) {
	var accessErr *sessions.AccessError
	if errors.As(err, &accessErr) {
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": accessErr.Decision.Reason, "state": accessErr.Decision.State})
		return
	}

	status, msg := statusFor(err)
	if status >= 500 {
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, usage.ErrLimitExceeded):
		return http.StatusForbidden, usage.ErrLimitExceeded.Error()
	case errors.Is(err, billing.ErrNoCustomer):
		return http.StatusBadRequest, billing.ErrNoCustomer.Error()
	case errors.Is(err, users.ErrInvalidArgument),
		errors.Is(err, usage.ErrInvalidArgument),
		errors.Is(err, catalog.ErrInvalidArgument),
		errors.Is(err, conversations.ErrInvalidArgument),
		errors.Is(err, sessions.ErrInvalidArgument),
		errors.Is(err, billing.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, sessions.ErrNotCallable):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, users.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, conversations.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, conversations.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, users.ErrAlreadyExists),
		errors.Is(err, users.ErrConflict),
		errors.Is(err, conversations.ErrCompleted),
		errors.Is(err, conversations.ErrAlreadySet),
		errors.Is(err, sessions.ErrSessionActive):
		return http.StatusConflict, err.Error()
	case errors.Is(err, sessions.ErrVoiceUnavailable):
		return http.StatusBadGateway, "voice platform unavailable"
	case errors.Is(err, billing.ErrGateway):
		return http.StatusBadGateway, "billing provider unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// Health always answers; Ready checks the given dependencies.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReadyFunc pings one dependency.
type ReadyFunc func(ctx context.Context) error

func Ready(checks map[string]ReadyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		failed := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
