package main

import (
	"context"
	"database/sql"
	"time"

	"sales-trainer/internal/access"
	"sales-trainer/internal/auth"
	"sales-trainer/internal/config"
	"sales-trainer/internal/httpapi"
	"sales-trainer/internal/rbac"
	"sales-trainer/internal/users"
	"sales-trainer/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, gate gin.HandlerFunc, ready map[string]httpapi.ReadyFunc) {
	r.Use(gate)

	// public (allow-listed in the gate)
	r.GET("/healthz", httpapi.Health)
	r.GET("/readyz", httpapi.Ready(ready))
	r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))

	hooks := r.Group("/webhooks")
	{
		hooks.POST("/payment-success", h.PaymentSuccess)
		hooks.POST("/stripe", h.StripeWebhook)
		hooks.POST("/voice/post-call", h.VoicePostCall)
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/session", h.CreateSession)
		v1.POST("/auth/logout", h.Logout)
		v1.GET("/invites/:email", h.GetInvite)

		me := v1.Group("/me")
		{
			me.GET("", h.GetMe)
			me.GET("/usage", h.GetUsage)
			me.GET("/stats", h.GetStats)
		}
		v1.POST("/billing/portal", h.CreatePortalSession)

		convs := v1.Group("/conversations")
		{
			convs.GET("", h.ListConversations)
			convs.GET("/:id", h.GetConversation)
			convs.GET("/:id/ws", h.WatchConversation)
		}

		sess := v1.Group("/sessions")
		{
			sess.POST("", access.RequireCallAccess(h.Access), h.StartSession)
			sess.POST("/:id/events", h.SessionEvent)
			sess.POST("/:id/stop", h.StopSession)
		}

		admin := rbac.RequireAdmin()
		scenarios := v1.Group("/scenarios")
		{
			scenarios.GET("", h.ListScenarios)
			scenarios.GET("/:id", h.GetScenario)
			scenarios.POST("", admin, h.CreateScenario)
			scenarios.PUT("/:id", admin, h.UpdateScenario)
			scenarios.DELETE("/:id", admin, h.DeleteScenario)
		}
		sellers := v1.Group("/sellers")
		{
			sellers.GET("", h.ListSellers)
			sellers.GET("/:id", h.GetSeller)
			sellers.POST("", admin, h.CreateSeller)
			sellers.PUT("/:id", admin, h.UpdateSeller)
			sellers.DELETE("/:id", admin, h.DeleteSeller)
		}

		// ADMIN routes
		adm := v1.Group("/admin")
		adm.Use(admin)
		{
			adm.GET("/users", h.AdminListUsers)
			adm.GET("/users/:id", h.AdminGetUser)
			adm.PATCH("/users/:id", h.AdminUpdateUser)
			adm.DELETE("/users/:id", h.AdminDeleteUser)
			adm.GET("/users/:id/audit", h.AdminUserAudit)
			adm.POST("/invites", h.AdminInvite)
		}
	}
}

func gateOptions(cfg config.Config, idTokens auth.IDTokenVerifier, store users.Store) auth.GateOptions {
	return auth.GateOptions{
		CookieName:     cfg.Auth.CookieName,
		PublicPaths:    append([]string{"/healthz", "/readyz", "/metrics", "/v1/auth/session"}, auth.DefaultPublicPaths...),
		PublicPrefixes: []string{"/webhooks/", "/v1/invites/"},
		APIPrefixes:    []string{"/v1/"},
		IDTokens:       idTokens,
		// Stored role wins over token claims so demotions and deletions take
		// effect before the session expires. Disabled accounts get no role.
		RoleFor: func(ctx context.Context, id auth.Identity) string {
			u, err := store.Get(ctx, id.UserID)
			if err != nil || !u.IsActive {
				return ""
			}
			return rbac.Normalize(u.Role)
		},
	}
}

func readiness(db *sql.DB, rdb *redis.Client) map[string]httpapi.ReadyFunc {
	return map[string]httpapi.ReadyFunc{
		"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, time.Second) },
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
}
