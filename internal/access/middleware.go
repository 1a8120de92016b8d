package access

import (
	"context"
	"errors"
	"net/http"

	"sales-trainer/internal/auth"
	"sales-trainer/internal/rbac"
	"sales-trainer/internal/users"

	"github.com/gin-gonic/gin"
)

// Checker is the part of Service the middleware needs.
type Checker interface {
	Check(ctx context.Context, userID string) (Decision, error)
}

// RequireCallAccess blocks call-start requests for users whose trial has
// ended or whose payment failed. Admins bypass.
func RequireCallAccess(svc Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if role, _ := auth.Role(ctx); rbac.IsAdmin(role) {
			c.Next()
			return
		}
		userID, err := auth.UserID(ctx)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		d, err := svc.Check(ctx, userID)
		if errors.Is(err, users.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user not found"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "access check failed"})
			return
		}
		if !d.AllowCalls {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": d.Reason, "state": d.State})
			return
		}
		c.Set("access_state", string(d.State))
		c.Next()
	}
}
