package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"sales-trainer/internal/audit"
	"sales-trainer/internal/auth"
	"sales-trainer/internal/users"
	"sales-trainer/pkg/logger"

	"github.com/gin-gonic/gin"
)

func (h Handlers) AdminListUsers(c *gin.Context) {
	list, err := h.Users.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []users.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h Handlers) AdminGetUser(c *gin.Context) {
	u, err := h.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) AdminUpdateUser(c *gin.Context) {
	var req users.AdminPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	id := c.Param("id")
	u, err := h.Users.AdminUpdate(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.recordAudit(c, audit.EventUserUpdated, id, "", "", req)
	c.JSON(http.StatusOK, u)
}

// AdminDeleteUser removes the identity-provider account first, then the
// user document. A provider account that is already gone is not an error.
func (h Handlers) AdminDeleteUser(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return
	}
	ctx := c.Request.Context()
	if h.Accounts != nil {
		err := h.Accounts.DeleteAccount(ctx, id)
		if err != nil && !errors.Is(err, auth.ErrAccountNotFound) {
			logger.FromGin(c).Error("identity account delete failed", "user_id", id, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
			return
		}
	}
	if err := h.Users.Delete(ctx, id); err != nil && !errors.Is(err, users.ErrNotFound) {
		respondError(c, err)
		return
	}
	h.recordAudit(c, audit.EventUserDeleted, id, "", "", nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AdminUserAudit lists the admin actions recorded against a user, newest
// first. ?limit= is capped by the audit service.
func (h Handlers) AdminUserAudit(c *gin.Context) {
	if h.Audit == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "audit not configured"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	events, err := h.Audit.ForTargetUser(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type inviteRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (h Handlers) AdminInvite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	a := actor(c)
	p, err := h.Users.Invite(c.Request.Context(), req.Email, req.DisplayName, a.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.recordAudit(c, audit.EventInviteCreated, "", p.Email, "", gin.H{"display_name": p.DisplayName})
	c.JSON(http.StatusCreated, p)
}
