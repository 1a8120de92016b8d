package httpapi

import (
	"errors"
	"net/http"

	"sales-trainer/internal/auth"
	"sales-trainer/internal/rbac"
	"sales-trainer/internal/users"

	"github.com/gin-gonic/gin"
)

type sessionRequest struct {
	IDToken string `json:"id_token"`
}

// CreateSession exchanges a verified ID token for the session cookie. It
// runs signup (idempotent), the billing-cycle reset and the access gate on
// every sign-in.
func (h Handlers) CreateSession(c *gin.Context) {
	if h.Auth == nil || h.IDTokens == nil || h.Users == nil || h.Access == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req sessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	tok := req.IDToken
	if tok == "" {
		tok, _ = auth.BearerToken(c)
	}
	if tok == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, err := h.IDTokens.Verify(tok)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	u, _, err := h.Users.Signup(ctx, users.SignupInput{
		UserID:      id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		Admin:       id.Admin,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Usage != nil {
		if _, err := h.Usage.CheckAndReset(ctx, u.ID); err != nil {
			respondError(c, err)
			return
		}
	}
	dec, err := h.Access.OnAuthenticated(ctx, u.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !u.IsActive {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}

	session, exp, err := h.Auth.IssueSession(h.now(), u.ID, u.Email, rbac.Normalize(u.Role))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName(), session, int(h.Auth.TTL().Seconds()), "/", "", h.CookieSecure, true)

	if fresh, err := h.Users.Get(ctx, u.ID); err == nil {
		u = fresh
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "access": dec, "expires_at": exp})
}

func (h Handlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName(), "", -1, "/", "", h.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}

// GetInvite serves the create-password landing page.
func (h Handlers) GetInvite(c *gin.Context) {
	p, err := h.Users.GetPending(c.Request.Context(), c.Param("email"))
	if errors.Is(err, users.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "invite not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": p.Email, "display_name": p.DisplayName})
}
