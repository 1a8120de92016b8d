package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CreatePortalSession returns a Stripe billing portal URL for the caller.
func (h Handlers) CreatePortalSession(c *gin.Context) {
	cl, ok := requireCaller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	u, err := h.Users.Get(ctx, cl.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	origin := strings.TrimRight(strings.TrimSpace(c.GetHeader("Origin")), "/")
	if origin == "" {
		origin = strings.TrimRight(h.PublicURL, "/")
	}
	url, err := h.Billing.CreatePortalSession(ctx, u, origin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
