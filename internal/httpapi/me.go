package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h Handlers) GetMe(c *gin.Context) {
	cl, ok := requireCaller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.Usage.CheckAndReset(ctx, cl.UserID); err != nil {
		respondError(c, err)
		return
	}
	u, err := h.Users.Get(ctx, cl.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	dec, err := h.Access.Check(ctx, cl.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "access": dec})
}

func (h Handlers) GetUsage(c *gin.Context) {
	cl, ok := requireCaller(c)
	if !ok {
		return
	}
	snap, err := h.Usage.Snapshot(c.Request.Context(), cl.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) GetStats(c *gin.Context) {
	cl, ok := requireCaller(c)
	if !ok {
		return
	}
	stats, err := h.Reporting.UserStats(c.Request.Context(), cl.UserID, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
