package httpapi

import (
	"net/http"
	"strings"

	"sales-trainer/internal/sessions"

	"github.com/gin-gonic/gin"
)

type startSessionRequest struct {
	SellerID string `json:"seller_id"`
	// AgentID is accepted for older clients that still send the persona id
	// under that name.
	AgentID string `json:"agent_id"`
}

// StartSession must be mounted behind access.RequireCallAccess.
func (h Handlers) StartSession(c *gin.Context) {
	cl, ok := requireCaller(c)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sellerID := strings.TrimSpace(req.SellerID)
	if sellerID == "" {
		sellerID = strings.TrimSpace(req.AgentID)
	}
	if sellerID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "seller_id is required"})
		return
	}

	res, err := h.Sessions.Start(c.Request.Context(), cl, sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h Handlers) SessionEvent(c *gin.Context) {
	cl, ok := requireCaller(c)
	if !ok {
		return
	}
	var ev sessions.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Sessions.HandleEvent(c.Request.Context(), cl, c.Param("id"), ev); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type stopSessionRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

func (h Handlers) StopSession(c *gin.Context) {
	cl, ok := requireCaller(c)
	if !ok {
		return
	}
	var req stopSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Sessions.Stop(c.Request.Context(), cl, c.Param("id"), req.DurationSeconds)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
