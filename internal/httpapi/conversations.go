package httpapi

import (
	"net/http"

	"sales-trainer/internal/conversations"
	"sales-trainer/internal/realtime"
	"sales-trainer/pkg/logger"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListConversations(c *gin.Context) {
	cl, ok := requireCaller(c)
	if !ok {
		return
	}
	list, err := h.Conversations.ListForUser(c.Request.Context(), cl.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []conversations.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

func (h Handlers) GetConversation(c *gin.Context) {
	cl, ok := requireCaller(c)
	if !ok {
		return
	}
	conv, err := h.Conversations.GetForUser(c.Request.Context(), cl.UserID, c.Param("id"), cl.Admin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// WatchConversation upgrades to a websocket and streams status and analysis
// updates. The current document is sent first so late subscribers miss nothing.
func (h Handlers) WatchConversation(c *gin.Context) {
	cl, ok := requireCaller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	conv, err := h.Conversations.GetForUser(ctx, cl.UserID, c.Param("id"), cl.Admin)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Realtime == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "realtime not configured"})
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.FromGin(c).Warn("websocket upgrade failed", "err", err)
		return
	}
	if err := realtime.Stream(ctx, conn, h.Realtime, conv.ID, conv); err != nil {
		logger.FromGin(c).Debug("conversation stream closed", "conversation_id", conv.ID, "err", err)
	}
}
