package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sales-trainer/internal/billing"
	"sales-trainer/internal/voice"
	"sales-trainer/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	maxWebhookBody        = 64 << 10
	stripeSignatureHeader = "Stripe-Signature"
)

func readWebhookBody(c *gin.Context) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return nil, false
	}
	return payload, true
}

type paymentSuccessRequest struct {
	Email string `json:"email"`
}

// PaymentSuccess clears PaymentFailed rows for an email. A Stripe-signed
// event is verified first; the plain {"email"} body is accepted otherwise.
func (h Handlers) PaymentSuccess(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}
	if c.GetHeader(stripeSignatureHeader) != "" && h.Billing.WebhookSecretConfigured() {
		h.applyStripeEvent(c, payload)
		return
	}

	var req paymentSuccessRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.Metrics.Webhook("payment_success", "invalid")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		h.Metrics.Webhook("payment_success", "invalid")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}
	n, err := h.Billing.PaymentSucceeded(c.Request.Context(), email)
	if err != nil {
		h.Metrics.Webhook("payment_success", "error")
		respondError(c, err)
		return
	}
	h.Metrics.Webhook("payment_success", "ok")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Deleted %d records for email: %s", n, email),
	})
}

// StripeWebhook accepts only signed events.
func (h Handlers) StripeWebhook(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}
	h.applyStripeEvent(c, payload)
}

func (h Handlers) applyStripeEvent(c *gin.Context, payload []byte) {
	res, err := h.Billing.HandleStripeEvent(c.Request.Context(), payload, c.GetHeader(stripeSignatureHeader))
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		h.Metrics.Webhook("stripe", "unconfigured")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "stripe webhook not configured"})
		return
	case errors.Is(err, billing.ErrInvalidSignature):
		h.Metrics.Webhook("stripe", "bad_signature")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	case err != nil:
		h.Metrics.Webhook("stripe", "error")
		respondError(c, err)
		return
	}
	if res.Handled {
		h.Metrics.Webhook("stripe", "ok")
	} else {
		h.Metrics.Webhook("stripe", "ignored")
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "result": res})
}

// VoicePostCall receives post-call analysis pushed by the voice platform.
// Unknown conversations are acknowledged so the platform stops retrying.
func (h Handlers) VoicePostCall(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}
	if err := voice.VerifyWebhook(payload, c.GetHeader(voice.SignatureHeader), h.VoiceWebhookSecret, h.now()); err != nil {
		h.Metrics.Webhook("voice", "bad_signature")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	ev, err := voice.ParsePostCall(payload)
	if err != nil {
		h.Metrics.Webhook("voice", "invalid")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	matched, err := h.Sessions.HandlePostCall(c.Request.Context(), ev)
	if err != nil {
		h.Metrics.Webhook("voice", "error")
		respondError(c, err)
		return
	}
	if !matched {
		h.Metrics.Webhook("voice", "unmatched")
		logger.FromGin(c).Info("post-call webhook for unknown conversation", "external_id", ev.Data.ConversationID)
	} else {
		h.Metrics.Webhook("voice", "ok")
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "matched": matched})
}
