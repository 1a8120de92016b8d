package voice

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix>,v0=<hex hmac>" on post-call webhooks.
const SignatureHeader = "ElevenLabs-Signature"

// WebhookTolerance bounds the age of a signed webhook.
const WebhookTolerance = 30 * time.Minute

var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifyWebhook checks the HMAC-SHA256 of "<t>.<payload>" against v0.
func VerifyWebhook(payload []byte, header, secret string, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: secret not configured", ErrInvalidSignature)
	}
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v0":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	sent := time.Unix(unix, 0)
	if now.Sub(sent) > WebhookTolerance || sent.Sub(now) > WebhookTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	want := Sign(payload, secret, ts)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex signature for payload at timestamp ts.
func Sign(payload []byte, secret, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// PostCallEvent is the body of a post_call_transcription webhook.
type PostCallEvent struct {
	Type           string       `json:"type"`
	EventTimestamp int64        `json:"event_timestamp"`
	Data           Conversation `json:"data"`
}

func ParsePostCall(payload []byte) (PostCallEvent, error) {
	var ev PostCallEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return PostCallEvent{}, fmt.Errorf("decode webhook: %w", err)
	}
	if ev.Data.ConversationID == "" {
		return PostCallEvent{}, errors.New("webhook: missing conversation_id")
	}
	return ev, nil
}
