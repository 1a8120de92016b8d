package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"sales-trainer/internal/config"
	"sales-trainer/internal/reliability"
)

const defaultBaseURL = "https://api.elevenlabs.io"

var (
	// ErrNotReady means the platform has no analysis for the conversation yet.
	ErrNotReady       = errors.New("conversation analysis not ready")
	ErrNoConversation = errors.New("no conversation found for agent")
)

// APIError is a non-2xx response from the voice platform.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voice platform: status %d: %s", e.Status, e.Body)
}

func (e *APIError) Retryable() bool { return reliability.IsRetryableHTTPStatus(e.Status) }

// Client talks to the ElevenLabs conversational AI REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg config.VoiceConfig) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{baseURL: base, apiKey: cfg.APIKey, httpClient: &http.Client{Timeout: timeout}}
}

// ConversationSummary is one entry of the conversation listing.
type ConversationSummary struct {
	AgentID          string `json:"agent_id"`
	ConversationID   string `json:"conversation_id"`
	StartTimeUnix    int64  `json:"start_time_unix_secs"`
	CallDurationSecs int    `json:"call_duration_secs"`
	Status           string `json:"status"`
	CallSuccessful   string `json:"call_successful"`
}

type TranscriptTurn struct {
	Role           string `json:"role"`
	Message        string `json:"message"`
	TimeInCallSecs int    `json:"time_in_call_secs"`
}

// Conversation is the platform's conversation detail.
type Conversation struct {
	AgentID        string           `json:"agent_id"`
	ConversationID string           `json:"conversation_id"`
	Status         string           `json:"status"`
	Transcript     []TranscriptTurn `json:"transcript"`
	Metadata       struct {
		StartTimeUnix    int64 `json:"start_time_unix_secs"`
		CallDurationSecs int   `json:"call_duration_secs"`
	} `json:"metadata"`
	// Analysis is kept raw; it is stored as-is on the conversation row.
	Analysis json.RawMessage `json:"analysis"`
}

// HasAnalysis reports whether the analysis object is present.
func (c Conversation) HasAnalysis() bool {
	a := strings.TrimSpace(string(c.Analysis))
	return a != "" && a != "null" && a != "{}"
}

// SignedURL returns a short-lived websocket URL the browser uses to join the agent.
func (c *Client) SignedURL(ctx context.Context, agentID string) (string, error) {
	if agentID == "" {
		return "", errors.New("agent id required")
	}
	var out struct {
		SignedURL string `json:"signed_url"`
	}
	q := url.Values{"agent_id": {agentID}}
	if err := c.get(ctx, "/v1/convai/conversation/get_signed_url?"+q.Encode(), &out); err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", errors.New("voice platform: empty signed url")
	}
	return out.SignedURL, nil
}

// ListConversations lists the conversations of one agent.
func (c *Client) ListConversations(ctx context.Context, agentID string) ([]ConversationSummary, error) {
	var out struct {
		Conversations []ConversationSummary `json:"conversations"`
	}
	q := url.Values{}
	if agentID != "" {
		q.Set("agent_id", agentID)
	}
	path := "/v1/convai/conversations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	err := c.get(ctx, path, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// filter again: the listing may ignore the agent filter
	list := out.Conversations[:0]
	for _, cs := range out.Conversations {
		if agentID == "" || cs.AgentID == agentID {
			list = append(list, cs)
		}
	}
	return list, nil
}

// LatestConversationID returns the agent's conversation with the latest start time.
func (c *Client) LatestConversationID(ctx context.Context, agentID string) (string, error) {
	list, err := c.ListConversations(ctx, agentID)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", ErrNoConversation
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartTimeUnix > list[j].StartTimeUnix })
	return list[0].ConversationID, nil
}

// GetConversation fetches one conversation. A 404 is reported as ErrNotReady.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (Conversation, error) {
	if conversationID == "" {
		return Conversation{}, errors.New("conversation id required")
	}
	var out Conversation
	err := c.get(ctx, "/v1/convai/conversations/"+url.PathEscape(conversationID), &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return Conversation{}, ErrNotReady
	}
	if err != nil {
		return Conversation{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("voice platform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
