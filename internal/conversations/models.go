package conversations

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
)

// Conversation is one practice call between a user and a seller persona.
//
// Status only moves ongoing -> completed. After completion only the analysis
// fields change, and each of them is written at most once.
type Conversation struct {
	ID              string `json:"id" db:"id"`
	UserID          string `json:"user_id" db:"user_id"`
	UserEmail       string `json:"user_email" db:"user_email"`
	AgentID         string `json:"agent_id" db:"agent_id"`
	AgentName       string `json:"agent_name" db:"agent_name"`
	PropertyAddress string `json:"property_address,omitempty" db:"property_address"`

	// ExternalAgentID and ExternalConversationID are voice platform ids.
	ExternalAgentID        string `json:"external_agent_id,omitempty" db:"external_agent_id"`
	ExternalConversationID string `json:"external_conversation_id,omitempty" db:"external_conversation_id"`

	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`
	Status    Status     `json:"status" db:"status"`

	TokenUsage int64 `json:"token_usage" db:"token_usage"`
	// Duration is seconds.
	Duration int `json:"duration" db:"duration"`

	RawAnalysis   json.RawMessage `json:"raw_analysis,omitempty" db:"raw_analysis"`
	Analysis      json.RawMessage `json:"analysis,omitempty" db:"analysis"`
	AnalysisError string          `json:"analysis_error,omitempty" db:"analysis_error"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasAnalysis reports whether the derived analysis was stored.
func (c Conversation) HasAnalysis() bool { return len(c.Analysis) > 0 }

// CallSuccessful reads call_successful from the voice platform analysis.
func (c Conversation) CallSuccessful() bool {
	if len(c.RawAnalysis) == 0 {
		return false
	}
	var raw struct {
		CallSuccessful string `json:"call_successful"`
	}
	if err := json.Unmarshal(c.RawAnalysis, &raw); err != nil {
		return false
	}
	return raw.CallSuccessful == "success"
}
