package audit

import (
	"encoding/json"
	"time"
)

// Event is an immutable, append-only record of an admin action.
//
// Invariants:
// - Events are never updated or deleted.
// - actor_user_id is required.
// - ip capture is best-effort; do not block admin flows on audit failures.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	ActorUserID string `json:"actor_user_id" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	// IPAddress is the resolved client IP.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// TargetUserID is set for user-scoped actions, TargetID for catalog rows.
	TargetUserID string `json:"target_user_id,omitempty" db:"target_user_id"`
	TargetID     string `json:"target_id,omitempty" db:"target_id"`

	Message  string          `json:"message,omitempty" db:"message"`
	Metadata json.RawMessage `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventUserDeleted     EventType = "user_deleted"
	EventUserUpdated     EventType = "user_updated"
	EventInviteCreated   EventType = "invite_created"
	EventSellerWritten   EventType = "seller_written"
	EventScenarioWritten EventType = "scenario_written"
)

// Actor identifies who performed an action.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
