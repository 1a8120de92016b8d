package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("conversation not found")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCompleted is returned for writes that are only valid while ongoing.
	ErrCompleted = errors.New("conversation already completed")
	// ErrAlreadySet is returned when an analysis field was written before.
	ErrAlreadySet = errors.New("analysis already set")
	ErrForbidden  = errors.New("conversation belongs to another user")
	// ErrExternalIDSet is returned when the row is linked to another platform conversation.
	ErrExternalIDSet = errors.New("external conversation id already set")
)

// Repository persists conversations. Implementations enforce the status and
// write-once rules in the write itself, not in the caller.
type Repository interface {
	Create(ctx context.Context, c Conversation) error
	Get(ctx context.Context, id string) (Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]Conversation, error)
	FindByExternalID(ctx context.Context, externalID string) (Conversation, error)

	// Complete moves an ongoing conversation to completed.
	Complete(ctx context.Context, id string, end time.Time, durationSec int) (Conversation, error)
	SetExternalID(ctx context.Context, id, externalID string) error
	// RecordExternalID links the platform conversation in any status. The id
	// is write-once: repeating it is a no-op, a different one fails.
	RecordExternalID(ctx context.Context, id, externalID string) error
	AddTokenUsage(ctx context.Context, id string, n int64) error

	SetRawAnalysis(ctx context.Context, id string, raw json.RawMessage) error
	SetAnalysis(ctx context.Context, id string, analysis json.RawMessage) error
	SetAnalysisError(ctx context.Context, id, msg string) error
}
