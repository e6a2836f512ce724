package messaging

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists messages within the current org schema.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	List(ctx context.Context, patientID *uuid.UUID, status string, limit, offset int) ([]*Message, int, error)

	// LatestFailedByMetadata returns the newest failed message of the
	// given kind whose metadata value at key matches, or nil when none
	// exists.
	LatestFailedByMetadata(ctx context.Context, kind, key, value string) (*Message, error)

	// MarkSent and MarkFailed record the outcome of a send attempt.
	// The update only applies while the message is still in fromStatus,
	// which serializes concurrent resend requests on the same row. They
	// return false when another request transitioned the message first.
	MarkSent(ctx context.Context, id uuid.UUID, fromStatus string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, sendErr string, fromStatus string) (bool, error)
}
