package notification

import (
	"context"
)

// Repository defines the notification repository interface
type Repository interface {
	Create(ctx context.Context, notification *Notification) error
	CreateBatch(ctx context.Context, notifications []*Notification) error

	// ListRecipientIDs returns the active users of a school holding any of roles.
	ListRecipientIDs(ctx context.Context, schoolID string, roles []string) ([]string, error)
}
