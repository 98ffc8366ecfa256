package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *Notification) error
	// Delete is idempotent: removing a missing or foreign notification succeeds.
	Delete(ctx context.Context, notificationID string, receiverID uuid.UUID) error
	// FindPage returns up to req.Limit+1 rows in (created_at DESC, id DESC)
	// order after req.Cursor; the extra row signals a next page.
	FindPage(ctx context.Context, req PageRequest) ([]Notification, error)
	// ListAfter returns up to limit notifications that sort after the cursor,
	// oldest first.
	ListAfter(ctx context.Context, receiverID uuid.UUID, after Cursor, limit int) ([]Notification, error)
	Count(ctx context.Context, receiverID uuid.UUID) (int, error)
	PurgeOlderThan(ctx context.Context, before time.Time) (int64, error)
}
