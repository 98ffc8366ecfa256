package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
)

// Pusher hands a persisted notification to whatever live channels the
// receiver currently holds. Having no channel is not an error.
type Pusher interface {
	PushToUser(ctx context.Context, receiverID uuid.UUID, n domain.Notification) error
}

// UserDirectory resolves fan-out targets. Implementations live in the user
// module.
type UserDirectory interface {
	ActiveUserIDs(ctx context.Context) ([]uuid.UUID, error)
	FollowerIDs(ctx context.Context, followeeID uuid.UUID) ([]uuid.UUID, error)
}

type IDGenerator interface {
	Next() (string, time.Time, error)
}

// EventSink accepts domain events after the producing transaction commits.
type EventSink interface {
	Submit(ctx context.Context, ev domain.Event) error
}
