package domain

import (
	"context"

	"github.com/google/uuid"
)

// Directory answers who should receive fan-out notifications.
type Directory interface {
	// ActiveUserIDs lists every user that is active and not soft-deleted.
	ActiveUserIDs(ctx context.Context) ([]uuid.UUID, error)
	// FollowerIDs lists the active followers of followeeID.
	FollowerIDs(ctx context.Context, followeeID uuid.UUID) ([]uuid.UUID, error)
}
