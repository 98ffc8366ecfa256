package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PgUserDirectory struct {
	db *sqlx.DB
}

func NewPgUserDirectory(db *sqlx.DB) *PgUserDirectory {
	return &PgUserDirectory{db: db}
}

func (d *PgUserDirectory) ActiveUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM users
		WHERE is_active = TRUE AND deleted_at IS NULL
		ORDER BY id
	`
	ids := []uuid.UUID{}
	if err := d.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return ids, nil
}

func (d *PgUserDirectory) FollowerIDs(ctx context.Context, followeeID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT f.follower_id FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = $1 AND u.is_active = TRUE AND u.deleted_at IS NULL
		ORDER BY f.created_at
	`
	ids := []uuid.UUID{}
	if err := d.db.SelectContext(ctx, &ids, query, followeeID); err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	return ids, nil
}
