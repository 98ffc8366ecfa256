package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
)

const foreignKeyViolation = "23503"

const notificationColumns = `id, receiver_id, title, body, level, created_at`

type PgNotificationRepository struct {
	db *sqlx.DB
}

func NewPgNotificationRepository(db *sqlx.DB) *PgNotificationRepository {
	return &PgNotificationRepository{db: db}
}

func (r *PgNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, receiver_id, title, body, level, created_at)
		VALUES (:id, :receiver_id, :title, :body, :level, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return domain.ErrReceiverNotFound
		}
		return storageError("insert notification", err)
	}
	return nil
}

func (r *PgNotificationRepository) Delete(ctx context.Context, notificationID string, receiverID uuid.UUID) error {
	query := `
		DELETE FROM notifications
		WHERE id = $1 AND receiver_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, notificationID, receiverID); err != nil {
		return storageError("delete notification", err)
	}
	return nil
}

func (r *PgNotificationRepository) FindPage(ctx context.Context, req domain.PageRequest) ([]domain.Notification, error) {
	var (
		query string
		args  []any
	)
	if req.Cursor == nil {
		query = `
			SELECT ` + notificationColumns + ` FROM notifications
			WHERE receiver_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`
		args = []any{req.ReceiverID, req.Limit + 1}
	} else {
		query = `
			SELECT ` + notificationColumns + ` FROM notifications
			WHERE receiver_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`
		args = []any{req.ReceiverID, req.Cursor.CreatedAt, req.Cursor.ID, req.Limit + 1}
	}

	notifications := []domain.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, storageError("select notification page", err)
	}
	return notifications, nil
}

func (r *PgNotificationRepository) ListAfter(ctx context.Context, receiverID uuid.UUID, after domain.Cursor, limit int) ([]domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + ` FROM notifications
		WHERE receiver_id = $1 AND (created_at, id) > ($2, $3)
		ORDER BY created_at ASC, id ASC
		LIMIT $4
	`
	notifications := []domain.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, receiverID, after.CreatedAt, after.ID, limit); err != nil {
		return nil, storageError("select notifications after marker", err)
	}
	return notifications, nil
}

func (r *PgNotificationRepository) Count(ctx context.Context, receiverID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE receiver_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, receiverID); err != nil {
		return 0, storageError("count notifications", err)
	}
	return count, nil
}

func (r *PgNotificationRepository) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < $1`, before)
	if err != nil {
		return 0, storageError("purge notifications", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("purge notifications", err)
	}
	return n, nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}
