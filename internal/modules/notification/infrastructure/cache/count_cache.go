package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
)

const countKeyPrefix = "notifications:count:"

func countKey(receiverID uuid.UUID) string {
	return countKeyPrefix + receiverID.String()
}

// CountingRepository serves Count from Redis and drops the cached value
// whenever the receiver's rows change through it. Rows removed by
// PurgeOlderThan are reflected once the entry expires. Redis failures fall
// back to the wrapped repository.
type CountingRepository struct {
	domain.NotificationRepository
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewCountingRepository(inner domain.NotificationRepository, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CountingRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CountingRepository{
		NotificationRepository: inner,
		client:                 client,
		ttl:                    ttl,
		logger:                 logger,
	}
}

func (r *CountingRepository) Count(ctx context.Context, receiverID uuid.UUID) (int, error) {
	key := countKey(receiverID)
	cached, err := r.client.Get(ctx, key).Int()
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		r.logger.Warn("count cache read failed", "key", key, "error", err)
	}

	count, err := r.NotificationRepository.Count(ctx, receiverID)
	if err != nil {
		return 0, err
	}
	if err := r.client.Set(ctx, key, count, r.ttl).Err(); err != nil {
		r.logger.Warn("count cache write failed", "key", key, "error", err)
	}
	return count, nil
}

func (r *CountingRepository) Create(ctx context.Context, n *domain.Notification) error {
	if err := r.NotificationRepository.Create(ctx, n); err != nil {
		return err
	}
	r.invalidate(ctx, n.ReceiverID)
	return nil
}

func (r *CountingRepository) Delete(ctx context.Context, notificationID string, receiverID uuid.UUID) error {
	if err := r.NotificationRepository.Delete(ctx, notificationID, receiverID); err != nil {
		return err
	}
	r.invalidate(ctx, receiverID)
	return nil
}

func (r *CountingRepository) invalidate(ctx context.Context, receiverID uuid.UUID) {
	key := countKey(receiverID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Warn("count cache invalidation failed", "key", key, "error", err)
	}
}
