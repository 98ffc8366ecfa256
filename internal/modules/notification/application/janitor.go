package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
)

// Janitor periodically deletes notifications older than the retention
// window. A zero retention disables it.
type Janitor struct {
	repo      domain.NotificationRepository
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewJanitor(repo domain.NotificationRepository, retention, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{repo: repo, retention: retention, interval: interval, logger: logger, now: time.Now}
}

func (j *Janitor) Enabled() bool {
	return j.retention > 0
}

// Run purges once immediately and then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	if !j.Enabled() {
		return
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if _, err := j.PurgeOnce(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error("notification purge failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (j *Janitor) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)
	n, err := j.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info("purged expired notifications", "count", n, "before", cutoff)
	}
	return n, nil
}
