package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/metrics"
)

// IngestResult tallies what happened to each receiver of one event.
type IngestResult struct {
	Created int
	Skipped int
	Failed  int
}

// Ingestor turns domain events into persisted notifications and pushes each
// one to the receiver's live channels once it is stored.
type Ingestor struct {
	factory *domain.Factory
	repo    domain.NotificationRepository
	users   UserDirectory
	pusher  Pusher
	ids     IDGenerator
	logger  *slog.Logger
}

func NewIngestor(
	factory *domain.Factory,
	repo domain.NotificationRepository,
	users UserDirectory,
	pusher Pusher,
	ids IDGenerator,
	logger *slog.Logger,
) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		factory: factory,
		repo:    repo,
		users:   users,
		pusher:  pusher,
		ids:     ids,
		logger:  logger,
	}
}

// Ingest handles ev synchronously. A malformed event is rejected with a
// validation error and nothing is written. Receivers that no longer exist
// are skipped; any other persistence failure is returned wrapped in
// domain.ErrStorage after the remaining receivers have been attempted.
func (i *Ingestor) Ingest(ctx context.Context, ev domain.Event) (IngestResult, error) {
	plan, receivers, err := i.plan(ctx, ev)
	if err != nil {
		return IngestResult{}, err
	}
	if plan.Empty() {
		return IngestResult{Skipped: 1}, nil
	}

	var (
		res  IngestResult
		errs []error
	)
	for _, receiverID := range receivers {
		_, err := i.deliver(ctx, plan, receiverID)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, domain.ErrReceiverNotFound):
			res.Skipped++
		default:
			res.Failed++
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return res, fmt.Errorf("%s: %d of %d notifications failed: %w",
			plan.EventKind, res.Failed, len(receivers), errors.Join(errs...))
	}
	return res, nil
}

// plan validates ev, builds its plan and expands the target into receivers.
func (i *Ingestor) plan(ctx context.Context, ev domain.Event) (domain.Plan, []uuid.UUID, error) {
	plan, err := i.factory.Build(ev)
	if err != nil {
		metrics.EventsRejected.WithLabelValues(metrics.ReasonValidation).Inc()
		i.logger.Warn("rejected malformed event", "error", err)
		return domain.Plan{}, nil, err
	}
	if plan.Empty() {
		metrics.NotificationsSkipped.WithLabelValues(string(plan.EventKind), metrics.ReasonSelf).Inc()
		i.logger.Debug("suppressed self notification", "kind", plan.EventKind)
		return plan, nil, nil
	}

	receivers, err := i.resolve(ctx, plan)
	if err != nil {
		i.logger.Error("failed to resolve receivers", "kind", plan.EventKind, "target", plan.Target.Kind.String(), "error", err)
		return plan, nil, fmt.Errorf("%w: resolve receivers for %s: %w", domain.ErrStorage, plan.EventKind, err)
	}
	return plan, receivers, nil
}

func (i *Ingestor) resolve(ctx context.Context, plan domain.Plan) ([]uuid.UUID, error) {
	var candidates []uuid.UUID
	switch plan.Target.Kind {
	case domain.TargetUser:
		return []uuid.UUID{plan.Target.UserID}, nil
	case domain.TargetFollowers:
		ids, err := i.users.FollowerIDs(ctx, plan.Target.UserID)
		if err != nil {
			return nil, err
		}
		candidates = ids
	case domain.TargetAllUsers:
		ids, err := i.users.ActiveUserIDs(ctx)
		if err != nil {
			return nil, err
		}
		candidates = ids
	default:
		return nil, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(candidates))
	receivers := make([]uuid.UUID, 0, len(candidates))
	for _, id := range candidates {
		if id == uuid.Nil || id == plan.ActorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		receivers = append(receivers, id)
	}
	return receivers, nil
}

// deliver stores the plan for one receiver and pushes it. Push failures are
// logged only: the row is already durable and reachable through history.
func (i *Ingestor) deliver(ctx context.Context, plan domain.Plan, receiverID uuid.UUID) (domain.Notification, error) {
	kind := string(plan.EventKind)

	id, createdAt, err := i.ids.Next()
	if err != nil {
		metrics.NotificationsFailed.WithLabelValues(kind).Inc()
		return domain.Notification{}, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	n := plan.For(receiverID, id, createdAt)
	if err := n.Validate(); err != nil {
		metrics.NotificationsFailed.WithLabelValues(kind).Inc()
		i.logger.Error("built invalid notification", "kind", kind, "receiver_id", receiverID, "error", err)
		return domain.Notification{}, err
	}

	if err := i.repo.Create(ctx, &n); err != nil {
		if errors.Is(err, domain.ErrReceiverNotFound) {
			metrics.NotificationsSkipped.WithLabelValues(kind, metrics.ReasonReceiverNotFound).Inc()
			i.logger.Warn("receiver no longer exists", "kind", kind, "receiver_id", receiverID)
			return domain.Notification{}, err
		}
		metrics.NotificationsFailed.WithLabelValues(kind).Inc()
		i.logger.Error("failed to store notification", "kind", kind, "receiver_id", receiverID, "error", err)
		if !errors.Is(err, domain.ErrStorage) {
			err = fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		return domain.Notification{}, err
	}
	metrics.NotificationsCreated.WithLabelValues(kind).Inc()

	if err := i.pusher.PushToUser(ctx, receiverID, n); err != nil {
		i.logger.Warn("live push failed", "notification_id", n.ID, "receiver_id", receiverID, "error", err)
	}
	return n, nil
}
