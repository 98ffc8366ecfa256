package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/saransh1220/wardrobe/internal/modules/notification/application"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/cache"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/idgen"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/persistence/postgres"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/pubsub"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/realtime"
	notification_http "github.com/saransh1220/wardrobe/internal/modules/notification/interfaces/http"
)

type Config struct {
	History        application.HistoryConfig
	Delivery       realtime.Config
	Stream         notification_http.StreamConfig
	RegistryShards int
	Dispatcher     application.DispatcherConfig
	CountCacheTTL  time.Duration
	Events         pubsub.StreamConfig
	PushChannel    string
	PushRelay      bool
	Retention      time.Duration
	PurgeInterval  time.Duration
}

type Module struct {
	repo       domain.NotificationRepository
	registry   *realtime.Registry
	ingestor   *application.Ingestor
	dispatcher *application.Dispatcher
	history    *application.HistoryService
	handler    *notification_http.NotificationHandler
	janitor    *application.Janitor
	subscriber *pubsub.EventSubscriber
	publisher  *pubsub.EventPublisher
	relay      *pubsub.PushRelay
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewModule wires the notification subsystem. rdb may be nil, in which case
// counts are read straight from Postgres and neither the event bus nor the
// cross-node relay is started.
func NewModule(db *sqlx.DB, rdb *redis.Client, users application.UserDirectory, cfg Config, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "notification")

	var repo domain.NotificationRepository = postgres.NewPgNotificationRepository(db)
	if rdb != nil && cfg.CountCacheTTL > 0 {
		repo = cache.NewCountingRepository(repo, rdb, cfg.CountCacheTTL, logger.With("component", "count_cache"))
	}

	registry := realtime.NewRegistry(cfg.RegistryShards, logger.With("component", "registry"))
	delivery := realtime.NewDelivery(registry, repo, cfg.Delivery, logger.With("component", "delivery"))

	m := &Module{repo: repo, registry: registry, logger: logger}

	var pusher application.Pusher = registry
	if rdb != nil && cfg.PushRelay {
		m.relay = pubsub.NewPushRelay(registry, rdb, cfg.PushChannel, logger.With("component", "push_relay"))
		pusher = m.relay
	}

	m.ingestor = application.NewIngestor(
		domain.NewFactory(nil),
		repo,
		users,
		pusher,
		idgen.NewULIDGenerator(),
		logger.With("component", "ingestor"),
	)
	m.dispatcher = application.NewDispatcher(m.ingestor, cfg.Dispatcher, logger.With("component", "dispatcher"))
	m.history = application.NewHistoryService(repo, cfg.History)
	m.handler = notification_http.NewNotificationHandler(m.history, delivery, cfg.Stream, logger.With("component", "http"))
	m.janitor = application.NewJanitor(repo, cfg.Retention, cfg.PurgeInterval, logger.With("component", "janitor"))

	if rdb != nil && cfg.Events.Stream != "" {
		m.publisher = pubsub.NewEventPublisher(rdb, cfg.Events.Stream, cfg.Events.MaxLen)
		m.subscriber = pubsub.NewEventSubscriber(rdb, cfg.Events, m.dispatcher, logger.With("component", "event_subscriber"))
	}
	return m
}

func (m *Module) HTTPHandler() *notification_http.NotificationHandler {
	return m.handler
}

// Sink is where in-process producers submit events after their transaction
// commits.
func (m *Module) Sink() application.EventSink {
	return m.dispatcher
}

// Publisher appends events to the shared event stream so whichever node
// consumes them stores each notification once. Without Redis it falls back
// to the local dispatcher.
func (m *Module) Publisher() application.EventSink {
	if m.publisher == nil {
		return m.dispatcher
	}
	return m.publisher
}

func (m *Module) Ingestor() *application.Ingestor {
	return m.ingestor
}

func (m *Module) History() *application.HistoryService {
	return m.history
}

func (m *Module) Registry() *realtime.Registry {
	return m.registry
}

// Start launches the dispatcher and the background loops.
func (m *Module) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.dispatcher.Start()

	if m.subscriber != nil {
		m.goLoop("event subscriber", func() error { return m.subscriber.Run(ctx) })
	}
	if m.relay != nil {
		m.goLoop("push relay", func() error { return m.relay.Run(ctx) })
	}
	if m.janitor.Enabled() {
		m.goLoop("janitor", func() error { m.janitor.Run(ctx); return nil })
	}
}

func (m *Module) goLoop(name string, run func() error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := run(); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("background loop stopped", "loop", name, "error", err)
		}
	}()
}

// CloseStreams ends every live session with a shutdown close frame. It is
// registered as an http.Server shutdown hook so streaming handlers return
// before the server waits on them.
func (m *Module) CloseStreams() {
	closed := m.registry.CloseAll(realtime.ReasonShutdown)
	m.logger.Info("closed live notification streams", "count", closed)
}

// Shutdown stops the background loops, then drains queued events until ctx
// expires.
func (m *Module) Shutdown(ctx context.Context) error {
	m.CloseStreams()
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	return m.dispatcher.Stop(ctx)
}
