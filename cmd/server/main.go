package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/saransh1220/wardrobe/internal/gateway"
	"github.com/saransh1220/wardrobe/internal/gateway/middleware"
	"github.com/saransh1220/wardrobe/internal/modules/notification"
	"github.com/saransh1220/wardrobe/internal/modules/notification/application"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/pubsub"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/realtime"
	notification_http "github.com/saransh1220/wardrobe/internal/modules/notification/interfaces/http"
	"github.com/saransh1220/wardrobe/internal/modules/user"
	"github.com/saransh1220/wardrobe/internal/shared/infrastructure/config"
	"github.com/saransh1220/wardrobe/internal/shared/infrastructure/database"
	"github.com/saransh1220/wardrobe/internal/shared/infrastructure/logging"
	"github.com/saransh1220/wardrobe/pkg/migration"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Log.Level, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to postgres", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Migration.Auto {
		if err := migration.AutoMigrate(migrationConfig(cfg, logger)); err != nil {
			return err
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedis(cfg.Redis.RedisConfig)
		if err != nil {
			// the subsystem works without redis, only on a single node
			logger.Warn("redis unavailable, continuing without cache and event bus", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	users := user.NewModule(db)
	notifications := notification.NewModule(db, rdb, users.Directory(), notificationConfig(cfg.Notification), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifications.Start(ctx)

	router := gateway.SetupRoutes(gateway.RouterConfig{
		AuthMiddleware:      middleware.NewAuthMiddleware(cfg.JWT.Secret),
		NotificationHandler: notifications.HTTPHandler(),
		AllowedOrigins:      cfg.Server.AllowedOrigins,
	})

	server := gateway.NewServer(cfg.Server.Port, router.Handler()).
		WithShutdownTimeout(cfg.Server.ShutdownTimeout).
		WithLogger(logger)
	server.RegisterOnShutdown(notifications.CloseStreams)

	serveErr := server.Start()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer drainCancel()
	if err := notifications.Shutdown(drainCtx); err != nil {
		logger.Error("notification dispatcher did not drain", "error", err)
	}
	return serveErr
}

func migrationConfig(cfg config.Config, logger *slog.Logger) migration.Config {
	return migration.Config{
		Dir:         cfg.Migration.Path,
		DatabaseURL: cfg.Database.URL(),
		Table:       cfg.Migration.Table,
		Logger:      logger.With("component", "migration"),
	}
}

func notificationConfig(c config.NotificationConfig) notification.Config {
	return notification.Config{
		History: application.HistoryConfig{
			DefaultLimit: c.DefaultPageSize,
			MaxLimit:     c.MaxPageSize,
		},
		Delivery: realtime.Config{
			HeartbeatInterval: c.HeartbeatInterval,
			SendBuffer:        c.SendBuffer,
			BackfillBatch:     c.BackfillBatch,
			BackfillCap:       c.BackfillCap,
		},
		Stream: notification_http.StreamConfig{
			WriteTimeout: c.WriteTimeout,
			SSERetry:     c.SSERetry,
			PongWait:     c.PongWait,
		},
		RegistryShards: c.RegistryShards,
		Dispatcher: application.DispatcherConfig{
			Workers:   c.DispatchWorkers,
			QueueSize: c.DispatchQueue,
		},
		CountCacheTTL: c.CountCacheTTL,
		Events: pubsub.StreamConfig{
			Stream: c.EventStream,
			Group:  c.EventGroup,
			MaxLen: c.EventStreamMaxLen,
		},
		PushChannel:   c.PushChannel,
		PushRelay:     c.PushRelay,
		Retention:     c.Retention,
		PurgeInterval: c.PurgeInterval,
	}
}
