package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/saransh1220/wardrobe/internal/shared/infrastructure/database"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Database     database.PostgresConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Log          LogConfig
	Migration    MigrationConfig
	Notification NotificationConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	AllowedOrigins  string
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	database.RedisConfig
	Enabled bool
}

// JWTConfig holds the secret used to verify access tokens. Tokens are
// issued elsewhere.
type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level string
}

type MigrationConfig struct {
	Path  string
	Table string
	Auto  bool
}

// NotificationConfig tunes paging, live delivery, fan-out and retention.
type NotificationConfig struct {
	DefaultPageSize   int
	MaxPageSize       int
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	PongWait          time.Duration
	SSERetry          time.Duration
	SendBuffer        int
	BackfillBatch     int
	BackfillCap       int
	RegistryShards    int
	DispatchWorkers   int
	DispatchQueue     int
	CountCacheTTL     time.Duration
	EventStream       string
	EventGroup        string
	EventStreamMaxLen int64
	PushChannel       string
	PushRelay         bool
	Retention         time.Duration
	PurgeInterval     time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "http://localhost:4200"),
			ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "20s"), 20*time.Second),
		},
		Database: database.PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "wardrobe"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: parseInt(getEnv("DB_MAX_CONNS", "20"), 20),
		},
		Redis: RedisConfig{
			RedisConfig: database.RedisConfig{
				Host:     getEnv("REDIS_HOST", "localhost"),
				Port:     getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
			},
			Enabled: parseBool(getEnv("REDIS_ENABLED", "true"), true),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "default-dev-secret"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Migration: MigrationConfig{
			Path:  getEnv("MIGRATIONS_PATH", "db/migrations"),
			Table: getEnv("MIGRATIONS_TABLE", "schema_migrations"),
			Auto:  parseBool(getEnv("AUTO_MIGRATE", "true"), true),
		},
		Notification: NotificationConfig{
			DefaultPageSize:   parseInt(getEnv("NOTIFICATION_PAGE_SIZE", "20"), 20),
			MaxPageSize:       parseInt(getEnv("NOTIFICATION_MAX_PAGE_SIZE", "50"), 50),
			HeartbeatInterval: parseDuration(getEnv("NOTIFICATION_HEARTBEAT_INTERVAL", "25s"), 25*time.Second),
			WriteTimeout:      parseDuration(getEnv("NOTIFICATION_WRITE_TIMEOUT", "10s"), 10*time.Second),
			PongWait:          parseDuration(getEnv("NOTIFICATION_PONG_WAIT", "60s"), time.Minute),
			SSERetry:          parseDuration(getEnv("NOTIFICATION_SSE_RETRY", "3s"), 3*time.Second),
			SendBuffer:        parseInt(getEnv("NOTIFICATION_SEND_BUFFER", "64"), 64),
			BackfillBatch:     parseInt(getEnv("NOTIFICATION_BACKFILL_BATCH", "100"), 100),
			BackfillCap:       parseInt(getEnv("NOTIFICATION_BACKFILL_CAP", "1000"), 1000),
			RegistryShards:    parseInt(getEnv("NOTIFICATION_REGISTRY_SHARDS", "32"), 32),
			DispatchWorkers:   parseInt(getEnv("NOTIFICATION_DISPATCH_WORKERS", "8"), 8),
			DispatchQueue:     parseInt(getEnv("NOTIFICATION_DISPATCH_QUEUE", "1024"), 1024),
			CountCacheTTL:     parseDuration(getEnv("NOTIFICATION_COUNT_CACHE_TTL", "30s"), 30*time.Second),
			EventStream:       getEnv("NOTIFICATION_EVENT_STREAM", "notifications:events"),
			EventGroup:        getEnv("NOTIFICATION_EVENT_GROUP", "notification-ingest"),
			EventStreamMaxLen: int64(parseInt(getEnv("NOTIFICATION_EVENT_STREAM_MAXLEN", "100000"), 100000)),
			PushChannel:       getEnv("NOTIFICATION_PUSH_CHANNEL", "notifications:push"),
			PushRelay:         parseBool(getEnv("NOTIFICATION_PUSH_RELAY", "false"), false),
			Retention:         parseDuration(getEnv("NOTIFICATION_RETENTION", "0"), 0),
			PurgeInterval:     parseDuration(getEnv("NOTIFICATION_PURGE_INTERVAL", "1h"), time.Hour),
		},
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration string or returns a default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}

func parseInt(value string, defaultValue int) int {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return defaultValue
}

func parseBool(value string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}
