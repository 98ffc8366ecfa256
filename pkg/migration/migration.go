package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Config locates the migration files and the database they apply to.
type Config struct {
	Dir         string
	DatabaseURL string
	// Table records the applied version. Empty means schema_migrations.
	Table  string
	Logger *slog.Logger
}

func (c Config) table() string {
	if c.Table == "" {
		return postgres.DefaultMigrationsTable
	}
	return c.Table
}

// Status is the schema version recorded in the migrations table.
type Status struct {
	Version uint
	Dirty   bool
}

type Runner struct {
	cfg    Config
	logger *slog.Logger
}

func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger.With("table", cfg.table())}
}

// open connects to the database for a single command. Closing the returned
// instance closes that connection.
func (r *Runner) open() (*migrate.Migrate, error) {
	db, err := sql.Open("postgres", r.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: r.cfg.table()})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+r.cfg.Dir, "postgres", driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to load migrations from %s: %w", r.cfg.Dir, err)
	}
	return m, nil
}

func (r *Runner) with(fn func(m *migrate.Migrate) error) error {
	m, err := r.open()
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			r.logger.Warn("failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()
	return fn(m)
}

// Up applies every pending migration.
func (r *Runner) Up() error {
	return r.with(func(m *migrate.Migrate) error {
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			r.logger.Info("schema already current")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		return nil
	})
}

// Down rolls back the given number of applied migrations.
func (r *Runner) Down(steps int) error {
	if steps < 1 {
		return fmt.Errorf("steps must be a positive integer, got %d", steps)
	}
	return r.with(func(m *migrate.Migrate) error {
		err := m.Steps(-steps)
		if errors.Is(err, migrate.ErrNoChange) {
			r.logger.Info("nothing to roll back")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to roll back %d migration(s): %w", steps, err)
		}
		r.logger.Info("rolled back migrations", "steps", steps)
		return nil
	})
}

// Force records version as applied and clears the dirty flag without
// running anything. It is the way out after fixing a failed migration by
// hand.
func (r *Runner) Force(version int) error {
	r.logger.Warn("forcing schema version", "version", version)
	return r.with(func(m *migrate.Migrate) error {
		if err := m.Force(version); err != nil {
			return fmt.Errorf("failed to force version %d: %w", version, err)
		}
		return nil
	})
}

func (r *Runner) Status() (Status, error) {
	var st Status
	err := r.with(func(m *migrate.Migrate) error {
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		st = Status{Version: v, Dirty: dirty}
		return nil
	})
	return st, err
}

// Apply brings the schema up to date. It refuses to touch a dirty database.
func (r *Runner) Apply() error {
	before, err := r.Status()
	if err != nil {
		return err
	}
	if before.Dirty {
		r.logger.Error("schema is dirty, fix the failed migration and force the version", "version", before.Version)
		return fmt.Errorf("database in dirty state at version %d", before.Version)
	}
	if err := r.Up(); err != nil {
		return err
	}
	after, err := r.Status()
	if err != nil {
		return err
	}
	r.logger.Info("schema migrated", "from_version", before.Version, "to_version", after.Version)
	return nil
}

// AutoMigrate is Apply for boot-time use.
func AutoMigrate(cfg Config) error {
	return NewRunner(cfg).Apply()
}
