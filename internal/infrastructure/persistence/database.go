package persistence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pimsync/backend/internal/infrastructure/config"
	"github.com/pimsync/backend/internal/infrastructure/logger"
	"github.com/pimsync/backend/internal/infrastructure/persistence/models"
	"github.com/pimsync/backend/internal/infrastructure/telemetry"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB     *gorm.DB
	driver string
}

type databaseOptions struct {
	logger        *zap.Logger
	slowThreshold time.Duration
	tracing       telemetry.DBTracingConfig
}

// DatabaseOption configures NewDatabase
type DatabaseOption func(*databaseOptions)

// WithDatabaseLogger routes GORM logs through zap
func WithDatabaseLogger(l *zap.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = l
	}
}

// WithSlowQueryThreshold sets the slow query warning threshold
func WithSlowQueryThreshold(d time.Duration) DatabaseOption {
	return func(o *databaseOptions) {
		o.slowThreshold = d
	}
}

// WithDBTracing registers the otelgorm plugin with the given settings
func WithDBTracing(cfg telemetry.DBTracingConfig) DatabaseOption {
	return func(o *databaseOptions) {
		o.tracing = cfg
	}
}

// NewDatabase opens a postgres or sqlite connection with the given configuration
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	o := databaseOptions{
		logger:        zap.NewNop(),
		slowThreshold: 200 * time.Millisecond,
		tracing:       telemetry.DefaultDBTracingConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormLogger := logger.NewGormLogger(o.logger, logger.MapGormLogLevel(cfg.LogLevel),
		logger.WithSlowThreshold(o.slowThreshold),
		logger.WithParameterizedQueries(o.tracing.WithoutVariables))

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// a sqlite database, in-memory ones especially, lives on one connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := telemetry.RegisterDBTracing(db, o.tracing, o.logger); err != nil {
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	return &Database{DB: db, driver: cfg.Driver}, nil
}

// AutoMigrate creates the field store and run history tables from the models.
// Postgres deployments use the SQL migrations instead.
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(&models.EntityFieldModel{}, &models.SyncRunModel{})
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Driver returns the configured driver name
func (d *Database) Driver() string {
	return d.driver
}
