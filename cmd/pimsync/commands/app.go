package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/pimsync/backend/internal/application/pimsync"
	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/infrastructure/cache"
	"github.com/pimsync/backend/internal/infrastructure/config"
	"github.com/pimsync/backend/internal/infrastructure/event"
	"github.com/pimsync/backend/internal/infrastructure/logger"
	"github.com/pimsync/backend/internal/infrastructure/migration"
	"github.com/pimsync/backend/internal/infrastructure/persistence"
	"github.com/pimsync/backend/internal/infrastructure/pim"
	"github.com/pimsync/backend/internal/infrastructure/telemetry"
	"github.com/pimsync/backend/internal/interfaces/http/handler"
)

// ConfigPath is set by the --config flag of the root command
var ConfigPath string

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env)), nil
}

// app holds the wired components shared by the run and serve commands
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *persistence.Database
	store   integration.FieldStore
	bus     *event.InMemoryEventBus
	service *pimsync.SyncService
	closers []func() error
}

// bootstrap wires configuration, storage, the PIM client and the sync
// service. The database is optional unless it is the configured field
// store: without it run history is not kept.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() error {
		_ = log.Sync()
		return nil
	})

	db, err := openDatabase(cfg, log)
	if err != nil {
		if cfg.Store.Type == config.StoreDatabase {
			a.close()
			return nil, err
		}
		log.Warn("Database unavailable, sync run history is disabled", zap.Error(err))
	} else {
		a.db = db
		a.closers = append(a.closers, db.Close)
	}

	factoryOpts := []cache.FieldStoreFactoryOption{cache.WithLogger(log)}
	if a.db != nil {
		factoryOpts = append(factoryOpts, cache.WithDatabase(a.db.DB))
	}
	store, err := cache.NewFieldStoreFactory(cfg.Store, cfg.Redis, factoryOpts...).CreateStore(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create field store: %w", err)
	}
	a.store = store
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	log.Info("Field store ready", zap.String("store", store.Name()))

	metrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  otel.GetMeterProvider().Meter("pimsync"),
		Logger: log,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	client, err := pim.NewClient(cfg.PIMClientConfig(), pim.WithLogger(log))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create PIM client: %w", err)
	}
	paginator := pim.NewPaginator(client,
		pim.WithPaginatorLogger(log),
		pim.WithRetry(cfg.PIM.RetryAttempts, cfg.PIM.RetryDelay),
		pim.WithPageObserver(func(ctx context.Context, info pim.PageInfo) {
			metrics.RecordPage(ctx, info.Method)
		}),
	)
	source := pim.NewSource(paginator).WithModifiedField(cfg.PIM.ModifiedField)

	a.bus = event.NewInMemoryEventBus(log)
	a.bus.Subscribe(event.NewLoggingHandler(log))
	a.closers = append(a.closers, func() error { return a.bus.Stop(context.Background()) })

	opts := []pimsync.Option{
		pimsync.WithLogger(log),
		pimsync.WithEventPublisher(a.bus),
		pimsync.WithMetrics(metrics),
	}
	if a.db != nil {
		opts = append(opts, pimsync.WithRunRepository(persistence.NewGormSyncRunRepository(a.db.DB)))
	}
	a.service = pimsync.NewSyncService(source, store, pimsync.Config{
		Options:        cfg.SyncOptions(),
		PageSize:       cfg.Sync.PageSize,
		MaxRunDuration: cfg.Sync.MaxRunDuration,
	}, opts...)

	return a, nil
}

func openDatabase(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithDatabaseLogger(log),
		persistence.WithSlowQueryThreshold(cfg.Telemetry.DBSlowQueryThresh),
		persistence.WithDBTracing(cfg.DBTracingConfig()),
	)
	if err != nil {
		return nil, err
	}
	if err := migrateSchema(cfg, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// migrateSchema brings the schema up to date: sqlite through the models,
// postgres through the embedded SQL migrations
func migrateSchema(cfg *config.Config, db *persistence.Database, log *zap.Logger) error {
	if db.Driver() == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
		return nil
	}

	// The migrator owns and closes its own connection.
	m, err := migration.NewFromURL(cfg.Database.DSN(), "", log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}

// close runs the closers in reverse order
func (a *app) close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("Error during shutdown", zap.Error(err))
	}
}

// healthChecks lists the dependencies probed by /health
func (a *app) healthChecks() []handler.HealthCheck {
	checks := []handler.HealthCheck{{Name: "store:" + a.store.Name(), Pinger: a.store}}
	if a.db != nil {
		checks = append(checks, handler.HealthCheck{Name: "database", Pinger: a.db})
	}
	return checks
}
