package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/infrastructure/config"
	"github.com/pimsync/backend/internal/infrastructure/persistence"
)

// FieldStoreFactory creates the field store selected by configuration
type FieldStoreFactory struct {
	storeType             string
	redisConfig           config.RedisConfig
	db                    *gorm.DB
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// FieldStoreFactoryOption is a functional option for configuring the factory
type FieldStoreFactoryOption func(*FieldStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FieldStoreFactoryOption {
	return func(f *FieldStoreFactory) {
		f.logger = logger
	}
}

// WithDatabase makes the structured store available to the factory
func WithDatabase(db *gorm.DB) FieldStoreFactoryOption {
	return func(f *FieldStoreFactory) {
		f.db = db
	}
}

// WithInMemoryFallback controls whether "auto" may end on the in-memory store.
// Default is true.
func WithInMemoryFallback(allow bool) FieldStoreFactoryOption {
	return func(f *FieldStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFieldStoreFactory creates a new factory
func NewFieldStoreFactory(store config.StoreConfig, redisCfg config.RedisConfig, opts ...FieldStoreFactoryOption) *FieldStoreFactory {
	f := &FieldStoreFactory{
		storeType:             store.Type,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateDatabaseStore creates the gorm-backed store after checking the connection
func (f *FieldStoreFactory) CreateDatabaseStore(ctx context.Context) (integration.FieldStore, error) {
	if f.db == nil {
		return nil, fmt.Errorf("%w: no database configured", integration.ErrFieldStoreUnavailable)
	}
	store := persistence.NewGormFieldStore(f.db)
	ctx, cancel := context.WithTimeout(ctx, f.pingTimeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// CreateRedisStore creates a Redis-based field store
func (f *FieldStoreFactory) CreateRedisStore() (integration.FieldStore, error) {
	store, err := NewRedisFieldStore(f.redisConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrFieldStoreUnavailable, err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory field store.
// WARNING: fields written here are lost when the process exits.
func (f *FieldStoreFactory) CreateInMemoryStore() integration.FieldStore {
	return NewInMemoryFieldStore()
}

// CreateStore creates the configured store. "auto" prefers the database,
// then Redis, then memory when fallback is allowed.
func (f *FieldStoreFactory) CreateStore(ctx context.Context) (integration.FieldStore, error) {
	switch f.storeType {
	case config.StoreDatabase:
		return f.CreateDatabaseStore(ctx)
	case config.StoreRedis:
		return f.CreateRedisStore()
	case config.StoreMemory:
		f.logger.Warn("using in-memory field store, fields are not persisted")
		return f.CreateInMemoryStore(), nil
	case config.StoreAuto, "":
		return f.createAuto(ctx)
	default:
		return nil, fmt.Errorf("unknown field store type %q", f.storeType)
	}
}

func (f *FieldStoreFactory) createAuto(ctx context.Context) (integration.FieldStore, error) {
	store, dbErr := f.CreateDatabaseStore(ctx)
	if dbErr == nil {
		f.logger.Info("using database field store")
		return store, nil
	}

	store, redisErr := f.CreateRedisStore()
	if redisErr == nil {
		f.logger.Warn("database unavailable, falling back to Redis field store", zap.Error(dbErr))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("no field store available: database: %v; redis: %w", dbErr, redisErr)
	}

	f.logger.Warn("database and Redis unavailable, falling back to in-memory field store. "+
		"Projected fields will not survive a restart.",
		zap.NamedError("database_error", dbErr),
		zap.NamedError("redis_error", redisErr),
	)
	return f.CreateInMemoryStore(), nil
}
