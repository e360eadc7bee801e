package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled bool
	// DBSystem is the database system name reported on spans
	DBSystem string
	// WithoutVariables excludes query variables from span statements
	WithoutVariables bool
}

// DefaultDBTracingConfig returns tracing disabled, variables hidden
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:          false,
		DBSystem:         "postgresql",
		WithoutVariables: true,
	}
}

// RegisterDBTracing registers the otelgorm plugin on db when enabled
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(cfg.DBSystem),
	}
	if cfg.WithoutVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("Database tracing enabled", zap.String("db_system", cfg.DBSystem))
	return nil
}
