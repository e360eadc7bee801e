package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM statements through zap. Entries carry the sync
// run id and trace ids found in the statement context, so field writes
// and run history queries can be correlated with the run that issued them.
type GormLogger struct {
	logger        *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	ignoreMissing bool
	parameterized bool
}

var (
	_ gormlogger.Interface = (*GormLogger)(nil)
	_ gorm.ParamsFilter    = (*GormLogger)(nil)
)

// GormLoggerOption is a function that configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow query threshold, 0 disables slow query warnings
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowThreshold = threshold
	}
}

// WithIgnoreRecordNotFoundError configures whether to ignore record not found errors
func WithIgnoreRecordNotFoundError(ignore bool) GormLoggerOption {
	return func(l *GormLogger) {
		l.ignoreMissing = ignore
	}
}

// WithParameterizedQueries keeps bind placeholders in logged SQL instead of
// the bound values. Projected field values then never reach the log.
func WithParameterizedQueries(on bool) GormLoggerOption {
	return func(l *GormLogger) {
		l.parameterized = on
	}
}

// NewGormLogger creates a new GORM logger backed by zap
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	gl := &GormLogger{
		logger:        zapLogger.Named("gorm"),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
		ignoreMissing: true,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// ParamsFilter implements gorm.ParamsFilter
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, params ...any) (string, []any) {
	if l.parameterized {
		return sql, nil
	}
	return sql, params
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Info(fmt.Sprintf(msg, data...), l.contextFields(ctx)...)
	}
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, data...), l.contextFields(ctx)...)
	}
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Error(fmt.Sprintf(msg, data...), l.contextFields(ctx)...)
	}
}

// Trace implements gormlogger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if err != nil && l.ignoreMissing && errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
		if l.level < gormlogger.Info {
			return
		}
	}

	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	var (
		lvl func(string, ...zap.Field)
		msg string
	)
	switch {
	case err != nil && l.level >= gormlogger.Error:
		lvl, msg = l.logger.Error, "SQL failed"
	case slow && l.level >= gormlogger.Warn:
		lvl, msg = l.logger.Warn, fmt.Sprintf("Slow SQL over %v", l.slowThreshold)
	case l.level >= gormlogger.Info:
		lvl, msg = l.logger.Debug, "SQL"
	default:
		return
	}

	sql, rows := fc()
	fields := append(l.contextFields(ctx),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	lvl(msg, fields...)
}

func (l *GormLogger) contextFields(ctx context.Context) []zap.Field {
	fields := TraceFields(ctx)
	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	return fields
}

// MapGormLogLevel maps the database.log_level setting to a GORM log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
