package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/domain/shared"
)

// LoggingHandler writes sync events to the log: run completions at info,
// per-page and per-record events at debug
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a LoggingHandler subscribed to every sync event
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingHandler{logger: logger.Named("sync_events")}
}

// EventTypes implements shared.EventHandler
func (h *LoggingHandler) EventTypes() []string {
	return []string{
		integration.EventTypePageFetched,
		integration.EventTypeProjectionCompleted,
		integration.EventTypeRunCompleted,
	}
}

// Handle implements shared.EventHandler
func (h *LoggingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *integration.PageFetchedEvent:
		h.logger.Debug("page fetched",
			zap.String("run_id", e.RunID),
			zap.String("method", e.Method),
			zap.Int("page", e.Page),
			zap.Int("total_pages", e.TotalPages),
			zap.Int("records", e.RecordCount),
		)
	case *integration.ProjectionCompletedEvent:
		h.logger.Debug("projection completed",
			zap.String("run_id", e.RunID),
			zap.String("entity_id", e.EntityID),
			zap.Int("fields", len(e.FieldNames)),
		)
	case *integration.RunCompletedEvent:
		fields := []zap.Field{
			zap.String("run_id", e.RunID),
			zap.String("mode", e.Mode.String()),
			zap.String("status", e.Status.String()),
			zap.Int("projected", e.RecordsProjected),
			zap.Int("failed", e.RecordsFailed),
		}
		if e.ErrorMessage != "" {
			fields = append(fields, zap.String("error", e.ErrorMessage))
		}
		if e.Status == integration.SyncStatusSuccess {
			h.logger.Info("sync run completed", fields...)
		} else {
			h.logger.Warn("sync run completed", fields...)
		}
	default:
		h.logger.Debug("event",
			zap.String("event_type", event.EventType()),
			zap.String("aggregate_id", event.AggregateID()),
		)
	}
	return nil
}
