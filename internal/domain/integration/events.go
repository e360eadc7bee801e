package integration

import (
	"github.com/pimsync/backend/internal/domain/shared"
)

// Aggregate types used by sync events
const (
	AggregateTypeSyncRun = "SyncRun"
	AggregateTypeEntity  = "Entity"
)

// Event types published during a sync run
const (
	EventTypePageFetched         = "pimsync.page.fetched"
	EventTypeProjectionCompleted = "pimsync.projection.completed"
	EventTypeRunCompleted        = "pimsync.run.completed"
)

// PageFetchedEvent is published after each page is fetched
type PageFetchedEvent struct {
	shared.BaseDomainEvent
	RunID       string `json:"run_id"`
	Method      string `json:"method"`
	Page        int    `json:"page"`
	TotalPages  int    `json:"total_pages"`
	RecordCount int    `json:"record_count"`
}

// NewPageFetchedEvent creates a PageFetchedEvent
func NewPageFetchedEvent(runID, method string, page, totalPages, records int) *PageFetchedEvent {
	return &PageFetchedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePageFetched, AggregateTypeSyncRun, runID),
		RunID:           runID,
		Method:          method,
		Page:            page,
		TotalPages:      totalPages,
		RecordCount:     records,
	}
}

// ProjectionCompletedEvent is published after one record is fully projected
// and its writes applied
type ProjectionCompletedEvent struct {
	shared.BaseDomainEvent
	RunID      string   `json:"run_id"`
	EntityID   string   `json:"entity_id"`
	FieldNames []string `json:"field_names"`
}

// NewProjectionCompletedEvent creates a ProjectionCompletedEvent
func NewProjectionCompletedEvent(runID, entityID string, fieldNames []string) *ProjectionCompletedEvent {
	return &ProjectionCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProjectionCompleted, AggregateTypeEntity, entityID),
		RunID:           runID,
		EntityID:        entityID,
		FieldNames:      fieldNames,
	}
}

// RunCompletedEvent is published when a run reaches a terminal status
type RunCompletedEvent struct {
	shared.BaseDomainEvent
	RunID            string     `json:"run_id"`
	Mode             SyncMode   `json:"mode"`
	Status           SyncStatus `json:"status"`
	RecordsProjected int        `json:"records_projected"`
	RecordsFailed    int        `json:"records_failed"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// NewRunCompletedEvent creates a RunCompletedEvent from a finished run
func NewRunCompletedEvent(run *SyncRun) *RunCompletedEvent {
	id := run.ID.String()
	return &RunCompletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeRunCompleted, AggregateTypeSyncRun, id),
		RunID:            id,
		Mode:             run.Mode,
		Status:           run.Status,
		RecordsProjected: run.RecordsProjected,
		RecordsFailed:    run.RecordsFailed,
		ErrorMessage:     run.ErrorMessage,
	}
}
