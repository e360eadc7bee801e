package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/domain/shared"
)

// SyncRunModel is the persistence model for the SyncRun domain entity
type SyncRunModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	Mode             string    `gorm:"type:varchar(20);not null;index:idx_sync_runs_mode_status,priority:1"`
	Status           string    `gorm:"type:varchar(20);not null;index:idx_sync_runs_mode_status,priority:2"`
	UpdatedSince     *time.Time
	StartedAt        *time.Time `gorm:"index"`
	FinishedAt       *time.Time
	Bounded          bool      `gorm:"not null;default:false"`
	PagesFetched     int       `gorm:"not null;default:0"`
	RecordsFetched   int       `gorm:"not null;default:0"`
	RecordsProjected int       `gorm:"not null;default:0"`
	RecordsFailed    int       `gorm:"not null;default:0"`
	RecordsSkipped   int       `gorm:"not null;default:0"`
	FieldsWritten    int       `gorm:"not null;default:0"`
	ErrorMessage     string    `gorm:"type:text"`
	ErrorData        string    `gorm:"type:text"`
	FailuresJSON     string    `gorm:"type:jsonb;column:failures"`
	CreatedAt        time.Time `gorm:"not null;index"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the persistence model to a domain SyncRun
func (m *SyncRunModel) ToDomain() *integration.SyncRun {
	run := &integration.SyncRun{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Mode:             integration.SyncMode(m.Mode),
		Status:           integration.SyncStatus(m.Status),
		UpdatedSince:     m.UpdatedSince,
		StartedAt:        m.StartedAt,
		FinishedAt:       m.FinishedAt,
		Bounded:          m.Bounded,
		PagesFetched:     m.PagesFetched,
		RecordsFetched:   m.RecordsFetched,
		RecordsProjected: m.RecordsProjected,
		RecordsFailed:    m.RecordsFailed,
		RecordsSkipped:   m.RecordsSkipped,
		FieldsWritten:    m.FieldsWritten,
		ErrorMessage:     m.ErrorMessage,
		ErrorData:        m.ErrorData,
		Failures:         []integration.SyncFailure{},
	}
	if m.FailuresJSON != "" {
		var failures []integration.SyncFailure
		if err := json.Unmarshal([]byte(m.FailuresJSON), &failures); err == nil && failures != nil {
			run.Failures = failures
		}
	}
	return run
}

// SyncRunModelFromDomain creates a persistence model from a domain SyncRun
func SyncRunModelFromDomain(run *integration.SyncRun) *SyncRunModel {
	m := &SyncRunModel{
		ID:               run.ID,
		Mode:             string(run.Mode),
		Status:           string(run.Status),
		UpdatedSince:     run.UpdatedSince,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
		Bounded:          run.Bounded,
		PagesFetched:     run.PagesFetched,
		RecordsFetched:   run.RecordsFetched,
		RecordsProjected: run.RecordsProjected,
		RecordsFailed:    run.RecordsFailed,
		RecordsSkipped:   run.RecordsSkipped,
		FieldsWritten:    run.FieldsWritten,
		ErrorMessage:     run.ErrorMessage,
		ErrorData:        run.ErrorData,
		FailuresJSON:     "[]",
		CreatedAt:        run.CreatedAt,
		UpdatedAt:        run.UpdatedAt,
	}
	if len(run.Failures) > 0 {
		if data, err := json.Marshal(run.Failures); err == nil {
			m.FailuresJSON = string(data)
		}
	}
	return m
}
