package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pimsync/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Sync Mode
// ---------------------------------------------------------------------------

// SyncMode selects which remote listing a run enumerates
type SyncMode string

const (
	// SyncModeFull enumerates every product
	SyncModeFull SyncMode = "FULL"
	// SyncModeIncremental enumerates products modified since a timestamp
	SyncModeIncremental SyncMode = "INCREMENTAL"
	// SyncModeGrouped enumerates grouped products
	SyncModeGrouped SyncMode = "GROUPED"
)

// IsValid returns true if the mode is known
func (m SyncMode) IsValid() bool {
	switch m {
	case SyncModeFull, SyncModeIncremental, SyncModeGrouped:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncMode
func (m SyncMode) String() string {
	return string(m)
}

// ParseSyncMode parses a mode name case-insensitively. An empty string is
// FULL.
func ParseSyncMode(s string) (SyncMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SyncModeFull, nil
	}
	m := SyncMode(strings.ToUpper(s))
	if !m.IsValid() {
		return "", ErrInvalidSyncMode
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Sync Status
// ---------------------------------------------------------------------------

// SyncStatus represents the status of a sync run
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "PENDING"
	SyncStatusInProgress SyncStatus = "IN_PROGRESS"
	SyncStatusSuccess    SyncStatus = "SUCCESS"
	SyncStatusPartial    SyncStatus = "PARTIAL"
	SyncStatusFailed     SyncStatus = "FAILED"
)

// IsTerminal returns true when the run has finished
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusSuccess || s == SyncStatusPartial || s == SyncStatusFailed
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Sync Run
// ---------------------------------------------------------------------------

// SyncFailure records one entity that could not be written
type SyncFailure struct {
	EntityID     string `json:"entity_id"`
	ErrorMessage string `json:"error_message"`
}

// maxRecordedFailures caps the failure list kept on a run
const maxRecordedFailures = 100

// SyncRun is one execution of the sync engine
type SyncRun struct {
	shared.BaseEntity
	Mode         SyncMode
	Status       SyncStatus
	UpdatedSince *time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	// Bounded runs covered only part of the catalog history: a single page,
	// a later start page, or a modified-since window that does not reach back
	// to the previous complete run. They never start a later incremental run.
	Bounded bool

	PagesFetched     int
	RecordsFetched   int
	RecordsProjected int
	RecordsFailed    int
	RecordsSkipped   int
	FieldsWritten    int

	// ErrorMessage and ErrorData describe the error that aborted the run
	ErrorMessage string
	ErrorData    string
	Failures     []SyncFailure
}

// NewSyncRun creates a pending run
func NewSyncRun(mode SyncMode, updatedSince *time.Time) (*SyncRun, error) {
	if !mode.IsValid() {
		return nil, ErrInvalidSyncMode
	}
	return &SyncRun{
		BaseEntity:   shared.NewBaseEntity(),
		Mode:         mode,
		Status:       SyncStatusPending,
		UpdatedSince: updatedSince,
		Failures:     []SyncFailure{},
	}, nil
}

// Start moves the run to IN_PROGRESS
func (r *SyncRun) Start() error {
	if r.Status != SyncStatusPending {
		return ErrSyncRunAlreadyStarted
	}
	now := time.Now()
	r.Status = SyncStatusInProgress
	r.StartedAt = &now
	r.Touch()
	return nil
}

// RecordPage counts one fetched page and its records
func (r *SyncRun) RecordPage(records int) error {
	if r.Status != SyncStatusInProgress {
		return ErrSyncRunNotRunning
	}
	r.PagesFetched++
	r.RecordsFetched += records
	return nil
}

// RecordProjected counts one record whose writes were all applied
func (r *SyncRun) RecordProjected(fieldsWritten int) error {
	if r.Status != SyncStatusInProgress {
		return ErrSyncRunNotRunning
	}
	r.RecordsProjected++
	r.FieldsWritten += fieldsWritten
	return nil
}

// RecordFailure counts one record whose writes failed
func (r *SyncRun) RecordFailure(entityID string, err error) error {
	if r.Status != SyncStatusInProgress {
		return ErrSyncRunNotRunning
	}
	r.RecordsFailed++
	if len(r.Failures) < maxRecordedFailures {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		r.Failures = append(r.Failures, SyncFailure{EntityID: entityID, ErrorMessage: msg})
	}
	return nil
}

// RecordSkipped counts one record that had no destination entity id
func (r *SyncRun) RecordSkipped() error {
	if r.Status != SyncStatusInProgress {
		return ErrSyncRunNotRunning
	}
	r.RecordsSkipped++
	return nil
}

// Complete finishes the run: SUCCESS without failures, PARTIAL when some
// records failed, FAILED when every fetched record failed
func (r *SyncRun) Complete() {
	switch {
	case r.RecordsFailed == 0:
		r.Status = SyncStatusSuccess
	case r.RecordsProjected > 0:
		r.Status = SyncStatusPartial
	default:
		r.Status = SyncStatusFailed
	}
	r.finish()
}

// Abort finishes a run that stopped before the listing was exhausted.
// Progress already made is kept: the run is PARTIAL when at least one record
// was projected, FAILED otherwise.
func (r *SyncRun) Abort(message, data string) {
	if r.RecordsProjected > 0 {
		r.Status = SyncStatusPartial
	} else {
		r.Status = SyncStatusFailed
	}
	r.ErrorMessage = message
	r.ErrorData = data
	r.finish()
}

// IsWatermark reports whether a later incremental run may start from this
// run's start time: it succeeded and enumerated the whole product listing
func (r *SyncRun) IsWatermark() bool {
	return r.Status == SyncStatusSuccess && !r.Bounded && r.StartedAt != nil &&
		(r.Mode == SyncModeFull || r.Mode == SyncModeIncremental)
}

func (r *SyncRun) finish() {
	now := time.Now()
	r.FinishedAt = &now
	r.Touch()
}

// Duration returns the elapsed run time, zero when not started
func (r *SyncRun) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	return end.Sub(*r.StartedAt)
}

// ---------------------------------------------------------------------------
// Repository
// ---------------------------------------------------------------------------

// SyncRunRepository persists sync run history
type SyncRunRepository interface {
	Save(ctx context.Context, run *SyncRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	// FindRecent returns the latest runs, newest first
	FindRecent(ctx context.Context, limit int) ([]SyncRun, error)
	// LastWatermark returns the most recently started run for which
	// IsWatermark holds, or ErrSyncRunNotFound
	LastWatermark(ctx context.Context) (*SyncRun, error)
}
