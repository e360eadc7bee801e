package pimsync

import (
	"time"

	"github.com/google/uuid"

	"github.com/pimsync/backend/internal/domain/integration"
)

// RunRequest starts one sync run
type RunRequest struct {
	// Mode defaults to FULL
	Mode integration.SyncMode
	// UpdatedSince bounds an INCREMENTAL run. When nil, the start time of the
	// last complete successful FULL or INCREMENTAL run is used; without one
	// the run is FULL.
	UpdatedSince *time.Time
	// OnePage fetches only the first requested page. The zero value walks
	// every page the remote reports. One-page runs are bounded and never
	// serve as the starting point of a later incremental run.
	OnePage bool
	// StartPage resumes an enumeration; zero means the first page
	StartPage int
	// PageSize overrides the configured page size when positive
	PageSize int
}

// RunResult summarizes a finished run
type RunResult struct {
	RunID        uuid.UUID                 `json:"run_id"`
	Mode         integration.SyncMode      `json:"mode"`
	Status       integration.SyncStatus    `json:"status"`
	Bounded      bool                      `json:"bounded"`
	UpdatedSince *time.Time                `json:"updated_since,omitempty"`
	StartedAt    *time.Time                `json:"started_at,omitempty"`
	FinishedAt   *time.Time                `json:"finished_at,omitempty"`
	Duration     time.Duration             `json:"duration_ns"`
	Pages        int                       `json:"pages"`
	Fetched      int                       `json:"fetched"`
	Projected    int                       `json:"projected"`
	Written      int                       `json:"fields_written"`
	Failed       int                       `json:"failed"`
	Skipped      int                       `json:"skipped"`
	FailedItems  []integration.SyncFailure `json:"failed_items,omitempty"`
	Error        string                    `json:"error,omitempty"`
	ErrorData    string                    `json:"error_data,omitempty"`
}

// ToRunResult converts a SyncRun to its summary
func ToRunResult(run *integration.SyncRun) *RunResult {
	failures := make([]integration.SyncFailure, len(run.Failures))
	copy(failures, run.Failures)
	return &RunResult{
		RunID:        run.ID,
		Mode:         run.Mode,
		Status:       run.Status,
		Bounded:      run.Bounded,
		UpdatedSince: run.UpdatedSince,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Duration:     run.Duration(),
		Pages:        run.PagesFetched,
		Fetched:      run.RecordsFetched,
		Projected:    run.RecordsProjected,
		Written:      run.FieldsWritten,
		Failed:       run.RecordsFailed,
		Skipped:      run.RecordsSkipped,
		FailedItems:  failures,
		Error:        run.ErrorMessage,
		ErrorData:    run.ErrorData,
	}
}

// ToRunResults converts a list of runs
func ToRunResults(runs []integration.SyncRun) []*RunResult {
	out := make([]*RunResult, len(runs))
	for i := range runs {
		out[i] = ToRunResult(&runs[i])
	}
	return out
}
