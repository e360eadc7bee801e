package integration

import "errors"

var (
	// ErrEmptyEntityID is returned when a field write has no entity id
	ErrEmptyEntityID = errors.New("integration: entity id cannot be empty")
	// ErrEmptyFieldName is returned when a field write has no field name
	ErrEmptyFieldName = errors.New("integration: field name cannot be empty")
	// ErrFieldValueEncoding is returned when a field value cannot be encoded
	ErrFieldValueEncoding = errors.New("integration: field value cannot be encoded")
	// ErrFieldStoreUnavailable is returned when the backing store cannot be reached
	ErrFieldStoreUnavailable = errors.New("integration: field store unavailable")
	// ErrSyncRunNotFound is returned when a sync run does not exist
	ErrSyncRunNotFound = errors.New("integration: sync run not found")
	// ErrInvalidSyncMode is returned for an unknown sync mode
	ErrInvalidSyncMode = errors.New("integration: invalid sync mode")
	// ErrSyncRunNotRunning is returned when recording progress on a run that is not in progress
	ErrSyncRunNotRunning = errors.New("integration: sync run is not in progress")
	// ErrSyncRunFailed wraps the error that ended a run early
	ErrSyncRunFailed = errors.New("integration: sync run failed")
	// ErrSyncRunDeadline is returned when a run exceeds its maximum duration
	ErrSyncRunDeadline = errors.New("integration: sync run deadline exceeded")
	// ErrSyncRunAlreadyStarted is returned when starting a run twice
	ErrSyncRunAlreadyStarted = errors.New("integration: sync run already started")
)
