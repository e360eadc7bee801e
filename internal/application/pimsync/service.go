package pimsync

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/domain/projection"
	"github.com/pimsync/backend/internal/domain/shared"
	"github.com/pimsync/backend/internal/infrastructure/logger"
	"github.com/pimsync/backend/internal/infrastructure/pim"
	"github.com/pimsync/backend/internal/infrastructure/telemetry"
)

// Config holds the run settings of a SyncService
type Config struct {
	// Options is the initial projection configuration
	Options projection.SyncOptions
	// PageSize is the default page size of listings
	PageSize int
	// MaxRunDuration stops a run between records once exceeded. Zero
	// disables the limit.
	MaxRunDuration time.Duration
}

// SyncService drives sync runs: it enumerates records from a RecordSource,
// projects each one and applies the resulting writes through a FieldWriter.
//
// Runs may overlap. Every run takes its own snapshot of the options, and the
// writes of one entity are serialized across runs.
type SyncService struct {
	source   integration.RecordSource
	writer   *integration.SerializedWriter
	runs     integration.SyncRunRepository
	events   shared.EventPublisher
	metrics  *telemetry.SyncMetrics
	mapper   *projection.FieldMapper
	pipeOpts []projection.PipelineOption
	hooks    *Hooks
	logger   *zap.Logger
	now      func() time.Time

	pageSize       int
	maxRunDuration time.Duration

	mu      sync.RWMutex
	options projection.SyncOptions
}

// Option configures a SyncService
type Option func(*SyncService)

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *SyncService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRunRepository persists run history. Without one, incremental runs
// need an explicit timestamp.
func WithRunRepository(repo integration.SyncRunRepository) Option {
	return func(s *SyncService) { s.runs = repo }
}

// WithEventPublisher publishes page, projection and run events
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(s *SyncService) { s.events = p }
}

// WithMetrics records run metrics
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(s *SyncService) { s.metrics = m }
}

// WithFieldMapper replaces the default field mapper
func WithFieldMapper(m *projection.FieldMapper) Option {
	return func(s *SyncService) {
		if m != nil {
			s.mapper = m
		}
	}
}

// WithPipelineOptions passes options to every run's pipeline
func WithPipelineOptions(opts ...projection.PipelineOption) Option {
	return func(s *SyncService) { s.pipeOpts = append(s.pipeOpts, opts...) }
}

// WithClock sets the clock used for the run deadline
func WithClock(now func() time.Time) Option {
	return func(s *SyncService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSyncService creates a SyncService
func NewSyncService(source integration.RecordSource, writer integration.FieldWriter, cfg Config, opts ...Option) *SyncService {
	sw, ok := writer.(*integration.SerializedWriter)
	if !ok {
		sw = integration.NewSerializedWriter(writer)
	}
	s := &SyncService{
		source:         source,
		writer:         sw,
		mapper:         projection.NewFieldMapper(),
		hooks:          &Hooks{},
		logger:         zap.NewNop(),
		now:            time.Now,
		pageSize:       cfg.PageSize,
		maxRunDuration: cfg.MaxRunDuration,
		options:        cfg.Options.Clone(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hooks returns the hook registry of the service
func (s *SyncService) Hooks() *Hooks {
	return s.hooks
}

// Options returns a copy of the current projection options
func (s *SyncService) Options() projection.SyncOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options.Clone()
}

// UpdateOptions replaces the projection options. Runs already in progress
// keep the snapshot they started with.
func (s *SyncService) UpdateOptions(opts projection.SyncOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = opts.Clone()
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run executes one sync run and returns its summary. The summary is returned
// together with the error when the run was aborted: the error wraps
// ErrSyncRunFailed for a listing failure and is ErrSyncRunDeadline when the
// run exceeded its maximum duration.
func (s *SyncService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = integration.SyncModeFull
	}
	if !mode.IsValid() {
		return nil, integration.ErrInvalidSyncMode
	}

	opts := s.Options()
	fieldMap, warnings := s.mapper.Resolve(opts)
	pipeline := projection.NewPipeline(opts, fieldMap, s.pipeOpts...)

	since := req.UpdatedSince
	bounded := req.OnePage || req.StartPage > 1
	if mode == integration.SyncModeIncremental {
		var watermark *time.Time
		if last := s.lastWatermark(ctx); last != nil {
			watermark = last.StartedAt
		}
		switch {
		case since == nil && watermark == nil:
			s.logger.Info("No previous complete run, falling back to full sync")
			mode = integration.SyncModeFull
		case since == nil:
			since = watermark
		case watermark == nil || since.After(*watermark):
			// records changed between the watermark and since are not covered
			bounded = true
		}
	}

	run, err := integration.NewSyncRun(mode, since)
	if err != nil {
		return nil, err
	}
	run.Bounded = bounded
	if err := run.Start(); err != nil {
		return nil, err
	}
	runID := run.ID.String()

	ctx, log := logger.WithRunID(ctx, s.logger, runID)
	ctx, span := telemetry.StartSpan(ctx, "pimsync.run",
		telemetry.WithAttribute("pimsync.run_id", runID),
		telemetry.WithAttribute("pimsync.mode", mode.String()),
	)
	defer span.End()

	for _, w := range warnings {
		log.Warn("Dropped custom field mapping",
			zap.Int("index", w.Index),
			zap.String("source", w.Source),
			zap.String("destination", w.Destination),
			zap.String("reason", w.Reason),
		)
	}
	log.Info("Sync run started",
		zap.String("mode", mode.String()),
		zap.Timep("updated_since", since),
		zap.Bool("bounded", bounded),
		zap.Int("field_map_entries", fieldMap.Len()),
	)
	s.saveRun(ctx, log, run)

	var deadline time.Time
	if s.maxRunDuration > 0 {
		deadline = s.now().Add(s.maxRunDuration)
	}

	stopErr := s.consume(ctx, log, run, pipeline, s.records(ctx, run, req, log), deadline)

	if stopErr == nil {
		run.Complete()
	} else {
		run.Abort(stopErr.Error(), string(pim.ErrorData(stopErr)))
	}

	// Persist the outcome even when the caller's context was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	s.saveRun(finishCtx, log, run)
	s.metrics.RecordRun(finishCtx, mode.String(), run.Status.String(), run.Duration())
	s.publish(finishCtx, log, integration.NewRunCompletedEvent(run))

	result := ToRunResult(run)
	s.hooks.fireRun(finishCtx, log, result)

	fields := []zap.Field{
		zap.String("status", run.Status.String()),
		zap.Int("pages", run.PagesFetched),
		zap.Int("fetched", run.RecordsFetched),
		zap.Int("projected", run.RecordsProjected),
		zap.Int("failed", run.RecordsFailed),
		zap.Int("skipped", run.RecordsSkipped),
		zap.Duration("duration", run.Duration()),
	}
	if stopErr != nil {
		telemetry.RecordError(span, stopErr)
		log.Error("Sync run aborted", append(fields, zap.Error(stopErr))...)
		return result, stopErr
	}
	telemetry.SetOK(span)
	log.Info("Sync run finished", fields...)
	return result, nil
}

// consume ranges over seq and projects each record. It returns the error
// that stopped the enumeration early, or nil when the listing was exhausted.
func (s *SyncService) consume(
	ctx context.Context,
	log *zap.Logger,
	run *integration.SyncRun,
	pipeline *projection.Pipeline,
	seq iter.Seq2[projection.Record, error],
	deadline time.Time,
) error {
	for record, err := range seq {
		if err != nil {
			return fmt.Errorf("%w: %w", integration.ErrSyncRunFailed, err)
		}
		if !deadline.IsZero() && s.now().After(deadline) {
			return integration.ErrSyncRunDeadline
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", integration.ErrSyncRunFailed, err)
		}
		s.processRecord(ctx, log, run, pipeline, record)
	}
	return nil
}

func (s *SyncService) records(ctx context.Context, run *integration.SyncRun, req RunRequest, log *zap.Logger) iter.Seq2[projection.Record, error] {
	pageSize := s.pageSize
	if req.PageSize > 0 {
		pageSize = req.PageSize
	}
	runID := run.ID.String()
	q := integration.ListQuery{
		PageSize:  pageSize,
		ReturnAll: !req.OnePage,
		StartPage: req.StartPage,
		OnPage: func(ctx context.Context, page integration.PageStats) {
			_ = run.RecordPage(page.Records)
			log.Debug("Page fetched",
				zap.String("method", page.Method),
				zap.Int("page", page.Page),
				zap.Int("total_pages", page.TotalPages),
				zap.Int("records", page.Records),
			)
			s.publish(ctx, log, integration.NewPageFetchedEvent(runID, page.Method, page.Page, page.TotalPages, page.Records))
			s.hooks.firePage(ctx, log, runID, page)
		},
	}

	switch run.Mode {
	case integration.SyncModeIncremental:
		return s.source.ProductsModifiedSince(ctx, *run.UpdatedSince, q)
	case integration.SyncModeGrouped:
		return s.source.GroupedProducts(ctx, q)
	default:
		return s.source.Products(ctx, q)
	}
}

func (s *SyncService) processRecord(
	ctx context.Context,
	log *zap.Logger,
	run *integration.SyncRun,
	pipeline *projection.Pipeline,
	record projection.Record,
) {
	var (
		entityID string
		ok       bool
		result   projection.Result
	)
	if run.Mode == integration.SyncModeGrouped {
		entityID, ok = projection.GroupEntityID(record)
	} else {
		entityID, ok = projection.EntityID(record)
	}
	if !ok {
		_ = run.RecordSkipped()
		log.Debug("Record has no identifier, skipped")
		return
	}

	if run.Mode == integration.SyncModeGrouped {
		result = pipeline.ProjectGroup(record)
	} else {
		result = pipeline.Project(record)
	}

	written, err := s.apply(ctx, entityID, result)
	if err != nil {
		_ = run.RecordFailure(entityID, err)
		log.Warn("Failed to write projected fields",
			zap.String("entity_id", entityID),
			zap.Int("written", written),
			zap.Error(err),
		)
		return
	}

	_ = run.RecordProjected(written)
	s.metrics.RecordProjected(ctx, run.Mode.String(), written)
	s.publish(ctx, log, integration.NewProjectionCompletedEvent(run.ID.String(), entityID, result.Names()))
	s.hooks.fireRecord(ctx, log, run.ID.String(), entityID, result)
}

// apply writes result under the entity lock and stops at the first failure
func (s *SyncService) apply(ctx context.Context, entityID string, result projection.Result) (int, error) {
	written := 0
	err := s.writer.WithEntity(entityID, func(w integration.FieldWriter) error {
		for _, fw := range result {
			if err := w.WriteField(ctx, entityID, fw.Name, fw.Value); err != nil {
				return fmt.Errorf("write %s: %w", fw.Name, err)
			}
			written++
		}
		return nil
	})
	return written, err
}

// lastWatermark returns the latest complete successful run, or nil
func (s *SyncService) lastWatermark(ctx context.Context) *integration.SyncRun {
	if s.runs == nil {
		return nil
	}
	last, err := s.runs.LastWatermark(ctx)
	if err != nil {
		if !errors.Is(err, integration.ErrSyncRunNotFound) {
			s.logger.Warn("Failed to load last complete run", zap.Error(err))
		}
		return nil
	}
	return last
}

func (s *SyncService) saveRun(ctx context.Context, log *zap.Logger, run *integration.SyncRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Save(ctx, run); err != nil {
		log.Warn("Failed to save sync run", zap.Error(err))
	}
}

func (s *SyncService) publish(ctx context.Context, log *zap.Logger, event shared.DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Warn("Failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

// ListRuns returns the most recent runs, newest first
func (s *SyncService) ListRuns(ctx context.Context, limit int) ([]*RunResult, error) {
	if s.runs == nil {
		return []*RunResult{}, nil
	}
	runs, err := s.runs.FindRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return ToRunResults(runs), nil
}

// GetRun returns one run by id
func (s *SyncService) GetRun(ctx context.Context, id uuid.UUID) (*RunResult, error) {
	if s.runs == nil {
		return nil, integration.ErrSyncRunNotFound
	}
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToRunResult(run), nil
}
