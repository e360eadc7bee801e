package pimsync

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/domain/projection"
)

// PageHook is called after each page of a run is fetched
type PageHook func(ctx context.Context, runID string, page integration.PageStats) error

// RecordHook is called after a record's writes were all applied
type RecordHook func(ctx context.Context, runID, entityID string, result projection.Result) error

// RunHook is called once a run reached a terminal status
type RunHook func(ctx context.Context, result *RunResult) error

// Hooks holds extension points invoked during runs. Hooks run in
// registration order; their errors and panics are logged and never change
// the outcome of a run.
type Hooks struct {
	mu      sync.RWMutex
	pages   []PageHook
	records []RecordHook
	runs    []RunHook
}

// OnPageFetched registers a page hook
func (h *Hooks) OnPageFetched(fn PageHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages = append(h.pages, fn)
}

// OnRecordProjected registers a record hook
func (h *Hooks) OnRecordProjected(fn RecordHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, fn)
}

// OnRunCompleted registers a run hook
func (h *Hooks) OnRunCompleted(fn RunHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, fn)
}

func (h *Hooks) firePage(ctx context.Context, log *zap.Logger, runID string, page integration.PageStats) {
	h.mu.RLock()
	hooks := h.pages
	h.mu.RUnlock()
	for i, fn := range hooks {
		invokeHook(log, "page_fetched", i, func() error { return fn(ctx, runID, page) })
	}
}

func (h *Hooks) fireRecord(ctx context.Context, log *zap.Logger, runID, entityID string, result projection.Result) {
	h.mu.RLock()
	hooks := h.records
	h.mu.RUnlock()
	for i, fn := range hooks {
		invokeHook(log, "record_projected", i, func() error { return fn(ctx, runID, entityID, result) })
	}
}

func (h *Hooks) fireRun(ctx context.Context, log *zap.Logger, result *RunResult) {
	h.mu.RLock()
	hooks := h.runs
	h.mu.RUnlock()
	for i, fn := range hooks {
		invokeHook(log, "run_completed", i, func() error { return fn(ctx, result) })
	}
}

func invokeHook(log *zap.Logger, name string, index int, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Sync hook panicked",
				zap.String("hook", name),
				zap.Int("index", index),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := fn(); err != nil {
		log.Warn("Sync hook failed",
			zap.String("hook", name),
			zap.Int("index", index),
			zap.Error(err),
		)
	}
}
