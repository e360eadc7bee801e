package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pimsync/backend/internal/application/pimsync"
	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/domain/projection"
	"github.com/pimsync/backend/internal/infrastructure/logger"
	"github.com/pimsync/backend/internal/interfaces/http/dto"
)

// SyncRunner is the part of pimsync.SyncService used by the HTTP API
type SyncRunner interface {
	Run(ctx context.Context, req pimsync.RunRequest) (*pimsync.RunResult, error)
	ListRuns(ctx context.Context, limit int) ([]*pimsync.RunResult, error)
	GetRun(ctx context.Context, id uuid.UUID) (*pimsync.RunResult, error)
	Options() projection.SyncOptions
	UpdateOptions(opts projection.SyncOptions)
}

const defaultListLimit = 20

// SyncHandler exposes sync runs and options over HTTP
type SyncHandler struct {
	BaseHandler
	runner SyncRunner
	guards []gin.HandlerFunc
}

// NewSyncHandler creates a SyncHandler. guards run before the endpoint
// that starts a run.
func NewSyncHandler(runner SyncRunner, guards ...gin.HandlerFunc) *SyncHandler {
	return &SyncHandler{runner: runner, guards: guards}
}

// RegisterRoutes registers the sync routes under rg
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/sync")
	g.POST("/runs", append(append([]gin.HandlerFunc{}, h.guards...), h.StartRun)...)
	g.GET("/runs", h.ListRuns)
	g.GET("/runs/:id", h.GetRun)
	g.GET("/options", h.GetOptions)
	g.PUT("/options", h.UpdateOptions)
}

// StartRun runs a sync and returns its summary. The request waits for the
// run to finish; an aborted run is reported with its partial summary.
func (h *SyncHandler) StartRun(c *gin.Context) {
	var body dto.StartRunRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.Error(c, dto.ErrCodeValidation, err.Error())
		return
	}
	req, err := body.ToRunRequest()
	if err != nil {
		h.Error(c, dto.ErrCodeValidation, err.Error())
		return
	}

	result, err := h.runner.Run(c.Request.Context(), req)
	switch {
	case err == nil:
		h.Created(c, result)
	case errors.Is(err, integration.ErrInvalidSyncMode):
		h.Error(c, dto.ErrCodeValidation, err.Error())
	case errors.Is(err, integration.ErrSyncRunDeadline):
		h.ErrorWithData(c, dto.ErrCodeRunDeadline, err.Error(), result)
	case errors.Is(err, integration.ErrSyncRunFailed):
		h.ErrorWithData(c, dto.ErrCodeUpstream, err.Error(), result)
	default:
		logger.GetGinLogger(c).Error("Sync run failed", zap.Error(err))
		h.InternalError(c)
	}
}

// ListRuns returns recent runs, newest first
func (h *SyncHandler) ListRuns(c *gin.Context) {
	var q dto.ListRunsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.Error(c, dto.ErrCodeValidation, err.Error())
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultListLimit
	}

	runs, err := h.runner.ListRuns(c.Request.Context(), q.Limit)
	if err != nil {
		logger.GetGinLogger(c).Error("Failed to list sync runs", zap.Error(err))
		h.InternalError(c)
		return
	}
	h.Success(c, runs)
}

// GetRun returns one run
func (h *SyncHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid run id")
		return
	}

	run, err := h.runner.GetRun(c.Request.Context(), id)
	if errors.Is(err, integration.ErrSyncRunNotFound) {
		h.NotFound(c, "sync run not found")
		return
	}
	if err != nil {
		logger.GetGinLogger(c).Error("Failed to load sync run", zap.Error(err))
		h.InternalError(c)
		return
	}
	h.Success(c, run)
}

// GetOptions returns the current projection options
func (h *SyncHandler) GetOptions(c *gin.Context) {
	h.Success(c, dto.SyncOptionsFromDomain(h.runner.Options()))
}

// UpdateOptions replaces the projection options used by subsequent runs
func (h *SyncHandler) UpdateOptions(c *gin.Context) {
	var body dto.SyncOptionsDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		h.Error(c, dto.ErrCodeValidation, err.Error())
		return
	}
	h.runner.UpdateOptions(body.ToSyncOptions())
	logger.GetGinLogger(c).Info("Sync options updated",
		zap.Bool("sync_attributes", body.SyncAttributes),
		zap.Bool("sync_trade_items", body.SyncTradeItems),
		zap.Bool("sync_translations", body.SyncTranslations),
		zap.Int("custom_field_map", len(body.CustomFieldMap)),
	)
	h.Success(c, dto.SyncOptionsFromDomain(h.runner.Options()))
}
