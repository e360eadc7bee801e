package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/infrastructure/persistence/models"
)

const (
	defaultRecentRuns = 20
	maxRecentRuns     = 100
)

// GormSyncRunRepository implements integration.SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

var _ integration.SyncRunRepository = (*GormSyncRunRepository)(nil)

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Save inserts the run or updates every column of an existing one
func (r *GormSyncRunRepository) Save(ctx context.Context, run *integration.SyncRun) error {
	model := models.SyncRunModelFromDomain(run)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// FindByID returns the run with id or integration.ErrSyncRunNotFound
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	var model models.SyncRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRecent returns the latest runs, newest first
func (r *GormSyncRunRepository) FindRecent(ctx context.Context, limit int) ([]integration.SyncRun, error) {
	if limit <= 0 {
		limit = defaultRecentRuns
	}
	if limit > maxRecentRuns {
		limit = maxRecentRuns
	}

	var rows []models.SyncRunModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]integration.SyncRun, len(rows))
	for i := range rows {
		runs[i] = *rows[i].ToDomain()
	}
	return runs, nil
}

// LastWatermark returns the most recently started successful FULL or
// INCREMENTAL run that enumerated the whole listing, or
// integration.ErrSyncRunNotFound when there is none
func (r *GormSyncRunRepository) LastWatermark(ctx context.Context) (*integration.SyncRun, error) {
	var model models.SyncRunModel
	err := r.db.WithContext(ctx).
		Where("mode IN ? AND status = ? AND bounded = ? AND started_at IS NOT NULL",
			[]string{string(integration.SyncModeFull), string(integration.SyncModeIncremental)},
			string(integration.SyncStatusSuccess), false).
		Order("started_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
