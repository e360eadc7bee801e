package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/infrastructure/persistence/models"
)

// GormFieldStore implements integration.FieldStore on the entity_fields table
type GormFieldStore struct {
	db *gorm.DB
}

var _ integration.FieldStore = (*GormFieldStore)(nil)

// NewGormFieldStore creates a new GormFieldStore
func NewGormFieldStore(db *gorm.DB) *GormFieldStore {
	return &GormFieldStore{db: db}
}

// Name implements integration.FieldStore
func (s *GormFieldStore) Name() string {
	return "database"
}

// WriteField upserts one field. Writing the same value twice leaves a single
// row holding that value.
func (s *GormFieldStore) WriteField(ctx context.Context, entityID, fieldName string, value any) error {
	if err := integration.ValidateFieldWrite(entityID, fieldName); err != nil {
		return err
	}
	encoded, err := integration.EncodeFieldValue(value)
	if err != nil {
		return err
	}

	model := &models.EntityFieldModel{
		EntityID:  entityID,
		FieldName: fieldName,
		Value:     encoded,
		UpdatedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}, {Name: "field_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("write field %s of %s: %w", fieldName, entityID, err)
	}
	return nil
}

// ReadFields returns every stored field of entityID
func (s *GormFieldStore) ReadFields(ctx context.Context, entityID string) (map[string]string, error) {
	var rows []models.EntityFieldModel
	if err := s.db.WithContext(ctx).Where("entity_id = ?", entityID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read fields of %s: %w", entityID, err)
	}
	fields := make(map[string]string, len(rows))
	for _, row := range rows {
		fields[row.FieldName] = row.Value
	}
	return fields, nil
}

// Ping implements integration.FieldStore
func (s *GormFieldStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", integration.ErrFieldStoreUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrFieldStoreUnavailable, err)
	}
	return nil
}
