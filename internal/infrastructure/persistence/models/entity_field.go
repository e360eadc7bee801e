package models

import "time"

// EntityFieldModel stores one projected field of a destination entity. The
// (entity_id, field_name) pair is the primary key, so writes upsert.
type EntityFieldModel struct {
	EntityID  string    `gorm:"type:varchar(255);primaryKey"`
	FieldName string    `gorm:"type:varchar(255);primaryKey"`
	Value     string    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EntityFieldModel) TableName() string {
	return "entity_fields"
}
