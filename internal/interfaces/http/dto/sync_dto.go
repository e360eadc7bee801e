package dto

import (
	"time"

	"github.com/pimsync/backend/internal/application/pimsync"
	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/domain/projection"
)

// StartRunRequest is the body of POST /sync/runs. Every field is optional.
type StartRunRequest struct {
	Mode         string     `json:"mode" binding:"omitempty,max=32"`
	UpdatedSince *time.Time `json:"updated_since"`
	OnePage      bool       `json:"one_page"`
	StartPage    int        `json:"start_page" binding:"gte=0"`
	PageSize     int        `json:"page_size" binding:"gte=0,lte=1000"`
}

// ToRunRequest converts the body to a service request
func (r StartRunRequest) ToRunRequest() (pimsync.RunRequest, error) {
	mode, err := integration.ParseSyncMode(r.Mode)
	if err != nil {
		return pimsync.RunRequest{}, err
	}
	return pimsync.RunRequest{
		Mode:         mode,
		UpdatedSince: r.UpdatedSince,
		OnePage:      r.OnePage,
		StartPage:    r.StartPage,
		PageSize:     r.PageSize,
	}, nil
}

// ListRunsQuery holds the query parameters of GET /sync/runs
type ListRunsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// FieldMappingDTO is one custom field-map entry. Blank entries are accepted
// and dropped with a warning when a run resolves its field map.
type FieldMappingDTO struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// SyncOptionsDTO is the projection configuration exposed over HTTP
type SyncOptionsDTO struct {
	SyncAttributes   bool              `json:"sync_attributes"`
	SyncTradeItems   bool              `json:"sync_trade_items"`
	SyncTranslations bool              `json:"sync_translations"`
	CustomFieldMap   []FieldMappingDTO `json:"custom_field_map" binding:"omitempty,max=500"`
}

// ToSyncOptions converts the DTO to projection options
func (d SyncOptionsDTO) ToSyncOptions() projection.SyncOptions {
	opts := projection.SyncOptions{
		SyncAttributes:   d.SyncAttributes,
		SyncTradeItems:   d.SyncTradeItems,
		SyncTranslations: d.SyncTranslations,
	}
	if len(d.CustomFieldMap) > 0 {
		opts.CustomFieldMap = make([]projection.FieldMapping, len(d.CustomFieldMap))
		for i, m := range d.CustomFieldMap {
			opts.CustomFieldMap[i] = projection.FieldMapping{Source: m.Source, Destination: m.Destination}
		}
	}
	return opts
}

// SyncOptionsFromDomain converts projection options to the DTO
func SyncOptionsFromDomain(opts projection.SyncOptions) SyncOptionsDTO {
	d := SyncOptionsDTO{
		SyncAttributes:   opts.SyncAttributes,
		SyncTradeItems:   opts.SyncTradeItems,
		SyncTranslations: opts.SyncTranslations,
		CustomFieldMap:   make([]FieldMappingDTO, len(opts.CustomFieldMap)),
	}
	for i, m := range opts.CustomFieldMap {
		d.CustomFieldMap[i] = FieldMappingDTO{Source: m.Source, Destination: m.Destination}
	}
	return d
}
