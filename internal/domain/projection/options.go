package projection

// SyncOptions is the per-run configuration snapshot for a projection
type SyncOptions struct {
	// SyncAttributes projects feature/attribute fields
	SyncAttributes bool
	// SyncTradeItems projects price and EAN fields
	SyncTradeItems bool
	// SyncTranslations projects per-locale fields
	SyncTranslations bool
	// CustomFieldMap holds user overrides merged into the default map
	CustomFieldMap []FieldMapping
}

// DefaultSyncOptions returns attributes on, trade items and translations off,
// no custom overrides
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		SyncAttributes:   true,
		SyncTradeItems:   false,
		SyncTranslations: false,
	}
}

// Clone returns a copy that shares no mutable state with o
func (o SyncOptions) Clone() SyncOptions {
	c := o
	if o.CustomFieldMap != nil {
		c.CustomFieldMap = make([]FieldMapping, len(o.CustomFieldMap))
		copy(c.CustomFieldMap, o.CustomFieldMap)
	}
	return c
}
