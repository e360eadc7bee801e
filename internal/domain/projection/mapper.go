package projection

// MapPolicy adjusts a merged field map before it is used. Policies run in
// registration order.
type MapPolicy func(FieldMap) FieldMap

// FieldMapper resolves the effective field map for a run
type FieldMapper struct {
	defaults FieldMap
	policies []MapPolicy
}

// NewFieldMapper creates a mapper over the built-in default map
func NewFieldMapper(policies ...MapPolicy) *FieldMapper {
	return NewFieldMapperWithDefaults(DefaultFieldMap(), policies...)
}

// NewFieldMapperWithDefaults creates a mapper over a caller-supplied default map
func NewFieldMapperWithDefaults(defaults FieldMap, policies ...MapPolicy) *FieldMapper {
	return &FieldMapper{
		defaults: defaults.Clone(),
		policies: append([]MapPolicy(nil), policies...),
	}
}

// Use appends policies to the mapper
func (m *FieldMapper) Use(policies ...MapPolicy) {
	m.policies = append(m.policies, policies...)
}

// Defaults returns a copy of the default map
func (m *FieldMapper) Defaults() FieldMap {
	return m.defaults.Clone()
}

// EffectiveMap merges the custom overrides of opts into the defaults and
// applies the registered policies
func (m *FieldMapper) EffectiveMap(opts SyncOptions) FieldMap {
	fm, _ := m.Resolve(opts)
	return fm
}

// Resolve is EffectiveMap that also reports dropped override entries
func (m *FieldMapper) Resolve(opts SyncOptions) (FieldMap, []MappingWarning) {
	merged, warnings := Merge(m.defaults, opts.CustomFieldMap)
	for _, policy := range m.policies {
		if policy == nil {
			continue
		}
		merged = policy(merged.Clone())
	}
	return merged, warnings
}

// ExcludeSources returns a policy removing the given source paths
func ExcludeSources(sources ...string) MapPolicy {
	return func(fm FieldMap) FieldMap {
		for _, s := range sources {
			fm.Remove(s)
		}
		return fm
	}
}

// AppendMappings returns a policy adding entries after the merged ones
func AppendMappings(entries ...FieldMapping) MapPolicy {
	return func(fm FieldMap) FieldMap {
		for _, e := range entries {
			if e.Source == "" || e.Destination == "" {
				continue
			}
			fm.Set(e.Source, e.Destination)
		}
		return fm
	}
}
