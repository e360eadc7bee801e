package projection

import "strings"

// FieldMapping is one source path -> destination field name entry
type FieldMapping struct {
	Source      string `json:"source" mapstructure:"source"`
	Destination string `json:"destination" mapstructure:"destination"`
}

// FieldMap is an ordered source path -> destination field name table.
// Destination names are unique within one map.
type FieldMap struct {
	entries []FieldMapping
}

// NewFieldMap builds a FieldMap by setting each entry in order
func NewFieldMap(entries ...FieldMapping) FieldMap {
	var m FieldMap
	for _, e := range entries {
		m.Set(e.Source, e.Destination)
	}
	return m
}

// Set maps source to destination. An existing entry for source keeps its
// position and takes the new destination; any other entry already using
// destination is removed.
func (m *FieldMap) Set(source, destination string) {
	replaced := false
	out := m.entries[:0:0]
	for _, e := range m.entries {
		switch {
		case e.Source == source:
			if !replaced {
				out = append(out, FieldMapping{Source: source, Destination: destination})
				replaced = true
			}
		case e.Destination == destination:
			// destination taken over by source
		default:
			out = append(out, e)
		}
	}
	if !replaced {
		out = append(out, FieldMapping{Source: source, Destination: destination})
	}
	m.entries = out
}

// Remove deletes the entry for source
func (m *FieldMap) Remove(source string) {
	out := m.entries[:0:0]
	for _, e := range m.entries {
		if e.Source != source {
			out = append(out, e)
		}
	}
	m.entries = out
}

// Lookup returns the destination for source
func (m FieldMap) Lookup(source string) (string, bool) {
	for _, e := range m.entries {
		if e.Source == source {
			return e.Destination, true
		}
	}
	return "", false
}

// Entries returns a copy of the entries in order
func (m FieldMap) Entries() []FieldMapping {
	out := make([]FieldMapping, len(m.entries))
	copy(out, m.entries)
	return out
}

// Destinations returns the destination names in order
func (m FieldMap) Destinations() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Destination
	}
	return out
}

// Len returns the number of entries
func (m FieldMap) Len() int {
	return len(m.entries)
}

// Clone returns an independent copy
func (m FieldMap) Clone() FieldMap {
	return FieldMap{entries: m.Entries()}
}

// ---------------------------------------------------------------------------
// Defaults and merging
// ---------------------------------------------------------------------------

// DefaultFieldMap returns the built-in identity and catalog field table
func DefaultFieldMap() FieldMap {
	return NewFieldMap(
		FieldMapping{Source: "product_gtin", Destination: "dest_gtin"},
		FieldMapping{Source: "brand_name", Destination: "dest_brand"},
		FieldMapping{Source: "manufacturer_name", Destination: "dest_manufacturer"},
		FieldMapping{Source: "internal_product_code", Destination: "dest_internal_code"},
		FieldMapping{Source: "external_product_id", Destination: "dest_external_id"},
		FieldMapping{Source: "manufacturer_product_code", Destination: "dest_manufacturer_code"},
		FieldMapping{Source: "_product_status.product_status_description", Destination: "dest_status"},
	)
}

// MappingWarning describes a custom field-map entry that was dropped
type MappingWarning struct {
	Index       int
	Source      string
	Destination string
	Reason      string
}

const (
	reasonEmptySource      = "empty source path"
	reasonEmptyDestination = "empty destination field name"
)

// Merge applies overrides on top of a copy of defaults, keyed by source path.
// Entries with an empty (or blank) source or destination are dropped and
// reported as warnings.
func Merge(defaults FieldMap, overrides []FieldMapping) (FieldMap, []MappingWarning) {
	merged := defaults.Clone()
	var warnings []MappingWarning

	for i, o := range overrides {
		source := strings.TrimSpace(o.Source)
		destination := strings.TrimSpace(o.Destination)

		if source == "" {
			warnings = append(warnings, MappingWarning{Index: i, Source: o.Source, Destination: o.Destination, Reason: reasonEmptySource})
			continue
		}
		if destination == "" {
			warnings = append(warnings, MappingWarning{Index: i, Source: o.Source, Destination: o.Destination, Reason: reasonEmptyDestination})
			continue
		}
		merged.Set(source, destination)
	}

	return merged, warnings
}
