package projection

import "strings"

// Attribute is one normalized label/value pair of a record
type Attribute struct {
	Label string
	Value Scalar
}

// AttributeSource extracts the attribute collection of a record.
// Implementations return attributes in source order and never fail.
type AttributeSource interface {
	Attributes(record Record) []Attribute
}

// AttributeSourceFunc adapts a function to AttributeSource
type AttributeSourceFunc func(record Record) []Attribute

// Attributes implements AttributeSource
func (f AttributeSourceFunc) Attributes(record Record) []Attribute {
	return f(record)
}

// ---------------------------------------------------------------------------
// Keyed attributes
// ---------------------------------------------------------------------------

// DefaultAttributesKey is the record key holding pre-normalized attributes
const DefaultAttributesKey = "_attributes"

// KeyedAttributes reads attributes already normalized upstream. The value
// under Key is either a sequence of {label, value} mappings or a plain
// label -> value mapping (read in sorted label order).
type KeyedAttributes struct {
	Key string
}

// Attributes implements AttributeSource
func (k KeyedAttributes) Attributes(record Record) []Attribute {
	key := k.Key
	if key == "" {
		key = DefaultAttributesKey
	}

	if m, ok := record.Mapping(key); ok {
		out := make([]Attribute, 0, len(m))
		for _, label := range m.sortedKeys() {
			if v, ok := m.Scalar(label); ok {
				out = append(out, Attribute{Label: label, Value: v})
			}
		}
		return out
	}

	entries := record.Records(key)
	out := make([]Attribute, 0, len(entries))
	for _, e := range entries {
		label, ok := e.FirstNonEmpty("label", "name")
		if !ok {
			continue
		}
		v, _ := e.Scalar("value")
		out = append(out, Attribute{Label: label.String(), Value: v})
	}
	return out
}

// ---------------------------------------------------------------------------
// ETIM features
// ---------------------------------------------------------------------------

// ETIMAttributes reads ETIM classification features from
// _etim._etim_features. The label is the feature description (falling back
// to its code); the value is the value description, else the numeric value
// with its unit, else the logical value rendered as Yes/No.
type ETIMAttributes struct{}

// Attributes implements AttributeSource
func (ETIMAttributes) Attributes(record Record) []Attribute {
	etim, ok := record.Mapping("_etim")
	if !ok {
		return nil
	}
	features := etim.Records("_etim_features")
	out := make([]Attribute, 0, len(features))
	for _, f := range features {
		label, ok := f.FirstNonEmpty("etim_feature_description", "etim_feature_code")
		if !ok {
			continue
		}
		out = append(out, Attribute{Label: label.String(), Value: etimValue(f)})
	}
	return out
}

func etimValue(f Record) Scalar {
	if v, ok := f.FirstNonEmpty("etim_value_description"); ok {
		return v
	}
	if n, ok := f.FirstNonEmpty("numeric_value"); ok {
		unit, _ := f.FirstNonEmpty("etim_unit_abbreviation", "unit_abbreviation")
		text := strings.TrimSpace(n.String() + " " + unit.String())
		return StringScalar(text)
	}
	if l, ok := f.Scalar("logical_value"); ok {
		if l.Bool() {
			return StringScalar("Yes")
		}
		return StringScalar("No")
	}
	return Scalar{}
}

// ---------------------------------------------------------------------------
// Composition
// ---------------------------------------------------------------------------

// ChainAttributes concatenates the attributes of several sources in order
func ChainAttributes(sources ...AttributeSource) AttributeSource {
	return AttributeSourceFunc(func(record Record) []Attribute {
		var out []Attribute
		for _, s := range sources {
			if s == nil {
				continue
			}
			out = append(out, s.Attributes(record)...)
		}
		return out
	})
}

// DefaultAttributeSource reads keyed attributes followed by ETIM features
func DefaultAttributeSource() AttributeSource {
	return ChainAttributes(KeyedAttributes{Key: DefaultAttributesKey}, ETIMAttributes{})
}
