package projection

import "strings"

// Field names emitted by the trade-item and grouped passes
const (
	FieldPrices    = "prices"
	FieldEAN       = "ean"
	FieldGroupID   = Namespace + "_group_id"
	FieldGroupName = Namespace + "_group_name"
	FieldGroupCode = Namespace + "_group_code"
)

// Source keys read by the pipeline passes
const (
	keyTradeItems      = "_trade_items"
	keyTradeItemPrices = "_trade_item_prices"
	keyEAN             = "ean"
	keyTranslations    = "_product_translations"
	keyProductID       = "product_id"
)

// translationFields lists translatable source keys and their field suffix,
// in emission order
var translationFields = []struct {
	source string
	suffix string
}{
	{source: "product_description", suffix: "description"},
	{source: "product_long_description", suffix: "long_description"},
	{source: "product_marketing_text", suffix: "marketing_text"},
	{source: "product_web_text", suffix: "web_text"},
	{source: "product_model", suffix: "model_name"},
}

// FieldWrite is one (field name, value) pair produced by a projection.
// Value is a string, json.Number, bool or []PriceRecord.
type FieldWrite struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Result is the ordered list of writes produced for one record
type Result []FieldWrite

// Names returns the field names in order
func (r Result) Names() []string {
	names := make([]string, len(r))
	for i, w := range r {
		names[i] = w.Name
	}
	return names
}

// Get returns the value written to name
func (r Result) Get(name string) (any, bool) {
	for _, w := range r {
		if w.Name == name {
			return w.Value, true
		}
	}
	return nil, false
}

// Has reports whether name is written
func (r Result) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Pipeline projects records under one options and field map snapshot.
// A Pipeline holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	options         SyncOptions
	fieldMap        FieldMap
	attributes      AttributeSource
	defaultCurrency string
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithAttributeSource sets the attribute extractor
func WithAttributeSource(src AttributeSource) PipelineOption {
	return func(p *Pipeline) {
		if src != nil {
			p.attributes = src
		}
	}
}

// WithDefaultCurrency sets the currency used for prices without one
func WithDefaultCurrency(code string) PipelineOption {
	return func(p *Pipeline) {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			p.defaultCurrency = code
		}
	}
}

// NewPipeline creates a pipeline over snapshots of opts and fieldMap
func NewPipeline(opts SyncOptions, fieldMap FieldMap, options ...PipelineOption) *Pipeline {
	p := &Pipeline{
		options:         opts.Clone(),
		fieldMap:        fieldMap.Clone(),
		attributes:      DefaultAttributeSource(),
		defaultCurrency: DefaultCurrency,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Options returns the options snapshot
func (p *Pipeline) Options() SyncOptions {
	return p.options.Clone()
}

// FieldMap returns the field map snapshot
func (p *Pipeline) FieldMap() FieldMap {
	return p.fieldMap.Clone()
}

// Project runs the standard, attribute, trade-item and translation passes
// over record. Empty or absent values are never emitted.
func (p *Pipeline) Project(record Record) Result {
	if record == nil {
		return Result{}
	}

	out := Result{}
	out = p.projectStandard(record, out)
	if p.options.SyncAttributes {
		out = p.projectAttributes(record, out)
	}
	if p.options.SyncTradeItems {
		out = p.projectTradeItems(record, out)
	}
	if p.options.SyncTranslations {
		out = p.projectTranslations(record, out)
	}
	return out
}

func (p *Pipeline) projectStandard(record Record, out Result) Result {
	for _, e := range p.fieldMap.entries {
		v, ok := Resolve(record, e.Source)
		if !ok || v.IsEmpty() {
			continue
		}
		out = append(out, FieldWrite{Name: e.Destination, Value: v.Value()})
	}
	return out
}

func (p *Pipeline) projectAttributes(record Record, out Result) Result {
	seen := make(map[string]struct{})
	for _, attr := range p.attributes.Attributes(record) {
		if attr.Value.IsEmpty() {
			continue
		}
		name, ok := AttributeFieldName(attr.Label)
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, FieldWrite{Name: name, Value: attr.Value.Value()})
	}
	return out
}

// projectTradeItems only reads the first trade item
func (p *Pipeline) projectTradeItems(record Record, out Result) Result {
	items := record.Records(keyTradeItems)
	if len(items) == 0 {
		return out
	}
	item := items[0]

	entries := item.Records(keyTradeItemPrices)
	if len(entries) > 0 {
		prices := make([]PriceRecord, 0, len(entries))
		for _, e := range entries {
			prices = append(prices, priceFromRecord(e, p.defaultCurrency))
		}
		out = append(out, FieldWrite{Name: FieldPrices, Value: prices})
	}

	if ean, ok := item.Scalar(keyEAN); ok && !ean.IsEmpty() {
		out = append(out, FieldWrite{Name: FieldEAN, Value: ean.Value()})
	}
	return out
}

// projectTranslations keeps the first value per field name, so locales that
// sanitize alike (nl-NL and nl_NL) or repeat do not emit the same field twice
func (p *Pipeline) projectTranslations(record Record, out Result) Result {
	seen := make(map[string]struct{})
	for _, t := range record.Records(keyTranslations) {
		locale, ok := t.FirstNonEmpty("language", "locale")
		if !ok {
			continue
		}
		for _, f := range translationFields {
			v, ok := t.Scalar(f.source)
			if !ok || v.IsEmpty() {
				continue
			}
			name, ok := TranslationFieldName(locale.String(), f.suffix)
			if !ok {
				break
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, FieldWrite{Name: name, Value: v.Value()})
		}
	}
	return out
}

// ProjectGroup emits the group id, name and code of a grouped record, each
// falling back to the plain product key when the grouped key is empty.
func (p *Pipeline) ProjectGroup(record Record) Result {
	out := Result{}
	if record == nil {
		return out
	}
	fields := []struct {
		name      string
		primary   string
		secondary string
	}{
		{name: FieldGroupID, primary: "grouped_product_id", secondary: keyProductID},
		{name: FieldGroupName, primary: "grouped_product_name", secondary: "product_name"},
		{name: FieldGroupCode, primary: "grouped_product_code", secondary: "internal_product_code"},
	}
	for _, f := range fields {
		if v, ok := record.FirstNonEmpty(f.primary, f.secondary); ok {
			out = append(out, FieldWrite{Name: f.name, Value: v.Value()})
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Convenience
// ---------------------------------------------------------------------------

// Project projects record with a pipeline built from options and the
// default field mapper
func Project(record Record, options SyncOptions) Result {
	fm := NewFieldMapper().EffectiveMap(options)
	return NewPipeline(options, fm).Project(record)
}

// EntityID returns the destination entity id of a product record
func EntityID(record Record) (string, bool) {
	id, ok := record.FirstNonEmpty(keyProductID)
	if !ok {
		return "", false
	}
	return "product:" + id.String(), true
}

// GroupEntityID returns the destination entity id of a grouped record
func GroupEntityID(record Record) (string, bool) {
	id, ok := record.FirstNonEmpty("grouped_product_id", keyProductID)
	if !ok {
		return "", false
	}
	return "group:" + id.String(), true
}
