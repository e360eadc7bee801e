package projection

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is one PIM entity as decoded from the wire. Values are strings,
// json.Number, bools, nil, []any or nested maps.
type Record map[string]any

// ScalarKind identifies the type of an atomic value
type ScalarKind uint8

const (
	// KindString is a string leaf
	KindString ScalarKind = iota + 1
	// KindNumber is a numeric leaf, kept in its textual form
	KindNumber
	// KindBool is a boolean leaf
	KindBool
)

// Scalar is an atomic value taken from a Record. The zero Scalar is absent.
type Scalar struct {
	kind ScalarKind
	str  string
	num  json.Number
	b    bool
}

// StringScalar creates a string scalar
func StringScalar(s string) Scalar {
	return Scalar{kind: KindString, str: s}
}

// NumberScalar creates a numeric scalar
func NumberScalar(n json.Number) Scalar {
	return Scalar{kind: KindNumber, num: n}
}

// BoolScalar creates a boolean scalar
func BoolScalar(b bool) Scalar {
	return Scalar{kind: KindBool, b: b}
}

// ScalarOf converts a decoded value into a Scalar. Sequences, mappings and
// nil are not scalars.
func ScalarOf(v any) (Scalar, bool) {
	switch t := v.(type) {
	case string:
		return StringScalar(t), true
	case json.Number:
		return NumberScalar(t), true
	case bool:
		return BoolScalar(t), true
	case float64:
		return NumberScalar(json.Number(strconv.FormatFloat(t, 'f', -1, 64))), true
	case float32:
		return NumberScalar(json.Number(strconv.FormatFloat(float64(t), 'f', -1, 32))), true
	case int:
		return NumberScalar(json.Number(strconv.Itoa(t))), true
	case int64:
		return NumberScalar(json.Number(strconv.FormatInt(t, 10))), true
	case int32:
		return NumberScalar(json.Number(strconv.FormatInt(int64(t), 10))), true
	case uint:
		return NumberScalar(json.Number(strconv.FormatUint(uint64(t), 10))), true
	case uint64:
		return NumberScalar(json.Number(strconv.FormatUint(t, 10))), true
	default:
		return Scalar{}, false
	}
}

// Kind returns the scalar kind, zero when absent
func (s Scalar) Kind() ScalarKind {
	return s.kind
}

// IsZero returns true for the absent scalar
func (s Scalar) IsZero() bool {
	return s.kind == 0
}

// IsEmpty returns true if the scalar is absent or an empty string.
// Numeric zero and false are values, not emptiness.
func (s Scalar) IsEmpty() bool {
	switch s.kind {
	case 0:
		return true
	case KindString:
		return s.str == ""
	case KindNumber:
		return s.num == ""
	default:
		return false
	}
}

// String returns the textual form of the scalar
func (s Scalar) String() string {
	switch s.kind {
	case KindString:
		return s.str
	case KindNumber:
		return s.num.String()
	case KindBool:
		return strconv.FormatBool(s.b)
	default:
		return ""
	}
}

// Value returns the scalar as a plain Go value (string, json.Number or bool)
func (s Scalar) Value() any {
	switch s.kind {
	case KindString:
		return s.str
	case KindNumber:
		return s.num
	case KindBool:
		return s.b
	default:
		return nil
	}
}

// Decimal parses the scalar as a decimal amount
func (s Scalar) Decimal() (decimal.Decimal, bool) {
	var raw string
	switch s.kind {
	case KindNumber:
		raw = s.num.String()
	case KindString:
		raw = strings.TrimSpace(s.str)
	default:
		return decimal.Decimal{}, false
	}
	if raw == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Bool interprets the scalar as a flag. Numbers are true when non-zero,
// strings are parsed with strconv.ParseBool.
func (s Scalar) Bool() bool {
	switch s.kind {
	case KindBool:
		return s.b
	case KindNumber:
		d, err := decimal.NewFromString(s.num.String())
		return err == nil && !d.IsZero()
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(s.str))
		return err == nil && b
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Record access helpers
// ---------------------------------------------------------------------------

// asRecord returns v as a Record if it is a mapping
func asRecord(v any) (Record, bool) {
	switch t := v.(type) {
	case Record:
		return t, true
	case map[string]any:
		return Record(t), true
	default:
		return nil, false
	}
}

// asSequence returns v as a slice if it is a sequence
func asSequence(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []Record:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	default:
		return nil, false
	}
}

// Scalar returns the scalar stored directly under key
func (r Record) Scalar(key string) (Scalar, bool) {
	v, ok := r[key]
	if !ok {
		return Scalar{}, false
	}
	return ScalarOf(v)
}

// Mapping returns the nested mapping stored under key
func (r Record) Mapping(key string) (Record, bool) {
	v, ok := r[key]
	if !ok {
		return nil, false
	}
	return asRecord(v)
}

// Sequence returns the sequence stored under key
func (r Record) Sequence(key string) ([]any, bool) {
	v, ok := r[key]
	if !ok {
		return nil, false
	}
	return asSequence(v)
}

// Records returns the mapping elements of the sequence stored under key,
// skipping elements that are not mappings.
func (r Record) Records(key string) []Record {
	seq, ok := r.Sequence(key)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(seq))
	for _, item := range seq {
		if rec, ok := asRecord(item); ok {
			out = append(out, rec)
		}
	}
	return out
}

// FirstNonEmpty returns the first non-empty scalar among the given keys
func (r Record) FirstNonEmpty(keys ...string) (Scalar, bool) {
	for _, key := range keys {
		if s, ok := r.Scalar(key); ok && !s.IsEmpty() {
			return s, true
		}
	}
	return Scalar{}, false
}

// sortedKeys returns the record keys in lexical order
func (r Record) sortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecodeRecord decodes one JSON object into a Record, keeping numbers
// in their textual form.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}
