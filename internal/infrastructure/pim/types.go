package pim

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/pimsync/backend/internal/domain/projection"
)

// Items keys of the paginated listing methods
const (
	ItemsKeyProducts        = "products"
	ItemsKeyGroupedProducts = "grouped_products"
)

// Filter operators understood by getProductsByFilter
const (
	OperatorGTE = ">="
	OperatorLTE = "<="
	OperatorEQ  = "="
)

// DefaultModifiedField is the field compared by ModifiedSince
const DefaultModifiedField = "updated_at"

// Condition is one filter clause
type Condition struct {
	Value    any    `json:"value"`
	Operator string `json:"operator"`
}

// Filter is attached to every page request of a filtered fetch,
// shaped as {field: {value, operator}}
type Filter map[string]Condition

// ModifiedSince returns a filter selecting records modified at or after since
func ModifiedSince(since time.Time) Filter {
	return Filter{
		DefaultModifiedField: {Value: since.UTC().Format(time.RFC3339), Operator: OperatorGTE},
	}
}

// PageMeta is the pagination metadata of one page
type PageMeta struct {
	CurrentPage   int `json:"current_page"`
	NumberOfPages int `json:"number_of_pages"`
}

// Page is one fetch result
type Page struct {
	Records []projection.Record
	// ItemCount is the number of items the remote returned, including items
	// that could not be decoded as records
	ItemCount int
	Meta      PageMeta
	PageSize  int
}

// decodePage reads a listing result {<items>: [...], page: {...}}. When
// itemsKey is empty or absent the first array-valued member (in key order)
// is used.
func decodePage(result json.RawMessage, itemsKey string, requestedPage, pageSize int) (*Page, error) {
	dec := json.NewDecoder(bytes.NewReader(result))
	dec.UseNumber()

	var body map[string]json.RawMessage
	if err := dec.Decode(&body); err != nil {
		return nil, decodeError("listing result is not an object", err)
	}

	page := &Page{
		Records:  []projection.Record{},
		Meta:     PageMeta{CurrentPage: requestedPage},
		PageSize: pageSize,
	}

	if raw, ok := body["page"]; ok && !isNull(raw) {
		var meta struct {
			CurrentPage   *json.Number `json:"current_page"`
			NumberOfPages *json.Number `json:"number_of_pages"`
		}
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, decodeError("invalid page metadata", err)
		}
		if n, ok := numberToInt(meta.CurrentPage); ok {
			page.Meta.CurrentPage = n
		}
		if n, ok := numberToInt(meta.NumberOfPages); ok {
			page.Meta.NumberOfPages = n
		}
	}

	rawItems, ok := findItems(body, itemsKey)
	if !ok {
		return page, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil, decodeError("items member is not an array", err)
	}
	page.ItemCount = len(items)
	for _, item := range items {
		rec, err := projection.DecodeRecord(item)
		if err != nil || rec == nil {
			// non-object items cannot be projected
			continue
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

func findItems(body map[string]json.RawMessage, itemsKey string) (json.RawMessage, bool) {
	if raw, ok := body[itemsKey]; itemsKey != "" && ok {
		if isNull(raw) {
			return nil, false
		}
		return raw, true
	}

	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "page" {
			continue
		}
		raw := bytes.TrimSpace(body[k])
		if len(raw) > 0 && raw[0] == '[' {
			return raw, true
		}
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func numberToInt(n *json.Number) (int, bool) {
	if n == nil {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return int(i), true
	}
	if f, err := n.Float64(); err == nil {
		return int(f), true
	}
	return 0, false
}
