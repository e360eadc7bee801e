package pim

import (
	"context"
	"iter"
	"time"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/domain/projection"
)

// Source exposes the three PIM listings as record sequences
type Source struct {
	paginator     *Paginator
	modifiedField string
}

// NewSource creates a Source over paginator
func NewSource(paginator *Paginator) *Source {
	return &Source{paginator: paginator, modifiedField: DefaultModifiedField}
}

// WithModifiedField changes the field compared by ProductsModifiedSince
func (s *Source) WithModifiedField(field string) *Source {
	if field != "" {
		s.modifiedField = field
	}
	return s
}

// Products enumerates getProducts
func (s *Source) Products(ctx context.Context, q integration.ListQuery) iter.Seq2[projection.Record, error] {
	return s.paginator.Fetch(ctx, listRequest(MethodGetProducts, ItemsKeyProducts, q))
}

// ProductsModifiedSince enumerates getProductsByFilter with a >= filter on
// the modified field
func (s *Source) ProductsModifiedSince(ctx context.Context, since time.Time, q integration.ListQuery) iter.Seq2[projection.Record, error] {
	req := listRequest(MethodGetProductsByFilter, ItemsKeyProducts, q)
	req.Filter = Filter{
		s.modifiedField: {Value: since.UTC().Format(time.RFC3339), Operator: OperatorGTE},
	}
	return s.paginator.Fetch(ctx, req)
}

// GroupedProducts enumerates getGroupedProducts
func (s *Source) GroupedProducts(ctx context.Context, q integration.ListQuery) iter.Seq2[projection.Record, error] {
	return s.paginator.Fetch(ctx, listRequest(MethodGetGroupedProducts, ItemsKeyGroupedProducts, q))
}

func listRequest(method, itemsKey string, q integration.ListQuery) FetchRequest {
	req := FetchRequest{
		Method:    method,
		PageSize:  q.PageSize,
		ReturnAll: q.ReturnAll,
		StartPage: q.StartPage,
		ItemsKey:  itemsKey,
	}
	if q.OnPage != nil {
		req.OnPage = func(ctx context.Context, info PageInfo) {
			q.OnPage(ctx, integration.PageStats{
				Method:     info.Method,
				Page:       info.Page,
				TotalPages: info.TotalPages,
				Records:    info.Records,
			})
		}
	}
	return req
}

var _ integration.RecordSource = (*Source)(nil)
