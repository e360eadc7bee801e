package integration

import (
	"context"
	"iter"
	"time"

	"github.com/pimsync/backend/internal/domain/projection"
)

// PageStats describes one fetched page of an enumeration
type PageStats struct {
	Method     string
	Page       int
	TotalPages int // zero when the remote did not report it
	Records    int
}

// ListQuery bounds one enumeration of the remote catalog
type ListQuery struct {
	PageSize  int
	ReturnAll bool
	StartPage int
	// OnPage, when set, is called after each page is fetched and before its
	// records are yielded
	OnPage func(ctx context.Context, page PageStats)
}

// RecordSource enumerates catalog records lazily. Sequences are forward-only;
// a consumer that stops ranging causes no further remote calls.
type RecordSource interface {
	Products(ctx context.Context, q ListQuery) iter.Seq2[projection.Record, error]
	ProductsModifiedSince(ctx context.Context, since time.Time, q ListQuery) iter.Seq2[projection.Record, error]
	GroupedProducts(ctx context.Context, q ListQuery) iter.Seq2[projection.Record, error]
}
