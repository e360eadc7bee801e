package pim

import (
	"context"
	"errors"
	"iter"
	"maps"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pimsync/backend/internal/domain/projection"
)

// ErrSequenceConsumed is yielded when a record sequence is ranged over twice
var ErrSequenceConsumed = errors.New("pim: record sequence already consumed")

// PageInfo describes a fetched page to observers
type PageInfo struct {
	Method     string
	Page       int
	TotalPages int
	Records    int
	PageSize   int
}

// PageObserver is notified after each page is fetched and before its
// records are yielded
type PageObserver func(ctx context.Context, info PageInfo)

// FetchRequest describes one paginated enumeration
type FetchRequest struct {
	// Method is the remote listing method
	Method string
	// Params are sent with every page request
	Params map[string]any
	// Filter, when set, is attached to every page request
	Filter Filter
	// PageSize is the fixed page size (limit)
	PageSize int
	// ReturnAll continues past the first page
	ReturnAll bool
	// StartPage is the first page to fetch, 1 when unset
	StartPage int
	// ItemsKey names the items member of the result, detected when empty
	ItemsKey string
	// OnPage is notified after the paginator-wide observers
	OnPage PageObserver
}

// Paginator drives repeated calls to enumerate a listing lazily
type Paginator struct {
	caller        Caller
	logger        *zap.Logger
	retryAttempts int
	retryDelay    time.Duration
	observers     []PageObserver
	sleep         func(ctx context.Context, d time.Duration) error
}

// PaginatorOption configures a Paginator
type PaginatorOption func(*Paginator)

// WithPaginatorLogger sets the logger
func WithPaginatorLogger(logger *zap.Logger) PaginatorOption {
	return func(p *Paginator) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRetry retries a page up to attempts times after a transport error,
// doubling delay after each attempt. Decode and remote errors are never retried.
func WithRetry(attempts int, delay time.Duration) PaginatorOption {
	return func(p *Paginator) {
		if attempts < 0 {
			attempts = 0
		}
		p.retryAttempts = attempts
		p.retryDelay = delay
	}
}

// WithPageObserver registers an observer; observers run in registration order
func WithPageObserver(observer PageObserver) PaginatorOption {
	return func(p *Paginator) {
		if observer != nil {
			p.observers = append(p.observers, observer)
		}
	}
}

// NewPaginator creates a paginator over caller
func NewPaginator(caller Caller, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		caller: caller,
		logger: zap.NewNop(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchAll enumerates method without a filter
func (p *Paginator) FetchAll(ctx context.Context, method string, baseParams map[string]any, pageSize int, returnAll bool) iter.Seq2[projection.Record, error] {
	return p.Fetch(ctx, FetchRequest{
		Method:    method,
		Params:    baseParams,
		PageSize:  pageSize,
		ReturnAll: returnAll,
	})
}

// FetchFiltered enumerates method with filter attached to every page request
func (p *Paginator) FetchFiltered(ctx context.Context, method string, filter Filter, baseParams map[string]any, pageSize int, returnAll bool) iter.Seq2[projection.Record, error] {
	return p.Fetch(ctx, FetchRequest{
		Method:    method,
		Params:    baseParams,
		Filter:    filter,
		PageSize:  pageSize,
		ReturnAll: returnAll,
	})
}

// Fetch returns a lazy, forward-only sequence of the records of req.
//
// Pages are fetched on demand. After each page the enumeration stops when
// the page returned fewer than PageSize items, when ReturnAll is false, or
// when the reported current page reached the reported page count. Breaking
// out of the range issues no further calls. A fetch error is yielded once
// and ends the sequence; records of earlier pages stay delivered. The
// sequence can be ranged over only once.
func (p *Paginator) Fetch(ctx context.Context, req FetchRequest) iter.Seq2[projection.Record, error] {
	req = normalizeRequest(req)
	var consumed atomic.Bool

	return func(yield func(projection.Record, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(nil, ErrSequenceConsumed)
			return
		}

		pageNumber := req.StartPage
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			page, err := p.fetchPage(ctx, req, pageNumber)
			if err != nil {
				yield(nil, err)
				return
			}
			p.notify(ctx, req, page, pageNumber)

			for _, rec := range page.Records {
				if !yield(rec, nil) {
					return
				}
			}

			if shouldStop(req, page) {
				return
			}
			pageNumber++
		}
	}
}

// shouldStop applies the stop rules in order
func shouldStop(req FetchRequest, page *Page) bool {
	if page.ItemCount < req.PageSize {
		return true
	}
	if !req.ReturnAll {
		return true
	}
	// a missing page count is unknown, not zero
	if page.Meta.NumberOfPages > 0 && page.Meta.CurrentPage >= page.Meta.NumberOfPages {
		return true
	}
	return false
}

func (p *Paginator) fetchPage(ctx context.Context, req FetchRequest, pageNumber int) (*Page, error) {
	params := make(map[string]any, len(req.Params)+3)
	maps.Copy(params, req.Params)
	params["page"] = pageNumber
	params["limit"] = req.PageSize
	if len(req.Filter) > 0 {
		params["filter"] = req.Filter
	}

	delay := p.retryDelay
	for attempt := 0; ; attempt++ {
		result, err := p.caller.Call(ctx, req.Method, params)
		if err == nil {
			return decodePage(result, req.ItemsKey, pageNumber, req.PageSize)
		}
		if !IsRetryable(err) || attempt >= p.retryAttempts {
			return nil, err
		}

		p.logger.Warn("Page fetch failed, retrying",
			zap.String("method", req.Method),
			zap.Int("page", pageNumber),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return nil, err
		}
		delay *= 2
	}
}

func (p *Paginator) notify(ctx context.Context, req FetchRequest, page *Page, pageNumber int) {
	info := PageInfo{
		Method:     req.Method,
		Page:       pageNumber,
		TotalPages: page.Meta.NumberOfPages,
		Records:    len(page.Records),
		PageSize:   req.PageSize,
	}
	p.logger.Debug("Page fetched",
		zap.String("method", info.Method),
		zap.Int("page", info.Page),
		zap.Int("total_pages", info.TotalPages),
		zap.Int("records", info.Records),
	)
	for _, observer := range p.observers {
		observer(ctx, info)
	}
	if req.OnPage != nil {
		req.OnPage(ctx, info)
	}
}

func normalizeRequest(req FetchRequest) FetchRequest {
	switch {
	case req.PageSize <= 0:
		req.PageSize = DefaultPageSize
	case req.PageSize > MaxPageSize:
		req.PageSize = MaxPageSize
	}
	if req.StartPage < 1 {
		req.StartPage = 1
	}
	return req
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
