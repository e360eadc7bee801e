package pimsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/domain/projection"
	"github.com/pimsync/backend/internal/domain/shared"
	"github.com/pimsync/backend/internal/infrastructure/cache"
	"github.com/pimsync/backend/internal/infrastructure/config"
	"github.com/pimsync/backend/internal/infrastructure/event"
	"github.com/pimsync/backend/internal/infrastructure/persistence"
	"github.com/pimsync/backend/internal/infrastructure/pim"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// fakeSource serves fixed pages and can fail on a given page
type fakeSource struct {
	pages  [][]projection.Record
	failAt int
	err    error

	mu      sync.Mutex
	methods []string
	since   time.Time
	fetched int
	queries []integration.ListQuery
}

func (f *fakeSource) Products(ctx context.Context, q integration.ListQuery) iter.Seq2[projection.Record, error] {
	return f.seq(ctx, "products", q)
}

func (f *fakeSource) ProductsModifiedSince(ctx context.Context, since time.Time, q integration.ListQuery) iter.Seq2[projection.Record, error] {
	f.mu.Lock()
	f.since = since
	f.mu.Unlock()
	return f.seq(ctx, "products_modified_since", q)
}

func (f *fakeSource) GroupedProducts(ctx context.Context, q integration.ListQuery) iter.Seq2[projection.Record, error] {
	return f.seq(ctx, "grouped_products", q)
}

func (f *fakeSource) seq(ctx context.Context, method string, q integration.ListQuery) iter.Seq2[projection.Record, error] {
	f.mu.Lock()
	f.methods = append(f.methods, method)
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	return func(yield func(projection.Record, error) bool) {
		for i, page := range f.pages {
			n := i + 1
			if n == f.failAt {
				yield(nil, f.err)
				return
			}
			f.mu.Lock()
			f.fetched++
			f.mu.Unlock()
			if q.OnPage != nil {
				q.OnPage(ctx, integration.PageStats{Method: method, Page: n, TotalPages: len(f.pages), Records: len(page)})
			}
			for _, r := range page {
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}

// failingWriter fails every write to one entity
type failingWriter struct {
	next     integration.FieldWriter
	entityID string
}

func (w *failingWriter) WriteField(ctx context.Context, entityID, fieldName string, value any) error {
	if entityID == w.entityID {
		return integration.ErrFieldStoreUnavailable
	}
	return w.next.WriteField(ctx, entityID, fieldName, value)
}

// MockSyncRunRepository is a mock implementation of integration.SyncRunRepository
type MockSyncRunRepository struct {
	mock.Mock
}

func (m *MockSyncRunRepository) Save(ctx context.Context, run *integration.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncRun), args.Error(1)
}

func (m *MockSyncRunRepository) FindRecent(ctx context.Context, limit int) ([]integration.SyncRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncRun), args.Error(1)
}

func (m *MockSyncRunRepository) LastWatermark(ctx context.Context) (*integration.SyncRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncRun), args.Error(1)
}

func product(id, gtin string) projection.Record {
	r := projection.Record{"brand_name": "ACME"}
	if id != "" {
		r["product_id"] = json.Number(id)
	}
	if gtin != "" {
		r["product_gtin"] = gtin
	}
	return r
}

func readFields(t *testing.T, store *cache.InMemoryFieldStore, entityID string) map[string]string {
	t.Helper()
	fields, err := store.ReadFields(context.Background(), entityID)
	require.NoError(t, err)
	return fields
}

// ---------------------------------------------------------------------------
// Run Tests
// ---------------------------------------------------------------------------

func TestSyncService_Run_Full(t *testing.T) {
	source := &fakeSource{pages: [][]projection.Record{
		{product("1", "111"), product("", "999")},
		{product("2", "222")},
	}}
	store := cache.NewInMemoryFieldStore()
	svc := NewSyncService(source, store, Config{Options: projection.DefaultSyncOptions(), PageSize: 50})

	result, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, integration.SyncModeFull, result.Mode)
	assert.Equal(t, integration.SyncStatusSuccess, result.Status)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Projected)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 4, result.Written)
	assert.Empty(t, result.FailedItems)
	assert.NotNil(t, result.FinishedAt)

	assert.Equal(t, []string{"products"}, source.methods)
	assert.Equal(t, 50, source.queries[0].PageSize)
	assert.Equal(t, map[string]string{"dest_gtin": `"111"`, "dest_brand": `"ACME"`}, readFields(t, store, "product:1"))
	assert.Equal(t, []string{"product:1", "product:2"}, store.Entities())
}

func TestSyncService_Run_RequestOverrides(t *testing.T) {
	tests := []struct {
		name          string
		req           RunRequest
		wantPageSize  int
		wantReturnAll bool
		wantStart     int
		wantBounded   bool
	}{
		{name: "defaults walk every page", req: RunRequest{}, wantPageSize: 50, wantReturnAll: true},
		{name: "one page", req: RunRequest{OnePage: true}, wantPageSize: 50, wantBounded: true},
		{name: "later start page", req: RunRequest{PageSize: 10, StartPage: 3}, wantPageSize: 10, wantReturnAll: true, wantStart: 3, wantBounded: true},
		{name: "explicit first page", req: RunRequest{StartPage: 1}, wantPageSize: 50, wantReturnAll: true, wantStart: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{pages: [][]projection.Record{{product("1", "111")}}}
			svc := NewSyncService(source, cache.NewInMemoryFieldStore(), Config{PageSize: 50})

			result, err := svc.Run(context.Background(), tt.req)
			require.NoError(t, err)

			q := source.queries[0]
			assert.Equal(t, tt.wantPageSize, q.PageSize)
			assert.Equal(t, tt.wantReturnAll, q.ReturnAll)
			assert.Equal(t, tt.wantStart, q.StartPage)
			assert.Equal(t, tt.wantBounded, result.Bounded)
			assert.Equal(t, integration.SyncStatusSuccess, result.Status)
		})
	}
}

func TestSyncService_Run_InvalidMode(t *testing.T) {
	svc := NewSyncService(&fakeSource{}, cache.NewInMemoryFieldStore(), Config{})

	result, err := svc.Run(context.Background(), RunRequest{Mode: "DELTA"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, integration.ErrInvalidSyncMode)
}

func TestSyncService_Run_WriteFailure(t *testing.T) {
	tests := []struct {
		name       string
		failEntity string
		wantStatus integration.SyncStatus
		wantFailed int
	}{
		{name: "one of two fails", failEntity: "product:2", wantStatus: integration.SyncStatusPartial, wantFailed: 1},
		{name: "none fail", failEntity: "product:9", wantStatus: integration.SyncStatusSuccess, wantFailed: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{pages: [][]projection.Record{{product("1", "111"), product("2", "222")}}}
			store := cache.NewInMemoryFieldStore()
			writer := &failingWriter{next: store, entityID: tt.failEntity}
			svc := NewSyncService(source, writer, Config{Options: projection.DefaultSyncOptions()})

			result, err := svc.Run(context.Background(), RunRequest{})
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantFailed, result.Failed)
			assert.Len(t, result.FailedItems, tt.wantFailed)
			if tt.wantFailed > 0 {
				assert.Equal(t, tt.failEntity, result.FailedItems[0].EntityID)
				assert.Contains(t, result.FailedItems[0].ErrorMessage, "dest_gtin")
			}
		})
	}
}

func TestSyncService_Run_AllWritesFail(t *testing.T) {
	source := &fakeSource{pages: [][]projection.Record{{product("1", "111")}}}
	writer := &failingWriter{next: cache.NewInMemoryFieldStore(), entityID: "product:1"}
	svc := NewSyncService(source, writer, Config{})

	result, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusFailed, result.Status)
}

func TestSyncService_Run_PageError(t *testing.T) {
	remoteErr := &pim.RPCError{
		Kind:    pim.ErrRemote,
		Message: "session expired",
		Data:    json.RawMessage(`{"reason":"token"}`),
	}

	tests := []struct {
		name       string
		failAt     int
		wantStatus integration.SyncStatus
		wantPages  int
	}{
		{name: "after first page", failAt: 2, wantStatus: integration.SyncStatusPartial, wantPages: 1},
		{name: "on first page", failAt: 1, wantStatus: integration.SyncStatusFailed, wantPages: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{
				pages:  [][]projection.Record{{product("1", "111")}, {product("2", "222")}},
				failAt: tt.failAt,
				err:    remoteErr,
			}
			svc := NewSyncService(source, cache.NewInMemoryFieldStore(), Config{})

			result, err := svc.Run(context.Background(), RunRequest{})
			require.Error(t, err)
			assert.ErrorIs(t, err, integration.ErrSyncRunFailed)
			assert.ErrorIs(t, err, pim.ErrRemote)

			require.NotNil(t, result)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantPages, result.Pages)
			assert.Contains(t, result.Error, "session expired")
			assert.JSONEq(t, `{"reason":"token"}`, result.ErrorData)
		})
	}
}

func TestSyncService_Run_Deadline(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var ticks int
	clock := func() time.Time {
		now := start.Add(time.Duration(ticks) * time.Minute)
		ticks++
		return now
	}

	source := &fakeSource{pages: [][]projection.Record{
		{product("1", "111")},
		{product("2", "222")},
		{product("3", "333")},
	}}
	svc := NewSyncService(source, cache.NewInMemoryFieldStore(), Config{MaxRunDuration: 90 * time.Second}, WithClock(clock))

	result, err := svc.Run(context.Background(), RunRequest{})
	assert.ErrorIs(t, err, integration.ErrSyncRunDeadline)
	require.NotNil(t, result)
	assert.Equal(t, integration.SyncStatusPartial, result.Status)
	assert.Equal(t, 1, result.Projected)
	assert.Equal(t, 2, source.fetched, "no page is fetched after the deadline")
}

func TestSyncService_Run_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{pages: [][]projection.Record{{product("1", "111")}}}
	repo := new(MockSyncRunRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	svc := NewSyncService(source, cache.NewInMemoryFieldStore(), Config{}, WithRunRepository(repo))

	result, err := svc.Run(ctx, RunRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, integration.ErrSyncRunFailed)
	assert.Equal(t, integration.SyncStatusFailed, result.Status)
	repo.AssertNumberOfCalls(t, "Save", 2)
}

func TestSyncService_Run_Grouped(t *testing.T) {
	source := &fakeSource{pages: [][]projection.Record{{
		{"grouped_product_id": json.Number("7"), "grouped_product_name": "Drills", "internal_product_code": "D-1"},
	}}}
	store := cache.NewInMemoryFieldStore()
	svc := NewSyncService(source, store, Config{})

	result, err := svc.Run(context.Background(), RunRequest{Mode: integration.SyncModeGrouped})
	require.NoError(t, err)

	assert.Equal(t, []string{"grouped_products"}, source.methods)
	assert.Equal(t, 1, result.Projected)
	assert.Equal(t, map[string]string{
		projection.FieldGroupID:   "7",
		projection.FieldGroupName: `"Drills"`,
		projection.FieldGroupCode: `"D-1"`,
	}, readFields(t, store, "group:7"))
}

// ---------------------------------------------------------------------------
// Incremental Tests
// ---------------------------------------------------------------------------

func TestSyncService_Run_Incremental(t *testing.T) {
	lastStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	watermark := func(repo *MockSyncRunRepository) {
		last := &integration.SyncRun{Mode: integration.SyncModeFull, Status: integration.SyncStatusSuccess, StartedAt: &lastStart}
		repo.On("LastWatermark", mock.Anything).Return(last, nil)
	}
	noHistory := func(repo *MockSyncRunRepository) {
		repo.On("LastWatermark", mock.Anything).Return(nil, integration.ErrSyncRunNotFound)
	}

	tests := []struct {
		name        string
		since       *time.Time
		setupRepo   func(*MockSyncRunRepository)
		wantMode    integration.SyncMode
		wantMethod  string
		wantSince   time.Time
		wantBounded bool
	}{
		{
			name:       "last complete run",
			setupRepo:  watermark,
			wantMode:   integration.SyncModeIncremental,
			wantMethod: "products_modified_since",
			wantSince:  lastStart,
		},
		{
			name:       "explicit timestamp before the last complete run",
			since:      &earlier,
			setupRepo:  watermark,
			wantMode:   integration.SyncModeIncremental,
			wantMethod: "products_modified_since",
			wantSince:  earlier,
		},
		{
			name:        "explicit timestamp after the last complete run",
			since:       &later,
			setupRepo:   watermark,
			wantMode:    integration.SyncModeIncremental,
			wantMethod:  "products_modified_since",
			wantSince:   later,
			wantBounded: true,
		},
		{
			name:        "explicit timestamp without history",
			since:       &later,
			setupRepo:   noHistory,
			wantMode:    integration.SyncModeIncremental,
			wantMethod:  "products_modified_since",
			wantSince:   later,
			wantBounded: true,
		},
		{
			name:       "no history falls back to full",
			setupRepo:  noHistory,
			wantMode:   integration.SyncModeFull,
			wantMethod: "products",
		},
		{
			name: "repository error falls back to full",
			setupRepo: func(repo *MockSyncRunRepository) {
				repo.On("LastWatermark", mock.Anything).Return(nil, errors.New("db down"))
			},
			wantMode:   integration.SyncModeFull,
			wantMethod: "products",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{pages: [][]projection.Record{{product("1", "111")}}}
			repo := new(MockSyncRunRepository)
			repo.On("Save", mock.Anything, mock.Anything).Return(nil)
			tt.setupRepo(repo)
			svc := NewSyncService(source, cache.NewInMemoryFieldStore(), Config{}, WithRunRepository(repo))

			result, err := svc.Run(context.Background(), RunRequest{Mode: integration.SyncModeIncremental, UpdatedSince: tt.since})
			require.NoError(t, err)

			assert.Equal(t, tt.wantMode, result.Mode)
			assert.Equal(t, tt.wantBounded, result.Bounded)
			assert.Equal(t, []string{tt.wantMethod}, source.methods)
			assert.True(t, tt.wantSince.Equal(source.since))
			repo.AssertExpectations(t)
		})
	}
}

// TestSyncService_Run_IncrementalChain runs against sqlite run history: the
// first incremental run falls back to FULL and each later one starts from
// the previous run's start time.
func TestSyncService_Run_IncrementalChain(t *testing.T) {
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	source := &fakeSource{pages: [][]projection.Record{{product("1", "111")}}}
	svc := NewSyncService(source, cache.NewInMemoryFieldStore(), Config{},
		WithRunRepository(persistence.NewGormSyncRunRepository(db.DB)))
	ctx := context.Background()

	first, err := svc.Run(ctx, RunRequest{Mode: integration.SyncModeIncremental})
	require.NoError(t, err)
	assert.Equal(t, integration.SyncModeFull, first.Mode)
	assert.False(t, first.Bounded)

	previous := first
	for i := range 2 {
		result, err := svc.Run(ctx, RunRequest{Mode: integration.SyncModeIncremental})
		require.NoError(t, err)
		assert.Equal(t, integration.SyncModeIncremental, result.Mode, "run %d", i+2)
		require.NotNil(t, result.UpdatedSince)
		assert.WithinDuration(t, *previous.StartedAt, *result.UpdatedSince, time.Millisecond)
		previous = result
	}

	// a one-page run succeeds but does not move the starting point
	bounded, err := svc.Run(ctx, RunRequest{Mode: integration.SyncModeIncremental, OnePage: true})
	require.NoError(t, err)
	assert.True(t, bounded.Bounded)

	result, err := svc.Run(ctx, RunRequest{Mode: integration.SyncModeIncremental})
	require.NoError(t, err)
	assert.WithinDuration(t, *previous.StartedAt, *result.UpdatedSince, time.Millisecond)

	assert.Equal(t, []string{"products", "products_modified_since", "products_modified_since", "products_modified_since", "products_modified_since"}, source.methods)
}

// TestSyncService_Run_PagedRemote drives the real client, Paginator and Source
// against a remote that reports three full pages.
func TestSyncService_Run_PagedRemote(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Params struct {
				Page int `json:"page"`
			} `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		calls.Add(1)
		id := req.Params.Page * 10
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{
			"products":[{"product_id":%d,"product_gtin":"a"},{"product_id":%d,"product_gtin":"b"}],
			"page":{"current_page":%d,"number_of_pages":3}
		}}`, id, id+1, req.Params.Page)
	}))
	defer server.Close()

	client, err := pim.NewClient(pim.NewConfig(server.URL, pim.AuthSchemeBearer, "secret"))
	require.NoError(t, err)
	source := pim.NewSource(pim.NewPaginator(client))

	tests := []struct {
		name        string
		req         RunRequest
		wantCalls   int32
		wantFetched int
		wantBounded bool
	}{
		{name: "default request walks every page", req: RunRequest{}, wantCalls: 3, wantFetched: 6},
		{name: "one page", req: RunRequest{OnePage: true}, wantCalls: 1, wantFetched: 2, wantBounded: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls.Store(0)
			store := cache.NewInMemoryFieldStore()
			svc := NewSyncService(source, store, Config{Options: projection.DefaultSyncOptions(), PageSize: 2})

			result, err := svc.Run(context.Background(), tt.req)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCalls, calls.Load())
			assert.Equal(t, integration.SyncStatusSuccess, result.Status)
			assert.Equal(t, tt.wantFetched, result.Fetched)
			assert.Equal(t, tt.wantFetched, result.Projected)
			assert.Equal(t, int(tt.wantCalls), result.Pages)
			assert.Equal(t, tt.wantBounded, result.Bounded)
			assert.Len(t, store.Entities(), tt.wantFetched)
		})
	}
}

func TestSyncService_Run_IncrementalWithoutRepository(t *testing.T) {
	source := &fakeSource{}
	svc := NewSyncService(source, cache.NewInMemoryFieldStore(), Config{})

	result, err := svc.Run(context.Background(), RunRequest{Mode: integration.SyncModeIncremental})
	require.NoError(t, err)
	assert.Equal(t, integration.SyncModeFull, result.Mode)
}

// ---------------------------------------------------------------------------
// Options, Hooks and Events
// ---------------------------------------------------------------------------

func TestSyncService_OptionsSnapshot(t *testing.T) {
	source := &fakeSource{pages: [][]projection.Record{{product("1", "111"), product("2", "222")}}}
	store := cache.NewInMemoryFieldStore()
	svc := NewSyncService(source, store, Config{Options: projection.DefaultSyncOptions()})

	custom := projection.DefaultSyncOptions()
	custom.CustomFieldMap = []projection.FieldMapping{{Source: "brand_name", Destination: "custom_brand"}}
	svc.Hooks().OnRecordProjected(func(ctx context.Context, runID, entityID string, result projection.Result) error {
		svc.UpdateOptions(custom)
		return nil
	})

	_, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Contains(t, readFields(t, store, "product:2"), "dest_brand", "running run keeps its snapshot")

	other := cache.NewInMemoryFieldStore()
	svc2 := NewSyncService(source, other, Config{Options: svc.Options()})
	_, err = svc2.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Contains(t, readFields(t, other, "product:1"), "custom_brand")
}

func TestSyncService_UpdateOptions_Copies(t *testing.T) {
	svc := NewSyncService(&fakeSource{}, cache.NewInMemoryFieldStore(), Config{})

	opts := projection.SyncOptions{CustomFieldMap: []projection.FieldMapping{{Source: "a", Destination: "b"}}}
	svc.UpdateOptions(opts)
	opts.CustomFieldMap[0].Destination = "changed"

	assert.Equal(t, "b", svc.Options().CustomFieldMap[0].Destination)
}

func TestSyncService_Hooks(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	source := &fakeSource{pages: [][]projection.Record{{product("1", "111")}, {product("2", "222")}}}
	svc := NewSyncService(source, cache.NewInMemoryFieldStore(), Config{}, WithLogger(zap.New(core)))

	var pages []int
	var entities []string
	var finished *RunResult
	svc.Hooks().OnPageFetched(func(ctx context.Context, runID string, page integration.PageStats) error {
		pages = append(pages, page.Page)
		return nil
	})
	svc.Hooks().OnPageFetched(func(ctx context.Context, runID string, page integration.PageStats) error {
		panic("boom")
	})
	svc.Hooks().OnRecordProjected(func(ctx context.Context, runID, entityID string, result projection.Result) error {
		entities = append(entities, entityID)
		return errors.New("hook failed")
	})
	svc.Hooks().OnRunCompleted(func(ctx context.Context, result *RunResult) error {
		finished = result
		return nil
	})

	result, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, integration.SyncStatusSuccess, result.Status)
	assert.Equal(t, []int{1, 2}, pages)
	assert.Equal(t, []string{"product:1", "product:2"}, entities)
	require.NotNil(t, finished)
	assert.Equal(t, result.RunID, finished.RunID)

	assert.Equal(t, 2, logs.FilterMessage("Sync hook panicked").Len())
	assert.Equal(t, 2, logs.FilterMessage("Sync hook failed").Len())
}

func TestSyncService_Events(t *testing.T) {
	bus := event.NewInMemoryEventBus(zap.NewNop())
	var mu sync.Mutex
	counts := map[string]int{}
	bus.Subscribe(shared.NewEventHandlerFunc(func(ctx context.Context, e shared.DomainEvent) error {
		mu.Lock()
		defer mu.Unlock()
		counts[e.EventType()]++
		return nil
	}))

	source := &fakeSource{pages: [][]projection.Record{{product("1", "111"), product("2", "222")}}}
	svc := NewSyncService(source, cache.NewInMemoryFieldStore(), Config{}, WithEventPublisher(bus))

	_, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		integration.EventTypePageFetched:         1,
		integration.EventTypeProjectionCompleted: 2,
		integration.EventTypeRunCompleted:        1,
	}, counts)
}

func TestSyncService_MappingWarningsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	opts := projection.DefaultSyncOptions()
	opts.CustomFieldMap = []projection.FieldMapping{{Source: "", Destination: "x"}, {Source: "y", Destination: " "}}
	svc := NewSyncService(&fakeSource{}, cache.NewInMemoryFieldStore(), Config{Options: opts}, WithLogger(zap.New(core)))

	_, err := svc.Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	entries := logs.FilterMessage("Dropped custom field mapping").All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[1].ContextMap()["index"])
}

func TestSyncService_ConcurrentRuns(t *testing.T) {
	source := &fakeSource{pages: [][]projection.Record{{product("1", "111"), product("2", "222")}}}
	store := cache.NewInMemoryFieldStore()
	svc := NewSyncService(source, store, Config{})

	var wg sync.WaitGroup
	results := make([]*RunResult, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.Run(context.Background(), RunRequest{})
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	wg.Wait()

	ids := map[uuid.UUID]bool{}
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, 2, r.Projected)
		ids[r.RunID] = true
	}
	assert.Len(t, ids, 4)
	assert.Equal(t, `"222"`, readFields(t, store, "product:2")["dest_gtin"])
}

// ---------------------------------------------------------------------------
// History Tests
// ---------------------------------------------------------------------------

func TestSyncService_History(t *testing.T) {
	t.Run("without repository", func(t *testing.T) {
		svc := NewSyncService(&fakeSource{}, cache.NewInMemoryFieldStore(), Config{})

		runs, err := svc.ListRuns(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, runs)

		_, err = svc.GetRun(context.Background(), uuid.New())
		assert.ErrorIs(t, err, integration.ErrSyncRunNotFound)
	})

	t.Run("with repository", func(t *testing.T) {
		run, err := integration.NewSyncRun(integration.SyncModeFull, nil)
		require.NoError(t, err)
		repo := new(MockSyncRunRepository)
		repo.On("FindRecent", mock.Anything, 5).Return([]integration.SyncRun{*run}, nil)
		repo.On("FindByID", mock.Anything, run.ID).Return(run, nil)
		svc := NewSyncService(&fakeSource{}, cache.NewInMemoryFieldStore(), Config{}, WithRunRepository(repo))

		runs, err := svc.ListRuns(context.Background(), 5)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, run.ID, runs[0].RunID)

		got, err := svc.GetRun(context.Background(), run.ID)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusPending, got.Status)
		repo.AssertExpectations(t)
	})
}
