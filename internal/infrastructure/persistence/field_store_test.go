package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/domain/projection"
	"github.com/pimsync/backend/internal/infrastructure/persistence/models"
)

// newMockFieldStore creates a GormFieldStore on a mocked postgres connection
func newMockFieldStore(t *testing.T) (*GormFieldStore, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	return NewGormFieldStore(gormDB), mock, mockDB
}

const upsertFieldSQL = `INSERT INTO "entity_fields" .* ON CONFLICT \("entity_id","field_name"\) DO UPDATE SET "value"="excluded"."value","updated_at"="excluded"."updated_at"`

func TestGormFieldStore_Postgres(t *testing.T) {
	t.Run("write issues an upsert", func(t *testing.T) {
		store, mock, mockDB := newMockFieldStore(t)
		defer mockDB.Close()

		mock.ExpectExec(upsertFieldSQL).
			WithArgs("product:1", "ean", `"8712345678906"`, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.WriteField(context.Background(), "product:1", "ean", "8712345678906")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("write error is wrapped", func(t *testing.T) {
		store, mock, mockDB := newMockFieldStore(t)
		defer mockDB.Close()

		mock.ExpectExec(upsertFieldSQL).WillReturnError(errors.New("connection reset"))

		err := store.WriteField(context.Background(), "product:1", "ean", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "write field ean of product:1")
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("read fields", func(t *testing.T) {
		store, mock, mockDB := newMockFieldStore(t)
		defer mockDB.Close()

		rows := sqlmock.NewRows([]string{"entity_id", "field_name", "value", "updated_at"}).
			AddRow("product:1", "ean", `"123"`, time.Now()).
			AddRow("product:1", "dest_brand", `"Acme"`, time.Now())
		mock.ExpectQuery(`SELECT \* FROM "entity_fields" WHERE entity_id = \$1`).
			WithArgs("product:1").
			WillReturnRows(rows)

		fields, err := store.ReadFields(context.Background(), "product:1")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"ean": `"123"`, "dest_brand": `"Acme"`}, fields)
	})

	t.Run("ping failure is unavailable", func(t *testing.T) {
		store, mock, mockDB := newMockFieldStore(t)
		defer mockDB.Close()

		mock.ExpectPing().WillReturnError(errors.New("down"))

		err := store.Ping(context.Background())
		assert.ErrorIs(t, err, integration.ErrFieldStoreUnavailable)
	})
}

// ----------------------------------------------------------------------------
// sqlite behaviour
// ----------------------------------------------------------------------------

func TestGormFieldStore_SQLite(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated writes leave one row", func(t *testing.T) {
		db := newSQLiteDatabase(t)
		store := NewGormFieldStore(db.DB)

		for range 3 {
			require.NoError(t, store.WriteField(ctx, "product:1", "dest_brand", "Acme"))
		}

		var count int64
		require.NoError(t, db.DB.Model(&models.EntityFieldModel{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		fields, err := store.ReadFields(ctx, "product:1")
		require.NoError(t, err)
		assert.Equal(t, `"Acme"`, fields["dest_brand"])
	})

	t.Run("later write replaces value", func(t *testing.T) {
		db := newSQLiteDatabase(t)
		store := NewGormFieldStore(db.DB)

		require.NoError(t, store.WriteField(ctx, "product:1", "dest_status", "draft"))
		require.NoError(t, store.WriteField(ctx, "product:1", "dest_status", "active"))

		fields, err := store.ReadFields(ctx, "product:1")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"dest_status": `"active"`}, fields)
	})

	t.Run("structured values are stored as json", func(t *testing.T) {
		db := newSQLiteDatabase(t)
		store := NewGormFieldStore(db.DB)

		price := projection.PriceRecord{
			NetPrice: decimal.NewNullDecimal(decimal.RequireFromString("10.50")),
			Currency: "EUR",
		}
		require.NoError(t, store.WriteField(ctx, "product:2", projection.FieldPrices, []projection.PriceRecord{price}))

		fields, err := store.ReadFields(ctx, "product:2")
		require.NoError(t, err)
		assert.JSONEq(t,
			`[{"net_price":10.5,"gross_price":null,"currency":"EUR","price_on_request":false}]`,
			fields[projection.FieldPrices])
	})

	t.Run("entities are isolated", func(t *testing.T) {
		db := newSQLiteDatabase(t)
		store := NewGormFieldStore(db.DB)

		require.NoError(t, store.WriteField(ctx, "product:1", "ean", "1"))
		require.NoError(t, store.WriteField(ctx, "group:1", "ean", "2"))

		fields, err := store.ReadFields(ctx, "product:1")
		require.NoError(t, err)
		assert.Len(t, fields, 1)

		empty, err := store.ReadFields(ctx, "product:404")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("invalid writes are rejected", func(t *testing.T) {
		store := NewGormFieldStore(newSQLiteDatabase(t).DB)
		assert.ErrorIs(t, store.WriteField(ctx, "", "ean", "1"), integration.ErrEmptyEntityID)
		assert.ErrorIs(t, store.WriteField(ctx, "product:1", " ", "1"), integration.ErrEmptyFieldName)
		assert.ErrorIs(t, store.WriteField(ctx, "product:1", "x", make(chan int)), integration.ErrFieldValueEncoding)
	})

	t.Run("name and ping", func(t *testing.T) {
		store := NewGormFieldStore(newSQLiteDatabase(t).DB)
		assert.Equal(t, "database", store.Name())
		assert.NoError(t, store.Ping(ctx))
	})
}
