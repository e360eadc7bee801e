package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pimsync/backend/internal/infrastructure/config"
)

// newSQLiteDatabase opens a migrated in-memory sqlite database
func newSQLiteDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:   "sqlite",
		Path:     ":memory:",
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}
