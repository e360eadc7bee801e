package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pimsync/backend/internal/domain/projection"
	"github.com/pimsync/backend/internal/infrastructure/pim"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PIMSYNC_PIM_ENDPOINT", "https://pim.example.com/jsonrpc")
	t.Setenv("PIMSYNC_PIM_TOKEN", "secret")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when only required env vars set", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "pimsync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "bearer", cfg.PIM.AuthScheme)
		assert.Equal(t, pim.DefaultTokenHeader, cfg.PIM.TokenHeader)
		assert.Equal(t, 30*time.Second, cfg.PIM.Timeout)
		assert.Equal(t, 100, cfg.Sync.PageSize)
		assert.True(t, cfg.Sync.SyncAttributes)
		assert.False(t, cfg.Sync.SyncTradeItems)
		assert.False(t, cfg.Sync.SyncTranslations)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, StoreAuto, cfg.Store.Type)
		assert.Equal(t, "pimsync:entity:", cfg.Redis.KeyPrefix)
	})

	t.Run("environment variables override defaults", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PIMSYNC_PIM_AUTH_SCHEME", "TOKEN")
		t.Setenv("PIMSYNC_SYNC_SYNC_ATTRIBUTES", "false")
		t.Setenv("PIMSYNC_SYNC_SYNC_TRADE_ITEMS", "true")
		t.Setenv("PIMSYNC_SYNC_PAGE_SIZE", "250")
		t.Setenv("PIMSYNC_STORE_TYPE", "redis")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "token", cfg.PIM.AuthScheme)
		assert.False(t, cfg.Sync.SyncAttributes)
		assert.True(t, cfg.Sync.SyncTradeItems)
		assert.Equal(t, 250, cfg.Sync.PageSize)
		assert.Equal(t, StoreRedis, cfg.Store.Type)
	})

	t.Run("missing endpoint fails validation", func(t *testing.T) {
		t.Setenv("PIMSYNC_PIM_TOKEN", "secret")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Endpoint")
	})
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[pim]
endpoint = "http://localhost:8069/jsonrpc"
auth_scheme = "token"
token = "abc"
timeout = "10s"
retry_attempts = 2

[sync]
sync_translations = true
max_run_duration = "15m"

[[sync.custom_field_map]]
source = "supplier_code"
destination = "dest_supplier"

[[sync.custom_field_map]]
source = "ean"
destination = "dest_gtin"

[database]
driver = "sqlite"
path = ":memory:"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.PIM.Timeout)
	assert.Equal(t, pim.DefaultRetryDelay, cfg.PIM.RetryDelay)
	assert.Equal(t, 15*time.Minute, cfg.Sync.MaxRunDuration)
	assert.True(t, cfg.Sync.SyncAttributes)
	assert.True(t, cfg.Sync.SyncTranslations)
	assert.Equal(t, []projection.FieldMapping{
		{Source: "supplier_code", Destination: "dest_supplier"},
		{Source: "ean", Destination: "dest_gtin"},
	}, cfg.Sync.CustomFieldMap)
	assert.Equal(t, ":memory:", cfg.Database.DSN())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{PIM: PIMConfig{Endpoint: "https://pim.example.com", Token: "t"}}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad auth scheme", func(c *Config) { c.PIM.AuthScheme = "basic" }, true},
		{"endpoint not a url", func(c *Config) { c.PIM.Endpoint = "not a url" }, true},
		{"missing token", func(c *Config) { c.PIM.Token = "" }, true},
		{"page size too large", func(c *Config) { c.Sync.PageSize = 5000 }, true},
		{"unknown store", func(c *Config) { c.Store.Type = "s3" }, true},
		{"idle exceeds open", func(c *Config) { c.Database.MaxIdleConns = 50 }, true},
		{"sub-second timeout", func(c *Config) { c.PIM.Timeout = 100 * time.Millisecond }, false},
		{"negative timeout", func(c *Config) { c.PIM.Timeout = -time.Second }, true},
		{"production without ssl", func(c *Config) { c.App.Env = "production" }, true},
		{"production sqlite", func(c *Config) {
			c.App.Env = "production"
			c.Database.Driver = "sqlite"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Conversions
// ----------------------------------------------------------------------------

func TestConfig_PIMClientConfig(t *testing.T) {
	cfg := &Config{PIM: PIMConfig{
		Endpoint:          "https://pim.example.com",
		AuthScheme:        "token",
		Token:             "t",
		RequestsPerSecond: 5,
		RetryAttempts:     3,
	}}
	applyDefaults(cfg)

	pc := cfg.PIMClientConfig()
	require.NoError(t, pc.Validate())
	assert.Equal(t, pim.AuthSchemeToken, pc.AuthScheme)
	assert.Equal(t, 30*time.Second, pc.Timeout)

	cfg.PIM.Timeout = 1500 * time.Millisecond
	assert.Equal(t, 1500*time.Millisecond, cfg.PIMClientConfig().Timeout)
	assert.Equal(t, float64(5), pc.RequestsPerSecond)
	assert.Equal(t, 3, pc.RetryAttempts)
	assert.Equal(t, pim.DefaultRetryDelay, pc.RetryDelay)
}

func TestConfig_SyncOptionsIsSnapshot(t *testing.T) {
	cfg := &Config{Sync: SyncConfig{
		SyncAttributes: true,
		CustomFieldMap: []projection.FieldMapping{{Source: "a", Destination: "b"}},
	}}

	opts := cfg.SyncOptions()
	cfg.Sync.CustomFieldMap[0].Destination = "changed"

	assert.True(t, opts.SyncAttributes)
	assert.Equal(t, "b", opts.CustomFieldMap[0].Destination)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Driver: "postgres", Host: "db", Port: 5432,
		User: "u", Password: "p@ss", DBName: "pimsync", SSLMode: "require",
	}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/pimsync?sslmode=require", d.DSN())
}
