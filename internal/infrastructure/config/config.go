package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pimsync/backend/internal/domain/projection"
	"github.com/pimsync/backend/internal/infrastructure/pim"
	"github.com/pimsync/backend/internal/infrastructure/telemetry"
)

// EnvPrefix is the prefix of environment variable overrides
const EnvPrefix = "PIMSYNC"

// Store types selectable under store.type
const (
	StoreDatabase = "database"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
	StoreAuto     = "auto"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	PIM       PIMConfig
	Sync      SyncConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Store     StoreConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"omitempty,oneof=debug info warn warning error"`
	Format string `validate:"omitempty,oneof=json console"`
	Output string
}

// PIMConfig holds the remote JSON-RPC endpoint settings
type PIMConfig struct {
	Endpoint          string `validate:"required,url"`
	AuthScheme        string `validate:"required,oneof=bearer token"`
	Token             string `validate:"required"`
	TokenHeader       string
	Timeout           time.Duration `validate:"gte=0"`
	RequestsPerSecond float64       `validate:"gte=0"`
	Burst             int           `validate:"gte=0"`
	RetryAttempts     int           `validate:"gte=0,lte=10"`
	RetryDelay        time.Duration `validate:"gte=0"`
	ModifiedField     string
}

// SyncConfig holds the projection toggles and run limits
type SyncConfig struct {
	SyncAttributes   bool
	SyncTradeItems   bool
	SyncTranslations bool
	PageSize         int           `validate:"gte=1,lte=1000"`
	MaxRunDuration   time.Duration `validate:"gte=0"`
	CustomFieldMap   []projection.FieldMapping
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string `validate:"oneof=postgres sqlite"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file, ":memory:" allowed
	MaxOpenConns    int    `validate:"gt=0"`
	MaxIdleConns    int    `validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime int    // in minutes
	ConnMaxIdleTime int    // in minutes
	LogLevel        string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// StoreConfig selects the field store backend
type StoreConfig struct {
	Type string `validate:"oneof=database redis memory auto"`
}

// TelemetryConfig holds tracing options for database access
type TelemetryConfig struct {
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

var validate = validator.New()

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with PIMSYNC_ prefix (e.g., PIMSYNC_PIM_TOKEN)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from the given file; an empty path searches
// the default locations
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pimsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("sync.sync_attributes", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		PIM: PIMConfig{
			Endpoint:          v.GetString("pim.endpoint"),
			AuthScheme:        strings.ToLower(v.GetString("pim.auth_scheme")),
			Token:             v.GetString("pim.token"),
			TokenHeader:       v.GetString("pim.token_header"),
			Timeout:           v.GetDuration("pim.timeout"),
			RequestsPerSecond: v.GetFloat64("pim.requests_per_second"),
			Burst:             v.GetInt("pim.burst"),
			RetryAttempts:     v.GetInt("pim.retry_attempts"),
			RetryDelay:        v.GetDuration("pim.retry_delay"),
			ModifiedField:     v.GetString("pim.modified_field"),
		},
		Sync: SyncConfig{
			SyncAttributes:   v.GetBool("sync.sync_attributes"),
			SyncTradeItems:   v.GetBool("sync.sync_trade_items"),
			SyncTranslations: v.GetBool("sync.sync_translations"),
			PageSize:         v.GetInt("sync.page_size"),
			MaxRunDuration:   v.GetDuration("sync.max_run_duration"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Store: StoreConfig{
			Type: v.GetString("store.type"),
		},
		Telemetry: TelemetryConfig{
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	if err := v.UnmarshalKey("sync.custom_field_map", &cfg.Sync.CustomFieldMap); err != nil {
		return nil, fmt.Errorf("sync.custom_field_map: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pimsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.PIM.AuthScheme == "" {
		cfg.PIM.AuthScheme = string(pim.AuthSchemeBearer)
	}
	if cfg.PIM.TokenHeader == "" {
		cfg.PIM.TokenHeader = pim.DefaultTokenHeader
	}
	if cfg.PIM.Timeout == 0 {
		cfg.PIM.Timeout = pim.DefaultTimeout
	}
	if cfg.PIM.Burst == 0 {
		cfg.PIM.Burst = 1
	}
	if cfg.PIM.RetryAttempts > 0 && cfg.PIM.RetryDelay == 0 {
		cfg.PIM.RetryDelay = pim.DefaultRetryDelay
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = pim.DefaultPageSize
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "pimsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "pimsync.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "pimsync:entity:"
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreAuto
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// Validate checks struct tags plus the cross-field rules tags cannot express
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}
	return nil
}

// PIMClientConfig converts the PIM section into the client configuration
func (c *Config) PIMClientConfig() *pim.Config {
	cfg := pim.NewConfig(c.PIM.Endpoint, pim.AuthScheme(c.PIM.AuthScheme), c.PIM.Token)
	cfg.TokenHeader = c.PIM.TokenHeader
	cfg.Timeout = c.PIM.Timeout
	cfg.RequestsPerSecond = c.PIM.RequestsPerSecond
	cfg.Burst = c.PIM.Burst
	cfg.RetryAttempts = c.PIM.RetryAttempts
	cfg.RetryDelay = c.PIM.RetryDelay
	return cfg
}

// SyncOptions returns a fresh options snapshot from the sync section
func (c *Config) SyncOptions() projection.SyncOptions {
	opts := projection.SyncOptions{
		SyncAttributes:   c.Sync.SyncAttributes,
		SyncTradeItems:   c.Sync.SyncTradeItems,
		SyncTranslations: c.Sync.SyncTranslations,
	}
	if len(c.Sync.CustomFieldMap) > 0 {
		opts.CustomFieldMap = append([]projection.FieldMapping(nil), c.Sync.CustomFieldMap...)
	}
	return opts
}

// DBTracingConfig returns the otelgorm settings for the configured driver
func (c *Config) DBTracingConfig() telemetry.DBTracingConfig {
	cfg := telemetry.DefaultDBTracingConfig()
	cfg.Enabled = c.Telemetry.DBTraceEnabled
	cfg.WithoutVariables = !c.Telemetry.DBLogFullSQL
	if c.Database.Driver == "sqlite" {
		cfg.DBSystem = "sqlite"
	}
	return cfg
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
