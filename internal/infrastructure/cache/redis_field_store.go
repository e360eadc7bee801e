package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pimsync/backend/internal/domain/integration"
	"github.com/pimsync/backend/internal/infrastructure/config"
)

// DefaultKeyPrefix prefixes the per-entity hash keys
const DefaultKeyPrefix = "pimsync:entity:"

// RedisFieldStore implements integration.FieldStore with one Redis hash per
// entity. HSET replaces a field in place, so repeated writes are idempotent.
type RedisFieldStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ integration.FieldStore = (*RedisFieldStore)(nil)

// NewRedisFieldStore connects to Redis and verifies the connection
func NewRedisFieldStore(cfg config.RedisConfig) (*RedisFieldStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisFieldStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisFieldStoreWithClient creates a store with an existing Redis client
func NewRedisFieldStoreWithClient(client *redis.Client, keyPrefix string) *RedisFieldStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisFieldStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Name implements integration.FieldStore
func (s *RedisFieldStore) Name() string {
	return "redis"
}

// Key returns the hash key holding the fields of entityID
func (s *RedisFieldStore) Key(entityID string) string {
	return s.keyPrefix + entityID
}

// WriteField sets one hash field to the JSON encoding of value
func (s *RedisFieldStore) WriteField(ctx context.Context, entityID, fieldName string, value any) error {
	if err := integration.ValidateFieldWrite(entityID, fieldName); err != nil {
		return err
	}
	encoded, err := integration.EncodeFieldValue(value)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.Key(entityID), fieldName, encoded).Err(); err != nil {
		return fmt.Errorf("%w: write field %s of %s: %v", integration.ErrFieldStoreUnavailable, fieldName, entityID, err)
	}
	return nil
}

// ReadFields returns every field of the entity hash
func (s *RedisFieldStore) ReadFields(ctx context.Context, entityID string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, s.Key(entityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read fields of %s: %v", integration.ErrFieldStoreUnavailable, entityID, err)
	}
	return fields, nil
}

// Ping implements integration.FieldStore
func (s *RedisFieldStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrFieldStoreUnavailable, err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisFieldStore) Close() error {
	return s.client.Close()
}
