package cache

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/pimsync/backend/internal/domain/integration"
)

// InMemoryFieldStore implements integration.FieldStore in process memory.
// State is not shared across processes; it suits tests and single-instance
// runs without a database.
type InMemoryFieldStore struct {
	mu       sync.RWMutex
	entities map[string]map[string]string
}

var _ integration.FieldStore = (*InMemoryFieldStore)(nil)

// NewInMemoryFieldStore creates an empty store
func NewInMemoryFieldStore() *InMemoryFieldStore {
	return &InMemoryFieldStore{
		entities: make(map[string]map[string]string),
	}
}

// Name implements integration.FieldStore
func (s *InMemoryFieldStore) Name() string {
	return "memory"
}

// WriteField implements integration.FieldWriter
func (s *InMemoryFieldStore) WriteField(ctx context.Context, entityID, fieldName string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := integration.ValidateFieldWrite(entityID, fieldName); err != nil {
		return err
	}
	encoded, err := integration.EncodeFieldValue(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.entities[entityID]
	if !ok {
		fields = make(map[string]string)
		s.entities[entityID] = fields
	}
	fields[fieldName] = encoded
	return nil
}

// ReadFields returns a copy of the stored fields of entityID
func (s *InMemoryFieldStore) ReadFields(_ context.Context, entityID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.entities[entityID]))
	maps.Copy(out, s.entities[entityID])
	return out, nil
}

// Ping implements integration.FieldStore
func (s *InMemoryFieldStore) Ping(context.Context) error {
	return nil
}

// Entities returns the ids of every entity with at least one field, sorted
func (s *InMemoryFieldStore) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.entities))
}
