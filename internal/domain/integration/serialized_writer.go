package integration

import (
	"context"
	"sync"
)

// SerializedWriter wraps a FieldWriter so that writes targeting the same
// entity never run concurrently. Writes to different entities proceed in
// parallel.
type SerializedWriter struct {
	next  FieldWriter
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

// NewSerializedWriter wraps next
func NewSerializedWriter(next FieldWriter) *SerializedWriter {
	return &SerializedWriter{
		next:  next,
		locks: make(map[string]*entityLock),
	}
}

// WriteField implements FieldWriter
func (w *SerializedWriter) WriteField(ctx context.Context, entityID, fieldName string, value any) error {
	unlock := w.lock(entityID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return w.next.WriteField(ctx, entityID, fieldName, value)
}

// WithEntity runs fn while holding the lock of entityID, so a whole batch
// of writes for one entity is applied without interleaving
func (w *SerializedWriter) WithEntity(entityID string, fn func(FieldWriter) error) error {
	unlock := w.lock(entityID)
	defer unlock()
	return fn(w.next)
}

func (w *SerializedWriter) lock(entityID string) func() {
	w.mu.Lock()
	l, ok := w.locks[entityID]
	if !ok {
		l = &entityLock{}
		w.locks[entityID] = l
	}
	l.refs++
	w.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		w.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(w.locks, entityID)
		}
		w.mu.Unlock()
	}
}

// activeLocks returns the number of entities currently locked or waited on
func (w *SerializedWriter) activeLocks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.locks)
}

var _ FieldWriter = (*SerializedWriter)(nil)
