package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and examples. It keys records by
// Ref.Identifier() and enforces conditional saves like FileStore.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[T]
	now     func() time.Time
}

type memoryRecord[T any] struct {
	snapshot T
	meta     Meta
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: map[string]memoryRecord[T]{}, now: time.Now}
}

func (s *MemoryStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return record.snapshot, cloneMeta(record.meta), true, nil
}

func (s *MemoryStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	tag, err := ETagOf(snapshot)
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if meta.ETag != "" {
		current, ok := s.records[key]
		if !ok || current.meta.ETag != meta.ETag {
			return Meta{}, fmt.Errorf("%w: expected %q for %s", ErrETagMismatch, meta.ETag, key)
		}
	}
	saved := stampMeta(meta, tag, s.now())
	s.records[key] = memoryRecord[T]{snapshot: snapshot, meta: saved}
	return cloneMeta(saved), nil
}

// Delete removes the record at ref.
func (s *MemoryStore[T]) Delete(_ context.Context, ref Ref) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

func stampMeta(meta Meta, tag string, now time.Time) Meta {
	saved := cloneMeta(meta)
	saved.ETag = tag
	saved.SnapshotID = uuid.NewString()
	saved.UpdatedAt = now.UTC()
	return saved
}
