package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/domain/bridge"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. All mutations happen under a single mutex, which gives the
// coordinator the one-writer-at-a-time semantics it relies on.
type Store struct {
	mu     sync.RWMutex
	nextID uint64
	locks  map[uint64]bridge.LockRecord
	events []bridge.Event
}

var _ storage.LockStore = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)

// defaultEventLimit bounds ListEvents when no limit is given.
const defaultEventLimit = 200

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID: 1,
		locks:  make(map[uint64]bridge.LockRecord),
	}
}

// LockStore implementation ----------------------------------------------------

func (s *Store) CreateLock(_ context.Context, rec bridge.LockRecord) (bridge.LockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	rec.Released = false
	rec.ReleasedAt = nil
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.locks[rec.ID] = rec
	s.nextID++
	return rec, nil
}

func (s *Store) GetLock(_ context.Context, id uint64) (bridge.LockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.locks[id]
	if !ok {
		return bridge.LockRecord{}, storage.ErrLockNotFound
	}
	return rec, nil
}

func (s *Store) ListLocks(_ context.Context) ([]bridge.LockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]bridge.LockRecord, 0, len(s.locks))
	for id := uint64(1); id < s.nextID; id++ {
		if rec, ok := s.locks[id]; ok {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (s *Store) MarkReleased(_ context.Context, id uint64) (bridge.LockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.locks[id]
	if !ok {
		return bridge.LockRecord{}, storage.ErrLockNotFound
	}
	if rec.Released {
		return bridge.LockRecord{}, storage.ErrLockReleased
	}

	now := time.Now().UTC()
	rec.Released = true
	rec.ReleasedAt = &now
	s.locks[id] = rec
	return rec, nil
}

func (s *Store) NextID(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID, nil
}

// EventStore implementation ---------------------------------------------------

func (s *Store) AppendEvent(_ context.Context, ev bridge.Event) (bridge.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	s.events = append(s.events, ev)
	return ev, nil
}

func (s *Store) ListEvents(_ context.Context, limit int) ([]bridge.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultEventLimit
	}

	start := 0
	if len(s.events) > limit {
		start = len(s.events) - limit
	}
	out := make([]bridge.Event, len(s.events)-start)
	copy(out, s.events[start:])
	return out, nil
}
