package storage

import (
	"context"
	"errors"

	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/domain/bridge"
)

// Sentinel errors shared by all store implementations.
var (
	// ErrLockNotFound is returned when no record exists for an id. Id 0 is
	// never assigned, so callers may treat a zero record as absent.
	ErrLockNotFound = errors.New("lock record not found")

	// ErrLockReleased is returned by MarkReleased when the record's flag is
	// already set.
	ErrLockReleased = errors.New("lock record already released")
)

// LockStore persists lock records. Implementations must serialize writes so
// that id allocation plus insert happens atomically and a record can be
// marked released at most once even under concurrent callers.
type LockStore interface {
	// CreateLock assigns the next sequential id (starting at 1) and stores
	// the record with Released=false. The id counter must not advance when
	// the insert fails.
	CreateLock(ctx context.Context, rec bridge.LockRecord) (bridge.LockRecord, error)

	// GetLock returns the record for id, or ErrLockNotFound.
	GetLock(ctx context.Context, id uint64) (bridge.LockRecord, error)

	// ListLocks returns all records ordered by id.
	ListLocks(ctx context.Context) ([]bridge.LockRecord, error)

	// MarkReleased atomically flips Released from false to true and returns
	// the updated record. It returns ErrLockNotFound for unknown ids and
	// ErrLockReleased when the flag is already set.
	MarkReleased(ctx context.Context, id uint64) (bridge.LockRecord, error)

	// NextID reports the id the next CreateLock would assign.
	NextID(ctx context.Context) (uint64, error)
}

// EventStore persists the audit trail of bridge notifications.
type EventStore interface {
	AppendEvent(ctx context.Context, ev bridge.Event) (bridge.Event, error)

	// ListEvents returns the most recent events, oldest first. A limit of 0
	// applies the implementation default.
	ListEvents(ctx context.Context, limit int) ([]bridge.Event, error)
}
