package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/domain/bridge"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. Lock ids come
// from a BIGSERIAL column, so the database serializes allocation and a failed
// insert never leaves a record behind.
type Store struct {
	db *sql.DB
}

var _ storage.LockStore = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- LockStore --------------------------------------------------------------

func (s *Store) CreateLock(ctx context.Context, rec bridge.LockRecord) (bridge.LockRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Released = false
	rec.ReleasedAt = nil

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO bridge_locks (asset, owner_address, amount, released, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING id
	`, rec.Asset, rec.Owner, amountParam(rec.Amount), rec.CreatedAt)

	if err := row.Scan(&rec.ID); err != nil {
		return bridge.LockRecord{}, err
	}
	return rec, nil
}

func (s *Store) GetLock(ctx context.Context, id uint64) (bridge.LockRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, asset, owner_address, amount, released, created_at, released_at
		FROM bridge_locks
		WHERE id = $1
	`, id)

	rec, err := scanLock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return bridge.LockRecord{}, storage.ErrLockNotFound
	}
	return rec, err
}

func (s *Store) ListLocks(ctx context.Context) ([]bridge.LockRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset, owner_address, amount, released, created_at, released_at
		FROM bridge_locks
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []bridge.LockRecord
	for rows.Next() {
		rec, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *Store) MarkReleased(ctx context.Context, id uint64) (bridge.LockRecord, error) {
	now := time.Now().UTC()

	row := s.db.QueryRowContext(ctx, `
		UPDATE bridge_locks
		SET released = TRUE, released_at = $2
		WHERE id = $1 AND released = FALSE
		RETURNING id, asset, owner_address, amount, released, created_at, released_at
	`, id, now)

	rec, err := scanLock(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a missing record from one already released.
		if _, getErr := s.GetLock(ctx, id); getErr != nil {
			return bridge.LockRecord{}, getErr
		}
		return bridge.LockRecord{}, storage.ErrLockReleased
	}
	return rec, err
}

func (s *Store) NextID(ctx context.Context) (uint64, error) {
	// Records are never deleted, so the id space stays dense and max+1 is
	// exactly what the next insert will be assigned.
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM bridge_locks`)
	var next uint64
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

// --- EventStore -------------------------------------------------------------

func (s *Store) AppendEvent(ctx context.Context, ev bridge.Event) (bridge.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	var lockID interface{}
	if ev.LockID != 0 {
		lockID = ev.LockID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bridge_events (id, event_type, lock_id, asset, account, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.ID, string(ev.Type), lockID, ev.Asset, ev.Account, amountParam(ev.Amount), ev.CreatedAt)
	if err != nil {
		return bridge.Event{}, err
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, limit int) ([]bridge.Event, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, lock_id, asset, account, amount, created_at
		FROM (
			SELECT id, event_type, lock_id, asset, account, amount, created_at
			FROM bridge_events
			ORDER BY created_at DESC
			LIMIT $1
		) tail
		ORDER BY created_at
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []bridge.Event
	for rows.Next() {
		var (
			ev        bridge.Event
			evType    string
			lockID    sql.NullInt64
			amountRaw string
		)
		if err := rows.Scan(&ev.ID, &evType, &lockID, &ev.Asset, &ev.Account, &amountRaw, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Type = bridge.EventType(evType)
		if lockID.Valid {
			ev.LockID = uint64(lockID.Int64)
		}
		amount, err := parseAmount(amountRaw)
		if err != nil {
			return nil, err
		}
		ev.Amount = amount
		result = append(result, ev)
	}
	return result, rows.Err()
}

// --- helpers ----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLock(row rowScanner) (bridge.LockRecord, error) {
	var (
		rec        bridge.LockRecord
		amountRaw  string
		releasedAt sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.Asset, &rec.Owner, &amountRaw, &rec.Released, &rec.CreatedAt, &releasedAt); err != nil {
		return bridge.LockRecord{}, err
	}

	amount, err := parseAmount(amountRaw)
	if err != nil {
		return bridge.LockRecord{}, err
	}
	rec.Amount = amount

	if releasedAt.Valid {
		t := releasedAt.Time
		rec.ReleasedAt = &t
	}
	return rec, nil
}

// Amounts are stored as NUMERIC(20,0) so the full uint64 range survives the
// round trip; they travel as decimal strings.
func amountParam(amount uint64) string {
	return strconv.FormatUint(amount, 10)
}

func parseAmount(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}
