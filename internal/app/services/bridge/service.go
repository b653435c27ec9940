// Package bridge implements the bridge coordinator: it owns the lock record
// registry, gates representation minting and original release behind an
// authorization policy, and delegates all token movement to the asset ledger.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/domain/bridge"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/events"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/metrics"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/storage"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/chain"
	"github.com/thekrishnasarathe/DexiFi-Bridge/pkg/logger"
)

// Service-level failures.
var (
	// ErrInvalidAmount rejects non-positive lock amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrMissingField rejects requests with empty required fields.
	ErrMissingField = errors.New("required field is empty")

	// ErrUnauthorized rejects operator-only calls from other identities.
	ErrUnauthorized = errors.New("caller is not authorized")

	// ErrNotFound means no lock record exists for the id.
	ErrNotFound = errors.New("lock record not found")

	// ErrAlreadyReleased means the record's original was already returned.
	ErrAlreadyReleased = errors.New("lock record already released")
)

// LedgerError wraps a failed asset ledger call so callers can tell a ledger
// fault apart from a registry fault.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// Service coordinates lock-and-mint / burn-and-unlock transfers between two
// ledgers. All state-changing operations are serialized by the underlying
// store; ledger calls are synchronous and must settle before a call returns.
type Service struct {
	locks  storage.LockStore
	trail  storage.EventStore
	ledger chain.Ledger
	policy Policy
	bus    *events.Bus
	log    *logger.Logger
}

// New constructs a bridge coordinator.
func New(locks storage.LockStore, trail storage.EventStore, ledger chain.Ledger, policy Policy, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("bridge")
	}
	return &Service{
		locks:  locks,
		trail:  trail,
		ledger: ledger,
		policy: policy,
		bus:    bus,
		log:    log,
	}
}

// Lock pulls amount of asset from caller into bridge custody and records the
// lock. The inbound transfer settles first: if it fails nothing is recorded
// and no id is consumed. This is the only way a lock record is created.
func (s *Service) Lock(ctx context.Context, asset string, amount uint64, caller string) (bridge.LockRecord, error) {
	asset = strings.TrimSpace(asset)
	caller = strings.TrimSpace(caller)
	if asset == "" || caller == "" {
		return bridge.LockRecord{}, fmt.Errorf("asset and caller are required: %w", ErrMissingField)
	}
	if amount == 0 {
		return bridge.LockRecord{}, ErrInvalidAmount
	}

	if err := s.ledger.TransferIn(ctx, asset, caller, amount); err != nil {
		metrics.RecordLedgerFailure("transfer_in")
		return bridge.LockRecord{}, &LedgerError{Op: "transfer_in", Err: err}
	}

	rec, err := s.locks.CreateLock(ctx, bridge.LockRecord{
		Asset:     asset,
		Owner:     caller,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		// Custody already holds the funds; surface the inconsistency loudly.
		s.log.WithError(err).
			WithField("asset", asset).
			WithField("owner", caller).
			Error("asset received but lock record not persisted")
		return bridge.LockRecord{}, err
	}

	s.emit(ctx, bridge.Event{
		Type:    bridge.EventAssetLocked,
		LockID:  rec.ID,
		Asset:   rec.Asset,
		Account: rec.Owner,
		Amount:  rec.Amount,
	})
	metrics.RecordLock(rec.Asset, rec.Amount)

	s.log.WithField("lock_id", rec.ID).
		WithField("asset", rec.Asset).
		WithField("owner", rec.Owner).
		Info("asset locked")
	return rec, nil
}

// IssueRepresentation mints amount of the representation asset for recipient.
// Operator-only. No lock record is read or written: the operator is trusted
// to mint only against a lock it observed on the other ledger.
func (s *Service) IssueRepresentation(ctx context.Context, reprAsset, recipient string, amount uint64, caller string) error {
	if err := s.policy.Authorize(caller, ActionIssue); err != nil {
		return err
	}

	reprAsset = strings.TrimSpace(reprAsset)
	recipient = strings.TrimSpace(recipient)
	if reprAsset == "" || recipient == "" {
		return fmt.Errorf("asset and recipient are required: %w", ErrMissingField)
	}

	if err := s.ledger.Mint(ctx, reprAsset, recipient, amount); err != nil {
		metrics.RecordLedgerFailure("mint")
		return &LedgerError{Op: "mint", Err: err}
	}

	s.emit(ctx, bridge.Event{
		Type:    bridge.EventRepresentationMinted,
		Asset:   reprAsset,
		Account: recipient,
		Amount:  amount,
	})
	metrics.RecordMint(reprAsset, amount)

	s.log.WithField("asset", reprAsset).
		WithField("recipient", recipient).
		Info("representation minted")
	return nil
}

// RedeemRepresentation burns amount of the representation asset held by the
// caller. Open to any holder; the burn event is the operator's trigger to
// release the matching original.
func (s *Service) RedeemRepresentation(ctx context.Context, reprAsset string, amount uint64, caller string) error {
	reprAsset = strings.TrimSpace(reprAsset)
	caller = strings.TrimSpace(caller)
	if reprAsset == "" || caller == "" {
		return fmt.Errorf("asset and caller are required: %w", ErrMissingField)
	}

	if err := s.ledger.Burn(ctx, reprAsset, caller, amount); err != nil {
		metrics.RecordLedgerFailure("burn")
		return &LedgerError{Op: "burn", Err: err}
	}

	s.emit(ctx, bridge.Event{
		Type:    bridge.EventRepresentationBurned,
		Asset:   reprAsset,
		Account: caller,
		Amount:  amount,
	})
	metrics.RecordBurn(reprAsset, amount)

	s.log.WithField("asset", reprAsset).
		WithField("holder", caller).
		Info("representation burned")
	return nil
}

// Release returns the original locked under id to recipient. Operator-only.
// The released flag is committed before the outbound transfer so a reentrant
// or retried call can never release the same id twice. If the transfer then
// fails the record stays released and the failure is surfaced; reconciling
// the stranded payout is an operator task, flagged by the error and log.
func (s *Service) Release(ctx context.Context, id uint64, recipient, caller string) (bridge.LockRecord, error) {
	if err := s.policy.Authorize(caller, ActionRelease); err != nil {
		return bridge.LockRecord{}, err
	}

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return bridge.LockRecord{}, fmt.Errorf("recipient is required: %w", ErrMissingField)
	}

	rec, err := s.locks.MarkReleased(ctx, id)
	switch {
	case errors.Is(err, storage.ErrLockNotFound):
		return bridge.LockRecord{}, ErrNotFound
	case errors.Is(err, storage.ErrLockReleased):
		return bridge.LockRecord{}, ErrAlreadyReleased
	case err != nil:
		return bridge.LockRecord{}, err
	}

	if err := s.ledger.TransferOut(ctx, rec.Asset, recipient, rec.Amount); err != nil {
		metrics.RecordLedgerFailure("transfer_out")
		s.log.WithError(err).
			WithField("lock_id", rec.ID).
			WithField("recipient", recipient).
			Error("record marked released but payout failed")
		return bridge.LockRecord{}, &LedgerError{Op: "transfer_out", Err: err}
	}

	s.emit(ctx, bridge.Event{
		Type:    bridge.EventAssetReleased,
		LockID:  rec.ID,
		Asset:   rec.Asset,
		Account: recipient,
		Amount:  rec.Amount,
	})
	metrics.RecordRelease(rec.Asset, rec.Amount)

	s.log.WithField("lock_id", rec.ID).
		WithField("recipient", recipient).
		Info("asset released")
	return rec, nil
}

// GetRecord returns the lock record for id, or ErrNotFound.
func (s *Service) GetRecord(ctx context.Context, id uint64) (bridge.LockRecord, error) {
	rec, err := s.locks.GetLock(ctx, id)
	if errors.Is(err, storage.ErrLockNotFound) {
		return bridge.LockRecord{}, ErrNotFound
	}
	return rec, err
}

// ListRecords returns all lock records ordered by id.
func (s *Service) ListRecords(ctx context.Context) ([]bridge.LockRecord, error) {
	return s.locks.ListLocks(ctx)
}

// ListEvents returns the most recent audit trail entries, oldest first.
func (s *Service) ListEvents(ctx context.Context, limit int) ([]bridge.Event, error) {
	return s.trail.ListEvents(ctx, limit)
}

// emit persists a notification and fans it out to live subscribers. The
// audit write is best-effort: the state transition already happened and must
// not be rolled back for a trail failure.
func (s *Service) emit(ctx context.Context, ev bridge.Event) {
	stored, err := s.trail.AppendEvent(ctx, ev)
	if err != nil {
		s.log.WithError(err).
			WithField("event_type", string(ev.Type)).
			Warn("append event to audit trail")
		stored = ev
	}
	if s.bus != nil {
		s.bus.Publish(stored)
	}
}
