package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	domain "github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/domain/bridge"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/events"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/storage/memory"
)

const (
	operator = "NOperatorAddress"
	alice    = "NAliceAddress"
	bob      = "NBobAddress"
)

// fakeLedger records calls and fails on demand.
type fakeLedger struct {
	calls    []string
	failNext error
}

func (f *fakeLedger) step(op, asset, account string, amount uint64) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.calls = append(f.calls, fmt.Sprintf("%s:%s:%s:%d", op, asset, account, amount))
	return nil
}

func (f *fakeLedger) TransferIn(_ context.Context, asset, from string, amount uint64) error {
	return f.step("transfer_in", asset, from, amount)
}

func (f *fakeLedger) TransferOut(_ context.Context, asset, to string, amount uint64) error {
	return f.step("transfer_out", asset, to, amount)
}

func (f *fakeLedger) Mint(_ context.Context, asset, to string, amount uint64) error {
	return f.step("mint", asset, to, amount)
}

func (f *fakeLedger) Burn(_ context.Context, asset, from string, amount uint64) error {
	return f.step("burn", asset, from, amount)
}

func newTestService(t *testing.T) (*Service, *memory.Store, *fakeLedger) {
	t.Helper()
	store := memory.New()
	ledger := &fakeLedger{}
	svc := New(store, store, ledger, NewOperatorPolicy(operator), events.NewBus(nil), nil)
	return svc, store, ledger
}

func TestLockAssignsSequentialIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		rec, err := svc.Lock(ctx, "NEO", 100, alice)
		if err != nil {
			t.Fatalf("Lock: %v", err)
		}
		if rec.ID != want {
			t.Fatalf("lock id = %d, want %d", rec.ID, want)
		}
		if rec.Released {
			t.Fatalf("new lock record marked released")
		}
	}
}

func TestLockRecordFields(t *testing.T) {
	svc, _, ledger := newTestService(t)

	rec, err := svc.Lock(context.Background(), "GAS", 250, alice)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if rec.Asset != "GAS" || rec.Owner != alice || rec.Amount != 250 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt not set")
	}
	if len(ledger.calls) != 1 || ledger.calls[0] != "transfer_in:GAS:"+alice+":250" {
		t.Fatalf("unexpected ledger calls: %v", ledger.calls)
	}
}

func TestLockRejectsZeroAmount(t *testing.T) {
	svc, store, ledger := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Lock(ctx, "NEO", 0, alice); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("Lock(0) error = %v, want ErrInvalidAmount", err)
	}
	if len(ledger.calls) != 0 {
		t.Fatalf("ledger called for rejected lock: %v", ledger.calls)
	}
	if next, _ := store.NextID(ctx); next != 1 {
		t.Fatalf("id counter advanced to %d on rejected lock", next)
	}
}

func TestLockBoundaryAmounts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Lock(ctx, "NEO", 1, alice)
	if err != nil {
		t.Fatalf("Lock(1): %v", err)
	}
	if rec.Amount != 1 {
		t.Fatalf("amount = %d, want 1", rec.Amount)
	}

	rec, err = svc.Lock(ctx, "NEO", math.MaxUint64, alice)
	if err != nil {
		t.Fatalf("Lock(max): %v", err)
	}
	if rec.Amount != math.MaxUint64 {
		t.Fatalf("amount = %d, want max uint64", rec.Amount)
	}
}

func TestLockFailedTransferLeavesNoRecord(t *testing.T) {
	svc, store, ledger := newTestService(t)
	ctx := context.Background()

	ledger.failNext = errors.New("insufficient allowance")
	_, err := svc.Lock(ctx, "NEO", 100, alice)
	var ledgerErr *LedgerError
	if !errors.As(err, &ledgerErr) {
		t.Fatalf("Lock error = %v, want LedgerError", err)
	}
	if ledgerErr.Op != "transfer_in" {
		t.Fatalf("ledger op = %q, want transfer_in", ledgerErr.Op)
	}

	if next, _ := store.NextID(ctx); next != 1 {
		t.Fatalf("id counter advanced to %d after failed lock", next)
	}
	recs, _ := store.ListLocks(ctx)
	if len(recs) != 0 {
		t.Fatalf("records persisted after failed lock: %v", recs)
	}

	// The next successful lock still gets id 1.
	rec, err := svc.Lock(ctx, "NEO", 100, alice)
	if err != nil {
		t.Fatalf("Lock after failure: %v", err)
	}
	if rec.ID != 1 {
		t.Fatalf("lock id = %d, want 1", rec.ID)
	}
}

func TestReleaseHappyPath(t *testing.T) {
	svc, _, ledger := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Lock(ctx, "NEO", 500, alice)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	released, err := svc.Release(ctx, rec.ID, bob, operator)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !released.Released {
		t.Fatalf("record not marked released")
	}
	if released.ReleasedAt == nil {
		t.Fatalf("ReleasedAt not set")
	}

	want := "transfer_out:NEO:" + bob + ":500"
	if ledger.calls[len(ledger.calls)-1] != want {
		t.Fatalf("last ledger call = %q, want %q", ledger.calls[len(ledger.calls)-1], want)
	}

	got, err := svc.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if !got.Released {
		t.Fatalf("persisted record not released")
	}
}

func TestReleaseOnlyOnce(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rec, _ := svc.Lock(ctx, "NEO", 10, alice)
	if _, err := svc.Release(ctx, rec.ID, alice, operator); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if _, err := svc.Release(ctx, rec.ID, alice, operator); !errors.Is(err, ErrAlreadyReleased) {
		t.Fatalf("second Release error = %v, want ErrAlreadyReleased", err)
	}
}

func TestReleaseUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Release(ctx, 42, alice, operator); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Release(42) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Release(ctx, 0, alice, operator); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Release(0) error = %v, want ErrNotFound", err)
	}
}

func TestReleaseRequiresOperator(t *testing.T) {
	svc, _, ledger := newTestService(t)
	ctx := context.Background()

	rec, _ := svc.Lock(ctx, "NEO", 10, alice)
	before := len(ledger.calls)

	if _, err := svc.Release(ctx, rec.ID, alice, alice); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Release by non-operator error = %v, want ErrUnauthorized", err)
	}
	if len(ledger.calls) != before {
		t.Fatalf("ledger called by unauthorized release")
	}

	// The record stays releasable by the operator.
	if _, err := svc.Release(ctx, rec.ID, alice, operator); err != nil {
		t.Fatalf("operator Release after denial: %v", err)
	}
}

func TestReleaseFailedPayoutKeepsRecordReleased(t *testing.T) {
	svc, store, ledger := newTestService(t)
	ctx := context.Background()

	rec, _ := svc.Lock(ctx, "NEO", 10, alice)

	ledger.failNext = errors.New("node unreachable")
	_, err := svc.Release(ctx, rec.ID, bob, operator)
	var ledgerErr *LedgerError
	if !errors.As(err, &ledgerErr) || ledgerErr.Op != "transfer_out" {
		t.Fatalf("Release error = %v, want transfer_out LedgerError", err)
	}

	got, _ := store.GetLock(ctx, rec.ID)
	if !got.Released {
		t.Fatalf("record not marked released after failed payout")
	}
	if _, err := svc.Release(ctx, rec.ID, bob, operator); !errors.Is(err, ErrAlreadyReleased) {
		t.Fatalf("retried Release error = %v, want ErrAlreadyReleased", err)
	}
}

func TestIssueRepresentationRequiresOperator(t *testing.T) {
	svc, _, ledger := newTestService(t)
	ctx := context.Background()

	if err := svc.IssueRepresentation(ctx, "bNEO", alice, 100, alice); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("mint by non-operator error = %v, want ErrUnauthorized", err)
	}
	if len(ledger.calls) != 0 {
		t.Fatalf("ledger minted for unauthorized caller: %v", ledger.calls)
	}

	if err := svc.IssueRepresentation(ctx, "bNEO", alice, 100, operator); err != nil {
		t.Fatalf("mint by operator: %v", err)
	}
	if ledger.calls[0] != "mint:bNEO:"+alice+":100" {
		t.Fatalf("unexpected mint call: %v", ledger.calls)
	}
}

func TestRedeemRepresentationOpenToHolders(t *testing.T) {
	svc, _, ledger := newTestService(t)

	if err := svc.RedeemRepresentation(context.Background(), "bNEO", 40, bob); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if ledger.calls[0] != "burn:bNEO:"+bob+":40" {
		t.Fatalf("unexpected burn call: %v", ledger.calls)
	}
}

func TestGetRecordUnknown(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.GetRecord(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRecord(7) error = %v, want ErrNotFound", err)
	}
}

// Full round trip: two users lock on one side, the operator mints, users
// redeem and the operator releases originals to the redeeming accounts.
func TestBridgeRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	lockA, err := svc.Lock(ctx, "NEO", 100, alice)
	if err != nil {
		t.Fatalf("lock A: %v", err)
	}
	lockB, err := svc.Lock(ctx, "NEO", 200, bob)
	if err != nil {
		t.Fatalf("lock B: %v", err)
	}
	if lockA.ID != 1 || lockB.ID != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", lockA.ID, lockB.ID)
	}

	if err := svc.IssueRepresentation(ctx, "bNEO", alice, 100, operator); err != nil {
		t.Fatalf("mint A: %v", err)
	}
	if err := svc.IssueRepresentation(ctx, "bNEO", bob, 200, operator); err != nil {
		t.Fatalf("mint B: %v", err)
	}

	if err := svc.RedeemRepresentation(ctx, "bNEO", 200, bob); err != nil {
		t.Fatalf("redeem B: %v", err)
	}
	if _, err := svc.Release(ctx, lockB.ID, bob, operator); err != nil {
		t.Fatalf("release B: %v", err)
	}

	if err := svc.RedeemRepresentation(ctx, "bNEO", 100, alice); err != nil {
		t.Fatalf("redeem A: %v", err)
	}
	if _, err := svc.Release(ctx, lockA.ID, alice, operator); err != nil {
		t.Fatalf("release A: %v", err)
	}

	recs, err := svc.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("record count = %d, want 2", len(recs))
	}
	for _, rec := range recs {
		if !rec.Released {
			t.Fatalf("record %d not released at end of round trip", rec.ID)
		}
	}

	evs, err := svc.ListEvents(ctx, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	wantTypes := []domain.EventType{
		domain.EventAssetLocked,
		domain.EventAssetLocked,
		domain.EventRepresentationMinted,
		domain.EventRepresentationMinted,
		domain.EventRepresentationBurned,
		domain.EventAssetReleased,
		domain.EventRepresentationBurned,
		domain.EventAssetReleased,
	}
	if len(evs) != len(wantTypes) {
		t.Fatalf("event count = %d, want %d", len(evs), len(wantTypes))
	}
	for i, ev := range evs {
		if ev.Type != wantTypes[i] {
			t.Fatalf("event[%d].Type = %s, want %s", i, ev.Type, wantTypes[i])
		}
	}
}

func TestOperatorPolicy(t *testing.T) {
	p := NewOperatorPolicy(operator)

	if err := p.Authorize(operator, ActionIssue); err != nil {
		t.Fatalf("operator denied: %v", err)
	}
	// Addresses compare case-insensitively.
	if err := p.Authorize("noperatoraddress", ActionRelease); err != nil {
		t.Fatalf("case-folded operator denied: %v", err)
	}
	if err := p.Authorize(alice, ActionRelease); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-operator error = %v, want ErrUnauthorized", err)
	}
	if err := p.Authorize("", ActionIssue); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty caller error = %v, want ErrUnauthorized", err)
	}

	empty := NewOperatorPolicy("")
	if err := empty.Authorize("", ActionIssue); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty policy must deny everyone, got %v", err)
	}
}
