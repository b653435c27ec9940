package chain

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestTransferInRequiresAllowance(t *testing.T) {
	ledger := NewMemoryLedger("custody")
	ctx := context.Background()

	ledger.SetBalance("NEO", "NAlice", 100)

	err := ledger.TransferIn(ctx, "NEO", "NAlice", 50)
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("error = %v, want ErrInsufficientAllowance", err)
	}

	ledger.Approve("NEO", "NAlice", 60)
	if err := ledger.TransferIn(ctx, "NEO", "NAlice", 50); err != nil {
		t.Fatalf("TransferIn: %v", err)
	}
	if got := ledger.Balance("NEO", "custody"); got != 50 {
		t.Fatalf("custody balance = %d, want 50", got)
	}
	if got := ledger.Balance("NEO", "NAlice"); got != 50 {
		t.Fatalf("holder balance = %d, want 50", got)
	}

	// Allowance is consumed.
	err = ledger.TransferIn(ctx, "NEO", "NAlice", 20)
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("error = %v, want ErrInsufficientAllowance after spend", err)
	}
}

func TestTransferInInsufficientBalanceLeavesStateUntouched(t *testing.T) {
	ledger := NewMemoryLedger("custody")
	ctx := context.Background()

	ledger.SetBalance("NEO", "NAlice", 10)
	ledger.Approve("NEO", "NAlice", 100)

	err := ledger.TransferIn(ctx, "NEO", "NAlice", 50)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}
	if got := ledger.Balance("NEO", "NAlice"); got != 10 {
		t.Fatalf("holder balance = %d, want 10", got)
	}
	if got := ledger.Balance("NEO", "custody"); got != 0 {
		t.Fatalf("custody balance = %d, want 0", got)
	}
}

func TestTransferOutFromCustody(t *testing.T) {
	ledger := NewMemoryLedger("custody")
	ctx := context.Background()

	ledger.SetBalance("NEO", "custody", 100)
	if err := ledger.TransferOut(ctx, "NEO", "NBob", 40); err != nil {
		t.Fatalf("TransferOut: %v", err)
	}
	if got := ledger.Balance("NEO", "NBob"); got != 40 {
		t.Fatalf("recipient balance = %d, want 40", got)
	}

	err := ledger.TransferOut(ctx, "NEO", "NBob", 100)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}
}

func TestMintAndBurn(t *testing.T) {
	ledger := NewMemoryLedger("custody")
	ctx := context.Background()

	if err := ledger.Mint(ctx, "bNEO", "NAlice", 100); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if got := ledger.Balance("bNEO", "NAlice"); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}

	if err := ledger.Burn(ctx, "bNEO", "NAlice", 30); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	if got := ledger.Balance("bNEO", "NAlice"); got != 70 {
		t.Fatalf("balance = %d, want 70", got)
	}

	err := ledger.Burn(ctx, "bNEO", "NAlice", 1000)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}
	if got := ledger.Balance("bNEO", "NAlice"); got != 70 {
		t.Fatalf("balance changed on failed burn: %d", got)
	}
}

func TestMintOverflow(t *testing.T) {
	ledger := NewMemoryLedger("custody")
	ctx := context.Background()

	ledger.SetBalance("bNEO", "NAlice", math.MaxUint64)
	if err := ledger.Mint(ctx, "bNEO", "NAlice", 1); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("error = %v, want ErrAmountOverflow", err)
	}
}
