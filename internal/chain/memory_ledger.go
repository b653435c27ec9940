package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// Ledger-level failures surfaced by MemoryLedger.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrAmountOverflow        = errors.New("amount overflows balance")
)

// MemoryLedger is an in-process fungible asset ledger used in tests and local
// development. It models per-asset balances and spending approvals: a
// TransferIn only succeeds when the holder has approved at least that amount
// for the custody account, mirroring how an on-chain token would gate the
// bridge's pull.
type MemoryLedger struct {
	mu         sync.Mutex
	custody    string
	balances   map[string]map[string]uint64 // asset -> account -> balance
	allowances map[string]map[string]uint64 // asset -> holder -> approved for custody
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty ledger with the given custody account.
func NewMemoryLedger(custody string) *MemoryLedger {
	if custody == "" {
		custody = "bridge-custody"
	}
	return &MemoryLedger{
		custody:    custody,
		balances:   make(map[string]map[string]uint64),
		allowances: make(map[string]map[string]uint64),
	}
}

// Custody returns the custody account address.
func (l *MemoryLedger) Custody() string { return l.custody }

// SetBalance seeds an account balance. Test helper.
func (l *MemoryLedger) SetBalance(asset, account string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accountsFor(asset)[account] = amount
}

// Balance reports an account's balance for an asset.
func (l *MemoryLedger) Balance(asset, account string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[asset][account]
}

// Approve lets holder authorize the custody account to pull up to amount.
func (l *MemoryLedger) Approve(asset, holder string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[asset] == nil {
		l.allowances[asset] = make(map[string]uint64)
	}
	l.allowances[asset][holder] = amount
}

func (l *MemoryLedger) TransferIn(_ context.Context, asset, from string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowances[asset][from]
	if allowed < amount {
		return fmt.Errorf("transfer in %d of %s from %s: %w", amount, asset, from, ErrInsufficientAllowance)
	}

	if err := l.move(asset, from, l.custody, amount); err != nil {
		return err
	}
	l.allowances[asset][from] = allowed - amount
	return nil
}

func (l *MemoryLedger) TransferOut(_ context.Context, asset, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(asset, l.custody, to, amount)
}

func (l *MemoryLedger) Mint(_ context.Context, asset, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts := l.accountsFor(asset)
	if accounts[to] > math.MaxUint64-amount {
		return ErrAmountOverflow
	}
	accounts[to] += amount
	return nil
}

func (l *MemoryLedger) Burn(_ context.Context, asset, from string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts := l.accountsFor(asset)
	if accounts[from] < amount {
		return fmt.Errorf("burn %d of %s from %s: %w", amount, asset, from, ErrInsufficientBalance)
	}
	accounts[from] -= amount
	return nil
}

// move transfers between two accounts of one asset, all-or-nothing.
func (l *MemoryLedger) move(asset, from, to string, amount uint64) error {
	accounts := l.accountsFor(asset)
	if accounts[from] < amount {
		return fmt.Errorf("transfer %d of %s from %s: %w", amount, asset, from, ErrInsufficientBalance)
	}
	if accounts[to] > math.MaxUint64-amount {
		return ErrAmountOverflow
	}
	accounts[from] -= amount
	accounts[to] += amount
	return nil
}

func (l *MemoryLedger) accountsFor(asset string) map[string]uint64 {
	accounts, ok := l.balances[asset]
	if !ok {
		accounts = make(map[string]uint64)
		l.balances[asset] = accounts
	}
	return accounts
}
