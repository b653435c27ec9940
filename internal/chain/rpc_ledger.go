package chain

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// RPCLedger implements Ledger against a chain node's contract invocation RPC.
// Each asset identifier is the script hash of a fungible token contract; the
// bridge holds funds in a custody account whose key is managed by the node
// wallet. Calls block until the transaction's application log confirms a
// clean halt, so a returned nil really means the transfer happened.
type RPCLedger struct {
	client       *Client
	custody      string
	pollInterval time.Duration
	waitTimeout  time.Duration
}

var _ Ledger = (*RPCLedger)(nil)

// RPCLedgerConfig configures an RPC-backed ledger.
type RPCLedgerConfig struct {
	Custody      string // custody account address holding locked originals
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

// NewRPCLedger builds a ledger on top of an RPC client.
func NewRPCLedger(client *Client, cfg RPCLedgerConfig) (*RPCLedger, error) {
	if client == nil {
		return nil, fmt.Errorf("rpc client required")
	}
	if cfg.Custody == "" {
		return nil, fmt.Errorf("custody account required")
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	wait := cfg.WaitTimeout
	if wait <= 0 {
		wait = 2 * time.Minute
	}

	return &RPCLedger{
		client:       client,
		custody:      cfg.Custody,
		pollInterval: poll,
		waitTimeout:  wait,
	}, nil
}

func (l *RPCLedger) TransferIn(ctx context.Context, asset, from string, amount uint64) error {
	return l.invoke(ctx, asset, "transferFrom", []interface{}{
		addressParam(from),
		addressParam(l.custody),
		amountRPCParam(amount),
	})
}

func (l *RPCLedger) TransferOut(ctx context.Context, asset, to string, amount uint64) error {
	return l.invoke(ctx, asset, "transfer", []interface{}{
		addressParam(l.custody),
		addressParam(to),
		amountRPCParam(amount),
	})
}

func (l *RPCLedger) Mint(ctx context.Context, asset, to string, amount uint64) error {
	return l.invoke(ctx, asset, "mint", []interface{}{
		addressParam(to),
		amountRPCParam(amount),
	})
}

func (l *RPCLedger) Burn(ctx context.Context, asset, from string, amount uint64) error {
	return l.invoke(ctx, asset, "burn", []interface{}{
		addressParam(from),
		amountRPCParam(amount),
	})
}

func (l *RPCLedger) invoke(ctx context.Context, contract, method string, params []interface{}) error {
	result, err := l.client.InvokeContract(ctx, contract, method, params)
	if err != nil {
		return err
	}

	// A broadcast without a tx hash means the node executed the script
	// locally only; treat it as confirmed.
	if result.TxHash == "" {
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	appLog, err := l.client.WaitForApplicationLog(wctx, result.TxHash, l.pollInterval)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", method, err)
	}

	for _, exec := range appLog.Get("executions").Array() {
		if state := exec.Get("vmstate").String(); state != "HALT" {
			return fmt.Errorf("%s reverted: %s", method, exec.Get("exception").String())
		}
	}
	return nil
}

func addressParam(addr string) map[string]interface{} {
	return map[string]interface{}{"type": "Hash160", "value": addr}
}

func amountRPCParam(amount uint64) map[string]interface{} {
	return map[string]interface{}{"type": "Integer", "value": strconv.FormatUint(amount, 10)}
}
