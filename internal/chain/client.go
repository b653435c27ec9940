package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Client is a JSON-RPC client for a chain node exposing contract invocation.
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	RPCURL  string
	Timeout time.Duration
}

// NewClient creates a chain RPC client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		rpcURL:     cfg.RPCURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// RPCError is a JSON-RPC level failure returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call performs a raw JSON-RPC call and returns the result payload.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// InvokeResult is the outcome of a contract invocation.
type InvokeResult struct {
	TxHash    string
	VMState   string
	Exception string
}

// InvokeContract invokes a state-changing contract method and verifies the VM
// halted cleanly. The node is expected to sign and relay with its configured
// wallet (openwallet deployments), so a HALT state means the transfer took
// effect as a unit.
func (c *Client) InvokeContract(ctx context.Context, contract, method string, params []interface{}) (*InvokeResult, error) {
	raw, err := c.Call(ctx, "invokefunction", []interface{}{contract, method, params})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}

	result := gjson.ParseBytes(raw)
	invoke := &InvokeResult{
		TxHash:    result.Get("tx").String(),
		VMState:   result.Get("state").String(),
		Exception: result.Get("exception").String(),
	}

	if invoke.VMState != "HALT" {
		return nil, fmt.Errorf("%s faulted: %s", method, invoke.Exception)
	}
	return invoke, nil
}

// GetApplicationLog fetches the application log for a transaction and reports
// whether every execution halted.
func (c *Client) GetApplicationLog(ctx context.Context, txHash string) (gjson.Result, error) {
	raw, err := c.Call(ctx, "getapplicationlog", []interface{}{txHash})
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(raw), nil
}

// WaitForApplicationLog polls until the transaction's application log is
// available or the context expires. A missing transaction is transient.
func (c *Client) WaitForApplicationLog(ctx context.Context, txHash string, pollInterval time.Duration) (gjson.Result, error) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return gjson.Result{}, ctx.Err()
		case <-ticker.C:
			log, err := c.GetApplicationLog(ctx, txHash)
			if err != nil {
				if isNotFoundError(err) {
					continue
				}
				return gjson.Result{}, err
			}
			return log, nil
		}
	}
}

func isNotFoundError(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		// Neo-style nodes return -100 for unknown transactions.
		return rpcErr.Code == -100
	}
	return false
}
