package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kingraph/internal/logging"
)

// ErrRPC wraps node-side JSON-RPC failures.
var ErrRPC = errors.New("rpc error")

// RPCClient talks JSON-RPC 2.0 to a single configured blockchain endpoint.
type RPCClient struct {
	endpoint   string
	commitment string
	httpClient *http.Client
}

// NewRPCClient creates a client for the endpoint using the given commitment
// level for reads and confirmations.
func NewRPCClient(endpoint, commitment string, timeout time.Duration) *RPCClient {
	if commitment == "" {
		commitment = "confirmed"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RPCClient{
		endpoint:   endpoint,
		commitment: commitment,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip, decoding result into out.
func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	logging.Get(logging.CategoryRPC).Debug("-> %s", method)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned HTTP %d", ErrRPC, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: %s: %s (code %d)", ErrRPC, method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetBalance returns the lamport balance of the address.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	params := []any{address, map[string]string{"commitment": c.commitment}}
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// GetLatestBlockhash returns the current blockhash for transaction building.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	params := []any{map[string]string{"commitment": c.commitment}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", err
	}
	if result.Value.Blockhash == "" {
		return "", fmt.Errorf("%w: empty blockhash", ErrRPC)
	}
	return result.Value.Blockhash, nil
}

// GetFeeForMessage returns the network fee in lamports for a base64-encoded
// message.
func (c *RPCClient) GetFeeForMessage(ctx context.Context, messageBase64 string) (uint64, error) {
	var result struct {
		Value *uint64 `json:"value"`
	}
	params := []any{messageBase64, map[string]string{"commitment": c.commitment}}
	if err := c.call(ctx, "getFeeForMessage", params, &result); err != nil {
		return 0, err
	}
	if result.Value == nil {
		// Node could not price the message (e.g. expired blockhash);
		// fall back to the flat per-signature fee.
		return 5000, nil
	}
	return *result.Value, nil
}

// SendTransaction submits a base64-encoded signed transaction and returns its
// signature.
func (c *RPCClient) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	var signature string
	params := []any{txBase64, map[string]string{
		"encoding":            "base64",
		"preflightCommitment": c.commitment,
	}}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// SignatureStatus is a confirmation-level snapshot for one signature.
type SignatureStatus struct {
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// GetSignatureStatus returns the status of one signature, or nil while the
// cluster has not seen it yet.
func (c *RPCClient) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	params := []any{[]string{signature}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

// TransactionRecord is one entry of an address's signature history.
type TransactionRecord struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime *int64          `json:"blockTime"`
	Err       json.RawMessage `json:"err"`
	Memo      string          `json:"memo"`
}

// GetSignaturesForAddress returns up to limit recent transactions touching
// the address, newest first.
func (c *RPCClient) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]TransactionRecord, error) {
	var result []TransactionRecord
	params := []any{address, map[string]any{"limit": limit, "commitment": c.commitment}}
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}
