// Package rpc provides the Solana JSON-RPC client used by the gateway.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Client speaks JSON-RPC 2.0 to a single Solana node. The connection
// manager owns client lifecycles; nothing else constructs or replaces them.
type Client struct {
	endpoint   string
	commitment string
	httpClient *http.Client
}

// Config holds client configuration.
type Config struct {
	Endpoint   string
	Commitment string // processed, confirmed or finalized
	Timeout    time.Duration
}

// NewClient creates a client bound to one endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	commitment := cfg.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		commitment: commitment,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Endpoint returns the node URL this client is bound to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Commitment returns the consistency level attached to read calls.
func (c *Client) Commitment() string {
	return c.commitment
}

// Call makes a raw RPC call to the node.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
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

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

func (c *Client) commitmentParam() map[string]interface{} {
	return map[string]interface{}{"commitment": c.commitment}
}

// GetSlot returns the current slot. Used as the cheap liveness probe.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "getSlot", []interface{}{c.commitmentParam()})
	if err != nil {
		return 0, err
	}

	var slot uint64
	if err := json.Unmarshal(result, &slot); err != nil {
		return 0, fmt.Errorf("unmarshal slot: %w", err)
	}
	return slot, nil
}

// GetBlockHeight returns the current block height.
func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "getBlockHeight", []interface{}{c.commitmentParam()})
	if err != nil {
		return 0, err
	}

	var height uint64
	if err := json.Unmarshal(result, &height); err != nil {
		return 0, fmt.Errorf("unmarshal block height: %w", err)
	}
	return height, nil
}

// GetVersion returns the node's solana-core version string.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	result, err := c.Call(ctx, "getVersion", nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(result, "solana-core").String(), nil
}

// GetHealth reports node health; healthy nodes answer "ok".
func (c *Client) GetHealth(ctx context.Context) (string, error) {
	result, err := c.Call(ctx, "getHealth", nil)
	if err != nil {
		return "", err
	}

	var status string
	if err := json.Unmarshal(result, &status); err != nil {
		return "", fmt.Errorf("unmarshal health: %w", err)
	}
	return status, nil
}

// GetBlockTime returns the estimated production time of a slot as a unix
// timestamp, or zero when the node has no estimate.
func (c *Client) GetBlockTime(ctx context.Context, slot uint64) (int64, error) {
	result, err := c.Call(ctx, "getBlockTime", []interface{}{slot})
	if err != nil {
		return 0, err
	}

	parsed := gjson.ParseBytes(result)
	if parsed.Type == gjson.Null {
		return 0, nil
	}
	return parsed.Int(), nil
}

// GetSupply returns the raw supply figures. Callers pull the sub-fields they
// need; missing fields degrade to null rather than failing the call.
func (c *Client) GetSupply(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, "getSupply", []interface{}{c.commitmentParam()})
}

// GetBalance returns an account balance in lamports.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	result, err := c.Call(ctx, "getBalance", []interface{}{address, c.commitmentParam()})
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(result, "value").Uint(), nil
}

// GetAccountInfo returns the raw account value, which is JSON null when the
// account does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, address string) (json.RawMessage, error) {
	params := []interface{}{address, map[string]interface{}{
		"commitment": c.commitment,
		"encoding":   "base64",
	}}
	result, err := c.Call(ctx, "getAccountInfo", params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(gjson.GetBytes(result, "value").Raw), nil
}

// GetSignaturesForAddress returns up to limit signatures, newest first.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	params := []interface{}{address, map[string]interface{}{
		"commitment": c.commitment,
		"limit":      limit,
	}}
	result, err := c.Call(ctx, "getSignaturesForAddress", params)
	if err != nil {
		return nil, err
	}

	var sigs []SignatureInfo
	if err := json.Unmarshal(result, &sigs); err != nil {
		return nil, fmt.Errorf("unmarshal signatures: %w", err)
	}
	return sigs, nil
}

// GetLatestBlockhash returns the freshness token for transaction building.
func (c *Client) GetLatestBlockhash(ctx context.Context) (LatestBlockhash, error) {
	result, err := c.Call(ctx, "getLatestBlockhash", []interface{}{c.commitmentParam()})
	if err != nil {
		return LatestBlockhash{}, err
	}

	var wrapped struct {
		Value LatestBlockhash `json:"value"`
	}
	if err := json.Unmarshal(result, &wrapped); err != nil {
		return LatestBlockhash{}, fmt.Errorf("unmarshal blockhash: %w", err)
	}
	return wrapped.Value, nil
}

// SendTransaction submits base64-encoded signed transaction bytes and
// returns the transaction signature.
func (c *Client) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	params := []interface{}{txBase64, map[string]interface{}{
		"encoding":            "base64",
		"preflightCommitment": c.commitment,
	}}
	result, err := c.Call(ctx, "sendTransaction", params)
	if err != nil {
		return "", err
	}

	var signature string
	if err := json.Unmarshal(result, &signature); err != nil {
		return "", fmt.Errorf("unmarshal signature: %w", err)
	}
	return signature, nil
}

// GetSignatureStatuses returns the status entry per requested signature;
// entries are nil when the node does not know the signature.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	params := []interface{}{signatures, map[string]interface{}{
		"searchTransactionHistory": true,
	}}
	result, err := c.Call(ctx, "getSignatureStatuses", params)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Value []*SignatureStatus `json:"value"`
	}
	if err := json.Unmarshal(result, &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal statuses: %w", err)
	}
	return wrapped.Value, nil
}

// GetTokenAccountsByOwner returns the parsed token accounts an owner holds
// for one mint. The raw value is handed to the caller for field extraction.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) (json.RawMessage, error) {
	params := []interface{}{
		owner,
		map[string]interface{}{"mint": mint},
		map[string]interface{}{
			"commitment": c.commitment,
			"encoding":   "jsonParsed",
		},
	}
	result, err := c.Call(ctx, "getTokenAccountsByOwner", params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(gjson.GetBytes(result, "value").Raw), nil
}
