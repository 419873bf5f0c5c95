package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
	ID      int           `json:"id"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
	ID      int             `json:"id"`
}

// Error is a JSON-RPC error object returned by the node. Its presence means
// the node itself replied; transport failures are plain wrapped errors.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsNodeError reports whether err originated from the node rather than from
// the transport. Node errors must not trigger endpoint failover.
func IsNodeError(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr)
}

// SignatureInfo is one entry of a getSignaturesForAddress result.
type SignatureInfo struct {
	Signature          string          `json:"signature"`
	Slot               uint64          `json:"slot"`
	BlockTime          *int64          `json:"blockTime"`
	Err                json.RawMessage `json:"err"`
	Memo               *string         `json:"memo"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// SignatureStatus is one entry of a getSignatureStatuses result.
type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// LatestBlockhash is the freshness token embedded in every transaction.
type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}
