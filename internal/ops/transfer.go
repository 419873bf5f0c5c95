package ops

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/solwire/solwire/internal/ops/operr"
	"github.com/solwire/solwire/internal/rpc"
	"github.com/solwire/solwire/internal/solana"
)

// TransferReceipt is the terminal result of a confirmed transfer.
type TransferReceipt struct {
	Signature string  `json:"signature"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`
	Lamports  uint64  `json:"lamports"`
	Slot      uint64  `json:"slot"`
	Status    string  `json:"status"`
}

// transferFunds runs the transfer state machine: derive the signer, verify
// it matches the claimed sender, fetch a fresh blockhash, sign, submit, and
// wait for confirmation within the configured bound. A failure at any step
// aborts the flow; nothing is retried at this layer, the caller decides
// whether to resubmit.
func (s *Service) transferFunds(ctx context.Context, params map[string]any) (any, error) {
	const op = "transferFunds"

	from := params["fromAddress"].(string)
	to := params["toAddress"].(string)
	amount := params["amount"].(float64)

	signer, err := solana.ParsePrivateKey(params["fromPrivateKey"].(string))
	if err != nil {
		return nil, operr.InvalidParams(op, "fromPrivateKey", err.Error())
	}
	if signer.Address() != from {
		return nil, operr.KeyMismatch(op)
	}

	lamports := uint64(math.Round(amount * LamportsPerSOL))
	if lamports == 0 {
		return nil, operr.InvalidParams(op, "amount", "is below one lamport")
	}

	var blockhash rpc.LatestBlockhash
	err = s.conn.Invoke(ctx, func(c *rpc.Client) error {
		var err error
		blockhash, err = c.GetLatestBlockhash(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Sign exactly once, before submission. The transport-failure retry
	// inside Invoke then resubmits these identical bytes, which the network
	// deduplicates by signature; re-signing against a fresh blockhash on the
	// failover endpoint could put two distinct transfers in flight.
	tx, err := solana.SignTransfer(signer, to, lamports, blockhash.Blockhash)
	if err != nil {
		return nil, err
	}
	encoded := solana.EncodeBase64(tx)

	var signature string
	err = s.conn.Invoke(ctx, func(c *rpc.Client) error {
		var err error
		signature, err = c.SendTransaction(ctx, encoded)
		return err
	})
	if err != nil {
		return nil, err
	}

	status, err := s.awaitConfirmation(ctx, op, signature)
	if err != nil {
		return nil, err
	}

	return TransferReceipt{
		Signature: signature,
		From:      from,
		To:        to,
		Amount:    amount,
		Lamports:  lamports,
		Slot:      status.Slot,
		Status:    status.ConfirmationStatus,
	}, nil
}

// awaitConfirmation polls the signature status until the configured
// commitment is reached, the transaction fails on chain, or the bounded
// wait expires. Expiry is a distinct error kind so callers know the
// transaction may still land and can poll its status instead of blindly
// retrying.
func (s *Service) awaitConfirmation(ctx context.Context, op, signature string) (*rpc.SignatureStatus, error) {
	deadline := time.NewTimer(s.opts.ConfirmTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.opts.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The transaction is already on the wire and may still land;
			// hand the caller the signature to poll, the same as an expired
			// wait, instead of a bare cancellation.
			return nil, operr.ConfirmationTimeout(op, signature)
		case <-deadline.C:
			return nil, operr.ConfirmationTimeout(op, signature)
		case <-ticker.C:
		}

		client, err := s.conn.Handle()
		if err != nil {
			continue // degraded mid-wait; keep polling until the deadline
		}

		statuses, err := client.GetSignatureStatuses(ctx, []string{signature})
		if err != nil || len(statuses) == 0 || statuses[0] == nil {
			continue
		}

		status := statuses[0]
		if isJSONValue(status.Err) {
			return nil, operr.RemoteCallFailed(op,
				fmt.Errorf("transaction %s failed on chain: %s", signature, string(status.Err)))
		}
		if s.confirmed(status.ConfirmationStatus) {
			return status, nil
		}
	}
}

// confirmed reports whether a status satisfies the configured commitment.
func (s *Service) confirmed(status string) bool {
	switch status {
	case "finalized":
		return true
	case "confirmed":
		return s.commitment() != "finalized"
	default:
		return false
	}
}

func (s *Service) commitment() string {
	if client, err := s.conn.Handle(); err == nil {
		return client.Commitment()
	}
	return "confirmed"
}
