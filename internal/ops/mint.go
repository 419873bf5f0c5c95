package ops

import (
	"context"
	"fmt"

	"github.com/solwire/solwire/internal/ops/operr"
	"github.com/solwire/solwire/internal/pumpfun"
	"github.com/solwire/solwire/internal/rpc"
	"github.com/solwire/solwire/internal/solana"
)

// MintReceipt is the terminal result of a token creation.
type MintReceipt struct {
	TransactionID string `json:"transactionId"`
	MintAddress   string `json:"mintAddress"`
	MetadataURI   string `json:"metadataUri"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
}

// createCustomToken runs the mint state machine: upload metadata, generate
// a fresh mint identity, have the builder assemble the create-and-buy
// transaction, sign with both the signer and the mint identity, and submit.
// Metadata hosting is content-addressed, so a ledger failure after a
// successful upload leaves only harmlessly orphaned metadata behind.
func (s *Service) createCustomToken(ctx context.Context, params map[string]any) (any, error) {
	const op = "createCustomToken"

	if s.uploader == nil || s.builder == nil {
		return nil, operr.Unavailable(op, "token creation is not configured")
	}

	key := optString(params, "privateKey")
	if key == "" {
		key = s.opts.MintSigningKey
	}
	if key == "" {
		return nil, operr.InvalidParams(op, "privateKey",
			"is required when no default signing key is configured")
	}
	signer, err := solana.ParsePrivateKey(key)
	if err != nil {
		return nil, operr.InvalidParams(op, "privateKey", err.Error())
	}

	meta := pumpfun.Metadata{
		Name:        params["name"].(string),
		Symbol:      params["symbol"].(string),
		Description: optString(params, "description"),
		ImageURL:    optString(params, "imageUrl"),
		Twitter:     optString(params, "twitter"),
		Telegram:    optString(params, "telegram"),
		Website:     optString(params, "website"),
	}

	uri, err := s.uploader.UploadMetadata(ctx, meta)
	if err != nil {
		return nil, operr.MetadataUploadFailed(op, err)
	}

	// Fresh mint identity, used for exactly this one transaction.
	mint, err := solana.NewKeypair()
	if err != nil {
		return nil, fmt.Errorf("generate mint identity: %w", err)
	}

	slippageBps := s.opts.SlippageBps
	if v, ok := params["slippage"].(float64); ok && v > 0 {
		slippageBps = int(v)
	}
	priorityFee := s.opts.PriorityFee
	if v, ok := params["priorityFee"].(float64); ok && v > 0 {
		priorityFee = v
	}
	devBuy, _ := params["amount"].(float64)

	rawTx, err := s.builder.BuildCreateTransaction(ctx, pumpfun.CreateRequest{
		SignerAddress:  signer.Address(),
		MintAddress:    mint.Address(),
		MetadataURI:    uri,
		Name:           meta.Name,
		Symbol:         meta.Symbol,
		DevBuySOL:      devBuy,
		SlippageBps:    slippageBps,
		PriorityFeeSOL: priorityFee,
	})
	if err != nil {
		return nil, operr.RemoteCallFailed(op, fmt.Errorf("build create transaction: %w", err))
	}

	signed, err := solana.SignSerialized(rawTx, []solana.Keypair{signer, mint})
	if err != nil {
		return nil, operr.RemoteCallFailed(op, fmt.Errorf("sign create transaction: %w", err))
	}

	var signature string
	err = s.conn.Invoke(ctx, func(c *rpc.Client) error {
		var err error
		signature, err = c.SendTransaction(ctx, solana.EncodeBase64(signed))
		return err
	})
	if err != nil {
		return nil, err
	}

	return MintReceipt{
		TransactionID: signature,
		MintAddress:   mint.Address(),
		MetadataURI:   uri,
		Name:          meta.Name,
		Symbol:        meta.Symbol,
	}, nil
}

func optString(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
