// Package pumpfun talks to the two external collaborators of the token
// creation flow: the metadata/IPFS host and the create-transaction builder.
// Both are plain HTTP services; metadata hosting is content-addressed, so
// re-uploads after a failed ledger submission are harmless.
package pumpfun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultMetadataURL is the pump.fun IPFS upload endpoint.
	DefaultMetadataURL = "https://pump.fun/api/ipfs"
	// DefaultTradeURL is the PumpPortal local-signing transaction builder.
	DefaultTradeURL = "https://pumpportal.fun/api/trade-local"
)

// Metadata describes the token being created. Name and Symbol are required;
// the registry enforces that before this client is ever called.
type Metadata struct {
	Name        string
	Symbol      string
	Description string
	ImageURL    string
	Twitter     string
	Telegram    string
	Website     string
}

// CreateRequest asks the builder for an unsigned create-and-buy transaction.
type CreateRequest struct {
	// SignerAddress is the fee payer and dev-buy wallet.
	SignerAddress string
	// MintAddress is the fresh mint identity's public key.
	MintAddress string
	// MetadataURI is the URI returned by the metadata upload.
	MetadataURI string
	Name        string
	Symbol      string
	// DevBuySOL is the optional initial buy, denominated in SOL.
	DevBuySOL float64
	// SlippageBps caps price movement on the dev buy, in basis points.
	SlippageBps int
	// PriorityFeeSOL is the priority fee attached to the transaction.
	PriorityFeeSOL float64
}

// Client calls the metadata host and the transaction builder.
type Client struct {
	metadataURL string
	tradeURL    string
	httpClient  *http.Client
}

// Config configures the client. Zero values take the public defaults.
type Config struct {
	MetadataURL string
	TradeURL    string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// New creates a pump.fun client.
func New(cfg Config) *Client {
	if cfg.MetadataURL == "" {
		cfg.MetadataURL = DefaultMetadataURL
	}
	if cfg.TradeURL == "" {
		cfg.TradeURL = DefaultTradeURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		metadataURL: cfg.MetadataURL,
		tradeURL:    cfg.TradeURL,
		httpClient:  httpClient,
	}
}

// UploadMetadata pushes token metadata (and the image, when one is given)
// to the metadata host and returns the resulting metadata URI.
func (c *Client) UploadMetadata(ctx context.Context, meta Metadata) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	fields := map[string]string{
		"name":        meta.Name,
		"symbol":      meta.Symbol,
		"description": meta.Description,
		"twitter":     meta.Twitter,
		"telegram":    meta.Telegram,
		"website":     meta.Website,
		"showName":    "true",
	}
	for key, value := range fields {
		if value == "" && key != "name" && key != "symbol" && key != "showName" {
			continue
		}
		if err := form.WriteField(key, value); err != nil {
			return "", fmt.Errorf("write form field %s: %w", key, err)
		}
	}

	if meta.ImageURL != "" {
		if err := c.attachImage(ctx, form, meta.ImageURL); err != nil {
			return "", err
		}
	}

	if err := form.Close(); err != nil {
		return "", fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.metadataURL, &body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload metadata: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata host returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	uri := gjson.GetBytes(respBody, "metadataUri").String()
	if uri == "" {
		return "", fmt.Errorf("metadata host response missing metadataUri")
	}
	return uri, nil
}

func (c *Client) attachImage(ctx context.Context, form *multipart.Writer, imageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("create image request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image host returned %d", resp.StatusCode)
	}

	part, err := form.CreateFormFile("file", "token-image")
	if err != nil {
		return fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, io.LimitReader(resp.Body, 8<<20)); err != nil {
		return fmt.Errorf("copy image: %w", err)
	}
	return nil
}

// BuildCreateTransaction asks the builder for a serialized create-and-buy
// transaction. The response body is the raw transaction bytes, with empty
// signature slots for the signer and the mint identity.
func (c *Client) BuildCreateTransaction(ctx context.Context, req CreateRequest) ([]byte, error) {
	payload := map[string]interface{}{
		"publicKey": req.SignerAddress,
		"action":    "create",
		"tokenMetadata": map[string]string{
			"name":   req.Name,
			"symbol": req.Symbol,
			"uri":    req.MetadataURI,
		},
		"mint":             req.MintAddress,
		"denominatedInSol": "true",
		"amount":           req.DevBuySOL,
		"slippage":         float64(req.SlippageBps) / 100.0,
		"priorityFee":      req.PriorityFeeSOL,
		"pool":             "pump",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tradeURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read build response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transaction builder returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("transaction builder returned an empty transaction")
	}
	return respBody, nil
}
