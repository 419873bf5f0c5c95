package ops

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/solwire/solwire/internal/conn"
	"github.com/solwire/solwire/internal/pumpfun"
	"github.com/solwire/solwire/internal/rpc"
	"github.com/solwire/solwire/internal/solana"
	"github.com/solwire/solwire/pkg/logger"
)

// LamportsPerSOL converts between the smallest unit and the display unit.
const LamportsPerSOL = 1_000_000_000

// MetadataUploader uploads token metadata and returns its URI.
type MetadataUploader interface {
	UploadMetadata(ctx context.Context, meta pumpfun.Metadata) (string, error)
}

// TransactionBuilder returns an unsigned serialized create transaction.
type TransactionBuilder interface {
	BuildCreateTransaction(ctx context.Context, req pumpfun.CreateRequest) ([]byte, error)
}

// Options configures the operation service.
type Options struct {
	// ConfirmTimeout bounds the confirmation wait after submission.
	ConfirmTimeout time.Duration
	// ConfirmPollInterval is the status polling cadence.
	ConfirmPollInterval time.Duration
	// MintSigningKey is the default signer for token creation.
	MintSigningKey string
	// SlippageBps and PriorityFee are the defaults for the create flow.
	SlippageBps int
	PriorityFee float64
}

// Service binds the built-in operation set to the connection manager and
// the token-creation collaborators.
type Service struct {
	conn     *conn.Manager
	log      *logger.Logger
	uploader MetadataUploader
	builder  TransactionBuilder
	opts     Options
}

// NewService wires the operation handlers.
func NewService(cm *conn.Manager, uploader MetadataUploader, builder TransactionBuilder, log *logger.Logger, opts Options) *Service {
	if opts.ConfirmTimeout == 0 {
		opts.ConfirmTimeout = 60 * time.Second
	}
	if opts.ConfirmPollInterval == 0 {
		opts.ConfirmPollInterval = 2 * time.Second
	}
	if opts.SlippageBps == 0 {
		opts.SlippageBps = 1000
	}
	return &Service{
		conn:     cm,
		log:      log,
		uploader: uploader,
		builder:  builder,
		opts:     opts,
	}
}

// Registry builds the static operation set. Called once at startup; the
// returned registry is read-only afterwards.
func (s *Service) Registry() *Registry {
	r := NewRegistry()

	r.Register(Descriptor{
		Name:        "getNetworkStatus",
		Description: "Current network version, height, block time, health and supply figures",
		Schema:      Schema{},
		Handler:     s.getNetworkStatus,
	})
	r.Register(Descriptor{
		Name:        "getBalance",
		Description: "SOL balance of an address, in lamports and SOL",
		Schema: Schema{
			{Name: "address", Type: TypeAddress, Required: true, Description: "Base58 account address"},
		},
		Handler: s.getBalance,
	})
	r.Register(Descriptor{
		Name:        "getAccountInfo",
		Description: "Account existence and core fields",
		Schema: Schema{
			{Name: "address", Type: TypeAddress, Required: true, Description: "Base58 account address"},
		},
		Handler: s.getAccountInfo,
	})
	r.Register(Descriptor{
		Name:        "getTransactions",
		Description: "Recent transaction signatures for an address, newest first",
		Schema: Schema{
			{Name: "address", Type: TypeAddress, Required: true, Description: "Base58 account address"},
			{Name: "limit", Type: TypeLimit, Description: "Page size, 1-100, default 10"},
		},
		Handler: s.getTransactions,
	})
	r.Register(Descriptor{
		Name:        "createWallet",
		Description: "Generate a new keypair; the private key is returned once and never stored",
		Schema:      Schema{},
		Handler:     s.createWallet,
	})
	r.Register(Descriptor{
		Name:        "transferFunds",
		Description: "Sign, submit and confirm a SOL transfer",
		Schema: Schema{
			{Name: "fromAddress", Type: TypeAddress, Required: true, Description: "Sender address"},
			{Name: "toAddress", Type: TypeAddress, Required: true, Description: "Recipient address"},
			{Name: "amount", Type: TypeAmount, Required: true, Description: "Amount in SOL, must be positive"},
			{Name: "fromPrivateKey", Type: TypeString, Required: true, Description: "Base58 private key of the sender"},
		},
		Handler: s.transferFunds,
	})
	r.Register(Descriptor{
		Name:        "getTokenBalance",
		Description: "SPL token balance of a wallet for one mint",
		Schema: Schema{
			{Name: "walletAddress", Type: TypeAddress, Required: true, Description: "Token owner address"},
			{Name: "mintAddress", Type: TypeAddress, Required: true, Description: "Token mint address"},
		},
		Handler: s.getTokenBalance,
	})
	r.Register(Descriptor{
		Name:        "createCustomToken",
		Description: "Upload metadata and mint a new pump.fun token",
		Schema: Schema{
			{Name: "name", Type: TypeString, Required: true, Description: "Token name"},
			{Name: "symbol", Type: TypeString, Required: true, Description: "Token ticker symbol"},
			{Name: "description", Type: TypeString, Description: "Token description"},
			{Name: "imageUrl", Type: TypeString, Description: "Image URL to attach to the metadata"},
			{Name: "twitter", Type: TypeString, Description: "Twitter link"},
			{Name: "telegram", Type: TypeString, Description: "Telegram link"},
			{Name: "website", Type: TypeString, Description: "Website link"},
			{Name: "amount", Type: TypeNumber, Description: "Initial dev buy in SOL"},
			{Name: "slippage", Type: TypeNumber, Description: "Slippage tolerance in basis points"},
			{Name: "priorityFee", Type: TypeNumber, Description: "Priority fee in SOL"},
			{Name: "privateKey", Type: TypeString, Description: "Base58 signer key, defaults to the configured key"},
		},
		Handler: s.createCustomToken,
	})
	r.Register(Descriptor{
		Name:        "getTransactionStatus",
		Description: "Confirmation status of a submitted transaction signature",
		Schema: Schema{
			{Name: "signature", Type: TypeSignature, Required: true, Description: "Base58 transaction signature"},
		},
		Handler: s.getTransactionStatus,
	})

	return r
}

// NetworkStatus degrades missing sub-fields to null rather than failing the
// whole call; only the height probe is load-bearing.
type NetworkStatus struct {
	Version           *string  `json:"version"`
	Height            uint64   `json:"height"`
	BlockTime         *string  `json:"blockTime"`
	Healthy           bool     `json:"healthy"`
	TotalSupply       *float64 `json:"totalSupply"`
	CirculatingSupply *float64 `json:"circulatingSupply"`
}

func (s *Service) getNetworkStatus(ctx context.Context, _ map[string]any) (any, error) {
	var status NetworkStatus

	err := s.conn.Invoke(ctx, func(c *rpc.Client) error {
		slot, err := c.GetSlot(ctx)
		if err != nil {
			return err
		}
		status = NetworkStatus{Height: slot}

		if version, err := c.GetVersion(ctx); err == nil && version != "" {
			status.Version = &version
		}
		if ts, err := c.GetBlockTime(ctx, slot); err == nil && ts != 0 {
			formatted := time.Unix(ts, 0).UTC().Format(time.RFC3339)
			status.BlockTime = &formatted
		}
		if health, err := c.GetHealth(ctx); err == nil {
			status.Healthy = health == "ok"
		}
		if supply, err := c.GetSupply(ctx); err == nil {
			parsed := gjson.GetBytes(supply, "value")
			if total := parsed.Get("total"); total.Exists() {
				v := total.Float() / LamportsPerSOL
				status.TotalSupply = &v
			}
			if circ := parsed.Get("circulating"); circ.Exists() {
				v := circ.Float() / LamportsPerSOL
				status.CirculatingSupply = &v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// BalanceResult reports a balance in the smallest and the display unit.
type BalanceResult struct {
	Address  string  `json:"address"`
	Lamports uint64  `json:"lamports"`
	SOL      float64 `json:"sol"`
}

func (s *Service) getBalance(ctx context.Context, params map[string]any) (any, error) {
	address := params["address"].(string)

	var lamports uint64
	err := s.conn.Invoke(ctx, func(c *rpc.Client) error {
		var err error
		lamports, err = c.GetBalance(ctx, address)
		return err
	})
	if err != nil {
		return nil, err
	}

	return BalanceResult{
		Address:  address,
		Lamports: lamports,
		SOL:      float64(lamports) / LamportsPerSOL,
	}, nil
}

func (s *Service) getAccountInfo(ctx context.Context, params map[string]any) (any, error) {
	address := params["address"].(string)

	var raw []byte
	err := s.conn.Invoke(ctx, func(c *rpc.Client) error {
		value, err := c.GetAccountInfo(ctx, address)
		if err != nil {
			return err
		}
		raw = value
		return nil
	})
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.Exists() || parsed.Type == gjson.Null {
		// Absent accounts carry no fields beyond the address.
		return map[string]any{"exists": false, "address": address}, nil
	}

	return map[string]any{
		"exists":     true,
		"address":    address,
		"lamports":   parsed.Get("lamports").Uint(),
		"sol":        parsed.Get("lamports").Float() / LamportsPerSOL,
		"owner":      parsed.Get("owner").String(),
		"executable": parsed.Get("executable").Bool(),
		"rentEpoch":  parsed.Get("rentEpoch").Uint(),
	}, nil
}

// TransactionSummary is one row of a transaction history page.
type TransactionSummary struct {
	Signature string  `json:"signature"`
	Slot      uint64  `json:"slot"`
	Time      *string `json:"time"`
	Status    string  `json:"status"`
	Err       any     `json:"err"`
}

func (s *Service) getTransactions(ctx context.Context, params map[string]any) (any, error) {
	address := params["address"].(string)
	limit := params["limit"].(int)

	var sigs []rpc.SignatureInfo
	err := s.conn.Invoke(ctx, func(c *rpc.Client) error {
		var err error
		sigs, err = c.GetSignaturesForAddress(ctx, address, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	transactions := make([]TransactionSummary, 0, len(sigs))
	for _, sig := range sigs {
		summary := TransactionSummary{
			Signature: sig.Signature,
			Slot:      sig.Slot,
			Status:    sig.ConfirmationStatus,
		}
		if sig.BlockTime != nil {
			formatted := time.Unix(*sig.BlockTime, 0).UTC().Format(time.RFC3339)
			summary.Time = &formatted
		}
		if isJSONValue(sig.Err) {
			summary.Status = "failed"
			summary.Err = rawJSON(sig.Err)
		}
		transactions = append(transactions, summary)
	}

	return map[string]any{
		"address":      address,
		"count":        len(transactions),
		"transactions": transactions,
	}, nil
}

// WalletResult carries fresh key material back to the caller exactly once.
type WalletResult struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

func (s *Service) createWallet(_ context.Context, _ map[string]any) (any, error) {
	keypair, err := solana.NewKeypair()
	if err != nil {
		return nil, err
	}
	return WalletResult{
		PublicKey:  keypair.Address(),
		PrivateKey: keypair.PrivateKeyBase58(),
	}, nil
}

func (s *Service) getTokenBalance(ctx context.Context, params map[string]any) (any, error) {
	wallet := params["walletAddress"].(string)
	mint := params["mintAddress"].(string)

	var raw []byte
	err := s.conn.Invoke(ctx, func(c *rpc.Client) error {
		value, err := c.GetTokenAccountsByOwner(ctx, wallet, mint)
		if err != nil {
			return err
		}
		raw = value
		return nil
	})
	if err != nil {
		return nil, err
	}

	accounts := gjson.ParseBytes(raw)
	if !accounts.IsArray() || len(accounts.Array()) == 0 {
		return map[string]any{
			"walletAddress": wallet,
			"mintAddress":   mint,
			"balance":       0,
			"exists":        false,
		}, nil
	}

	var balance float64
	var decimals int64
	for _, acct := range accounts.Array() {
		amount := acct.Get("account.data.parsed.info.tokenAmount")
		balance += amount.Get("uiAmount").Float()
		decimals = amount.Get("decimals").Int()
	}

	return map[string]any{
		"walletAddress": wallet,
		"mintAddress":   mint,
		"balance":       balance,
		"decimals":      decimals,
		"exists":        true,
	}, nil
}

func (s *Service) getTransactionStatus(ctx context.Context, params map[string]any) (any, error) {
	signature := params["signature"].(string)

	var statuses []*rpc.SignatureStatus
	err := s.conn.Invoke(ctx, func(c *rpc.Client) error {
		var err error
		statuses, err = c.GetSignatureStatuses(ctx, []string{signature})
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(statuses) == 0 || statuses[0] == nil {
		return map[string]any{"signature": signature, "found": false}, nil
	}

	status := statuses[0]
	result := map[string]any{
		"signature":          signature,
		"found":              true,
		"slot":               status.Slot,
		"confirmationStatus": status.ConfirmationStatus,
	}
	if isJSONValue(status.Err) {
		result["err"] = rawJSON(status.Err)
	}
	return result, nil
}

// isJSONValue reports whether a raw message holds a real value, as opposed
// to being absent or JSON null.
func isJSONValue(raw []byte) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// rawJSON re-parses a raw message into a generic value for response bodies.
func rawJSON(raw []byte) any {
	return gjson.ParseBytes(raw).Value()
}
