// Package config loads gateway configuration from the environment, with an
// optional networks.yaml file overriding the built-in endpoint pools.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the gateway process. All values have
// documented defaults so an empty environment yields a working devnet setup.
type Config struct {
	// Network selects the logical network profile: mainnet, devnet,
	// testnet or local. Env: SOLWIRE_NETWORK (default devnet).
	Network string

	// RPCURLs overrides the endpoint pool for the selected network.
	// Env: SOLWIRE_RPC_URLS, comma separated, order is failover order.
	RPCURLs []string

	// Commitment is the default consistency level for reads and
	// confirmation waits: processed, confirmed or finalized.
	// Env: SOLWIRE_COMMITMENT (default confirmed).
	Commitment string

	// ServerName and ServerVersion identify the gateway to MCP clients.
	// Env: SOLWIRE_SERVER_NAME (default solwire), SOLWIRE_SERVER_VERSION.
	ServerName    string
	ServerVersion string

	// Port is the HTTP/WebSocket listen port. Env: SOLWIRE_PORT (default 3000).
	Port int

	// MetricsPort binds the stdio adapter's side listener for /health and
	// /metrics. Zero picks an ephemeral port. Env: SOLWIRE_METRICS_PORT.
	MetricsPort int

	// LogLevel and LogFormat configure pkg/logger.
	// Env: SOLWIRE_LOG_LEVEL (default info), SOLWIRE_LOG_FORMAT (default text).
	LogLevel  string
	LogFormat string

	// MintSigningKey is the default base58 private key used by the token
	// minting flow when the caller supplies none. Env: PUMP_PRIVATE_KEY.
	MintSigningKey string

	// SlippageBps and PriorityFee tune the create-and-buy transaction.
	// Env: PUMP_SLIPPAGE_BPS (default 1000), PUMP_PRIORITY_FEE (default 0.0005).
	SlippageBps int
	PriorityFee float64

	// ConfirmTimeout bounds the confirmation wait after a submission.
	// Env: SOLWIRE_CONFIRM_TIMEOUT (default 60s, Go duration syntax).
	ConfirmTimeout time.Duration

	// RateLimit caps requests per second per remote address on the HTTP
	// surface. Env: SOLWIRE_RATE_LIMIT (default 50, burst 100).
	RateLimit      int
	RateLimitBurst int

	// CORSOrigins lists allowed origins. Env: SOLWIRE_CORS_ORIGINS
	// (comma separated, default "*").
	CORSOrigins []string
}

// Default endpoint pools per network, primary first. Failover preference is
// always the configured order, never round-robin.
var defaultEndpoints = map[string][]string{
	"mainnet": {
		"https://api.mainnet-beta.solana.com",
		"https://solana-rpc.publicnode.com",
		"https://rpc.ankr.com/solana",
	},
	"devnet": {
		"https://api.devnet.solana.com",
		"https://rpc.ankr.com/solana_devnet",
	},
	"testnet": {
		"https://api.testnet.solana.com",
	},
	"local": {
		"http://127.0.0.1:8899",
	},
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Network:        envOr("SOLWIRE_NETWORK", "devnet"),
		Commitment:     envOr("SOLWIRE_COMMITMENT", "confirmed"),
		ServerName:     envOr("SOLWIRE_SERVER_NAME", "solwire"),
		ServerVersion:  envOr("SOLWIRE_SERVER_VERSION", "1.0.0"),
		LogLevel:       envOr("SOLWIRE_LOG_LEVEL", "info"),
		LogFormat:      envOr("SOLWIRE_LOG_FORMAT", "text"),
		MintSigningKey: os.Getenv("PUMP_PRIVATE_KEY"),
	}

	cfg.Network = strings.ToLower(strings.TrimSpace(cfg.Network))
	if _, ok := defaultEndpoints[cfg.Network]; !ok {
		return nil, fmt.Errorf("unknown network %q", cfg.Network)
	}

	switch cfg.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return nil, fmt.Errorf("unknown commitment level %q", cfg.Commitment)
	}

	var err error
	if cfg.Port, err = envInt("SOLWIRE_PORT", 3000); err != nil {
		return nil, err
	}
	if cfg.MetricsPort, err = envInt("SOLWIRE_METRICS_PORT", 0); err != nil {
		return nil, err
	}
	if cfg.SlippageBps, err = envInt("PUMP_SLIPPAGE_BPS", 1000); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = envInt("SOLWIRE_RATE_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = envInt("SOLWIRE_RATE_LIMIT_BURST", 100); err != nil {
		return nil, err
	}
	if cfg.PriorityFee, err = envFloat("PUMP_PRIORITY_FEE", 0.0005); err != nil {
		return nil, err
	}
	if cfg.ConfirmTimeout, err = envDuration("SOLWIRE_CONFIRM_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if raw := os.Getenv("SOLWIRE_RPC_URLS"); raw != "" {
		cfg.RPCURLs = splitList(raw)
	} else {
		cfg.RPCURLs = append([]string(nil), defaultEndpoints[cfg.Network]...)
	}

	if raw := os.Getenv("SOLWIRE_CORS_ORIGINS"); raw != "" {
		cfg.CORSOrigins = splitList(raw)
	} else {
		cfg.CORSOrigins = []string{"*"}
	}

	return cfg, nil
}

// networksFile mirrors the optional networks.yaml layout:
//
//	networks:
//	  mainnet:
//	    endpoints:
//	      - https://rpc.example.com
type networksFile struct {
	Networks map[string]struct {
		Endpoints []string `yaml:"endpoints"`
	} `yaml:"networks"`
}

// ApplyNetworksFile overrides the endpoint pool from a yaml file. A missing
// file is not an error; the built-in pools stay in effect.
func (c *Config) ApplyNetworksFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read networks file: %w", err)
	}

	var nf networksFile
	if err := yaml.Unmarshal(data, &nf); err != nil {
		return fmt.Errorf("parse networks file: %w", err)
	}

	if net, ok := nf.Networks[c.Network]; ok && len(net.Endpoints) > 0 {
		c.RPCURLs = append([]string(nil), net.Endpoints...)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
