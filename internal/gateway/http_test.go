package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwire/solwire/internal/config"
	"github.com/solwire/solwire/internal/conn"
	"github.com/solwire/solwire/internal/endpoint"
	"github.com/solwire/solwire/internal/gateway"
	"github.com/solwire/solwire/internal/ops"
	"github.com/solwire/solwire/internal/pumpfun"
	"github.com/solwire/solwire/internal/rpc/rpctest"
	"github.com/solwire/solwire/internal/solana"
	"github.com/solwire/solwire/internal/system"
	"github.com/solwire/solwire/pkg/logger"
)

type gatewayEnv struct {
	node *rpctest.Node
	srv  *httptest.Server
}

type nopUploader struct{}

func (nopUploader) UploadMetadata(context.Context, pumpfun.Metadata) (string, error) {
	return "https://ipfs.example/meta.json", nil
}

type nopBuilder struct{}

func (nopBuilder) BuildCreateTransaction(context.Context, pumpfun.CreateRequest) ([]byte, error) {
	return nil, fmt.Errorf("not wired in tests")
}

func newGatewayEnv(t *testing.T) *gatewayEnv {
	t.Helper()

	node := rpctest.NewNode()
	t.Cleanup(node.Close)
	node.HandleResult("getSlot", 500)

	pool := endpoint.NewPool(endpoint.Profile{
		Name:       "test",
		Endpoints:  []string{node.URL()},
		Commitment: "confirmed",
	})
	log := logger.NewDefault("gateway-test")
	manager := conn.NewManager(pool, log,
		conn.WithProbeTimeout(2*time.Second),
		conn.WithRPCTimeout(2*time.Second),
	)
	require.NoError(t, manager.Connect(context.Background()))

	service := ops.NewService(manager, nopUploader{}, nopBuilder{}, log, ops.Options{
		ConfirmTimeout:      time.Second,
		ConfirmPollInterval: 10 * time.Millisecond,
	})

	cfg := &config.Config{
		Network:        "test",
		Commitment:     "confirmed",
		ServerName:     "solwire-test",
		ServerVersion:  "0.0.0",
		RateLimit:      1000,
		RateLimitBurst: 1000,
		CORSOrigins:    []string{"*"},
	}

	gw := gateway.NewServer(cfg, service.Registry(), manager, system.NewService(), log)
	srv := httptest.NewServer(gw.Router())
	t.Cleanup(srv.Close)

	return &gatewayEnv{node: node, srv: srv}
}

func (e *gatewayEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (e *gatewayEnv) post(t *testing.T, path string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	env := newGatewayEnv(t)
	resp, body := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	env := newGatewayEnv(t)
	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNetworkEndpoint(t *testing.T) {
	env := newGatewayEnv(t)
	resp, body := env.get(t, "/api/network")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(500), body["height"])
}

func TestBalanceEndpoint(t *testing.T) {
	env := newGatewayEnv(t)
	env.node.HandleResult("getBalance", map[string]any{"value": 3000000000})

	kp, err := solana.NewKeypair()
	require.NoError(t, err)

	resp, body := env.get(t, "/api/balance/"+kp.Address())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3000000000), body["lamports"])
	assert.Equal(t, 3.0, body["sol"])
}

func TestBalanceEndpointRejectsBadAddress(t *testing.T) {
	env := newGatewayEnv(t)

	resp, body := env.get(t, "/api/balance/obviously-wrong")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "address")
	assert.Equal(t, 0, env.node.Calls("getBalance"))
}

func TestTransactionsEndpointLimitValidation(t *testing.T) {
	env := newGatewayEnv(t)
	kp, err := solana.NewKeypair()
	require.NoError(t, err)

	resp, _ := env.get(t, "/api/transactions/"+kp.Address()+"?limit=500")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, env.node.Calls("getSignaturesForAddress"))
}

func TestWalletCreateEndpoint(t *testing.T) {
	env := newGatewayEnv(t)

	resp, body := env.post(t, "/api/wallet/create", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The returned private key must derive back to the returned public key.
	kp, err := solana.ParsePrivateKey(body["privateKey"].(string))
	require.NoError(t, err)
	assert.Equal(t, body["publicKey"], kp.Address())
}

func TestTransferEndpointMapsKeyMismatchTo400(t *testing.T) {
	env := newGatewayEnv(t)

	from, err := solana.NewKeypair()
	require.NoError(t, err)
	to, err := solana.NewKeypair()
	require.NoError(t, err)
	stranger, err := solana.NewKeypair()
	require.NoError(t, err)

	resp, body := env.post(t, "/api/transfer", map[string]any{
		"from":       from.Address(),
		"to":         to.Address(),
		"amount":     1.0,
		"privateKey": stranger.PrivateKeyBase58(),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "private key")
	assert.Equal(t, 0, env.node.Calls("sendTransaction"))
}

func TestExecuteEndpointDispatchesOperations(t *testing.T) {
	env := newGatewayEnv(t)
	env.node.HandleResult("getBalance", map[string]any{"value": 1000000000})

	kp, err := solana.NewKeypair()
	require.NoError(t, err)

	resp, body := env.post(t, "/api/mcp/execute", map[string]any{
		"action":     "getBalance",
		"parameters": map[string]any{"address": kp.Address()},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, 1.0, data["sol"])
}

func TestExecuteEndpointUnknownAction(t *testing.T) {
	env := newGatewayEnv(t)

	resp, body := env.post(t, "/api/mcp/execute", map[string]any{
		"action": "launchMissiles",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "launchMissiles")
}

func TestExecuteEndpointMissingParameterDoesNotCrash(t *testing.T) {
	env := newGatewayEnv(t)

	resp, body := env.post(t, "/api/mcp/execute", map[string]any{
		"action": "getBalance",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "address")
}

func TestDegradedConnectionMapsTo503(t *testing.T) {
	env := newGatewayEnv(t)
	env.node.SetFailing(true)

	kp, err := solana.NewKeypair()
	require.NoError(t, err)

	// First request burns the handle via the failed failover attempt.
	resp, _ := env.get(t, "/api/balance/"+kp.Address())
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// Once degraded, requests map to service unavailable.
	resp, body := env.get(t, "/api/balance/"+kp.Address())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body["error"], "no healthy connection")
}

func TestSystemEndpoint(t *testing.T) {
	env := newGatewayEnv(t)

	resp, body := env.get(t, "/api/system")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "process")
	require.Contains(t, body, "connection")
	connection := body["connection"].(map[string]any)
	assert.Equal(t, true, connection["connected"])
}

func TestTransactionStatusEndpoint(t *testing.T) {
	env := newGatewayEnv(t)
	env.node.HandleResult("getSignatureStatuses", map[string]any{
		"value": []any{map[string]any{
			"slot":               11,
			"confirmationStatus": "confirmed",
			"err":                nil,
		}},
	})

	kp, err := solana.NewKeypair()
	require.NoError(t, err)
	signature := base58.Encode(kp.Sign([]byte("x")))

	resp, body := env.get(t, "/api/transaction/"+signature)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "confirmed", body["confirmationStatus"])
}
