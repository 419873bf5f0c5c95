// Package gateway serves the HTTP and WebSocket front-ends. Both funnel
// into the operation registry, so validation and error mapping are shared
// with the stdio adapter.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/solwire/solwire/internal/config"
	"github.com/solwire/solwire/internal/conn"
	"github.com/solwire/solwire/internal/metrics"
	"github.com/solwire/solwire/internal/middleware"
	"github.com/solwire/solwire/internal/ops"
	"github.com/solwire/solwire/internal/ops/operr"
	"github.com/solwire/solwire/internal/system"
	"github.com/solwire/solwire/pkg/logger"
)

// Server is the HTTP/WebSocket gateway.
type Server struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *ops.Registry
	conn     *conn.Manager
	sys      *system.Service
	router   *mux.Router
	srv      *http.Server
}

// NewServer builds the gateway with its full middleware chain and routes.
func NewServer(cfg *config.Config, registry *ops.Registry, cm *conn.Manager, sys *system.Service, log *logger.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: registry,
		conn:     cm,
		sys:      sys,
	}

	r := mux.NewRouter()
	r.Use(middleware.Recover(log))
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics())
	r.Use(middleware.NewCORS(cfg.CORSOrigins).Handler())
	r.Use(middleware.NewRateLimiter(cfg.RateLimit, cfg.RateLimitBurst, log).Handler())

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/api/network", s.network).Methods(http.MethodGet)
	r.HandleFunc("/api/balance/{address}", s.balance).Methods(http.MethodGet)
	r.HandleFunc("/api/transactions/{address}", s.transactions).Methods(http.MethodGet)
	r.HandleFunc("/api/account/{address}", s.account).Methods(http.MethodGet)
	r.HandleFunc("/api/transaction/{signature}", s.transactionStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/system", s.system).Methods(http.MethodGet)
	r.HandleFunc("/api/wallet/create", s.createWallet).Methods(http.MethodPost)
	r.HandleFunc("/api/transfer", s.transfer).Methods(http.MethodPost)
	r.HandleFunc("/api/mcp/execute", s.execute).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.websocket)

	// Preflight requests must match a route for the middleware chain to run.
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	s.router = r
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router exposes the handler, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.log.Infof("HTTP gateway listening on %s", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests within the context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) network(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "getNetworkStatus", nil)
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "getBalance", map[string]any{"address": mux.Vars(r)["address"]})
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	params := map[string]any{"address": mux.Vars(r)["address"]}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		params["limit"] = limit
	}
	s.run(w, r, "getTransactions", params)
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "getAccountInfo", map[string]any{"address": mux.Vars(r)["address"]})
}

func (s *Server) transactionStatus(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "getTransactionStatus", map[string]any{"signature": mux.Vars(r)["signature"]})
}

func (s *Server) system(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"process":    s.sys.Snapshot(),
		"connection": s.conn.State(),
	})
}

func (s *Server) createWallet(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "createWallet", nil)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		From       string `json:"from"`
		To         string `json:"to"`
		Amount     any    `json:"amount"`
		PrivateKey string `json:"privateKey"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.run(w, r, "transferFunds", map[string]any{
		"fromAddress":    payload.From,
		"toAddress":      payload.To,
		"amount":         payload.Amount,
		"fromPrivateKey": payload.PrivateKey,
	})
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Action     string         `json:"action"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Action == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("action is required"))
		return
	}

	result, err := s.registry.Execute(r.Context(), payload.Action, payload.Parameters)
	if err != nil {
		writeError(w, operr.HTTPStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": result})
}

// run dispatches one operation and maps its outcome onto the response.
func (s *Server) run(w http.ResponseWriter, r *http.Request, operation string, params map[string]any) {
	result, err := s.registry.Execute(r.Context(), operation, params)
	if err != nil {
		writeError(w, operr.HTTPStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
