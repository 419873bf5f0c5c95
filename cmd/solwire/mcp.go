package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/solwire/solwire/internal/mcp"
	"github.com/solwire/solwire/internal/metrics"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP stdio adapter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap(ctx, "mcp")
			if err != nil {
				return err
			}
			defer rt.stop()

			// Side listener so operators can still scrape health and
			// metrics while stdout belongs to the protocol.
			sideSrv, err := startSideListener(rt.cfg.MetricsPort)
			if err != nil {
				return err
			}
			defer sideSrv.Close()
			rt.log.Infof("health listener on %s", sideSrv.Addr)

			srv := mcp.NewServer(rt.cfg, rt.registry, os.Stdin, os.Stdout, rt.log)
			return srv.Run(ctx)
		},
	}
}

// startSideListener serves /health and /metrics on its own port. Port zero
// picks an ephemeral one; the bound address goes to the log.
func startSideListener(port int) (*http.Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("binding metrics listener: %w", err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	return srv, nil
}
