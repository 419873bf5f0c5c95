package main

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/solwire/solwire/internal/config"
	"github.com/solwire/solwire/internal/conn"
	"github.com/solwire/solwire/internal/endpoint"
	"github.com/solwire/solwire/internal/ops"
	"github.com/solwire/solwire/internal/pumpfun"
	"github.com/solwire/solwire/pkg/logger"
)

// runtime holds everything both commands share: configuration, the
// connection manager with its health loop, and the operation registry.
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	conn     *conn.Manager
	registry *ops.Registry
	cron     *cron.Cron
}

// bootstrap loads configuration, connects to the network and starts the
// health loop. A fully degraded pool is not fatal; the process starts and
// reports unavailable until an endpoint comes back.
func bootstrap(ctx context.Context, component string) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyNetworksFile(networksFile); err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}).Component(component)

	pool := endpoint.NewPool(endpoint.Profile{
		Name:       cfg.Network,
		Endpoints:  cfg.RPCURLs,
		Commitment: cfg.Commitment,
	})

	manager := conn.NewManager(pool, log.Component("conn"))
	if err := manager.Connect(ctx); err != nil {
		log.Err(err).Warn("starting degraded, no endpoint reachable")
	}

	c := cron.New()
	if err := manager.Schedule(c, conn.DefaultHealthSchedule); err != nil {
		return nil, err
	}
	c.Start()

	pump := pumpfun.New(pumpfun.Config{})
	service := ops.NewService(manager, pump, pump, log.Component("ops"), ops.Options{
		ConfirmTimeout: cfg.ConfirmTimeout,
		MintSigningKey: cfg.MintSigningKey,
		SlippageBps:    cfg.SlippageBps,
		PriorityFee:    cfg.PriorityFee,
	})

	return &runtime{
		cfg:      cfg,
		log:      log,
		conn:     manager,
		registry: service.Registry(),
		cron:     c,
	}, nil
}

// stop halts the health loop and waits for a running check to finish.
func (rt *runtime) stop() {
	<-rt.cron.Stop().Done()
}
