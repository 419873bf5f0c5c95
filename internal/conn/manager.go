// Package conn owns the live connection to the Solana network. It walks the
// endpoint pool in order, probes candidates for liveness, and fails over to
// the next candidate when the active endpoint goes bad. The active handle is
// the only shared mutable state in the process; it is replaced wholesale,
// never mutated in place.
package conn

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/solwire/solwire/internal/endpoint"
	"github.com/solwire/solwire/internal/metrics"
	"github.com/solwire/solwire/internal/ops/operr"
	"github.com/solwire/solwire/internal/rpc"
	"github.com/solwire/solwire/pkg/logger"
)

const (
	// DefaultProbeTimeout bounds a single liveness probe.
	DefaultProbeTimeout = 10 * time.Second
	// DefaultDebounce suppresses health checks issued within this window
	// of the previous one.
	DefaultDebounce = 10 * time.Second
	// DefaultHealthSchedule drives the proactive health loop.
	DefaultHealthSchedule = "@every 30s"
)

// State is a read-only snapshot of the connection.
type State struct {
	Connected      bool      `json:"connected"`
	ActiveEndpoint string    `json:"activeEndpoint,omitempty"`
	LastCheck      time.Time `json:"lastCheck"`
}

// Manager selects and owns exactly one active RPC client at a time.
type Manager struct {
	pool         *endpoint.Pool
	log          *logger.Logger
	probeTimeout time.Duration
	debounce     time.Duration
	rpcTimeout   time.Duration

	mu        sync.RWMutex
	client    *rpc.Client // nil while degraded
	index     int         // pool index of the active endpoint
	connected bool
	lastCheck time.Time
}

// Option tunes manager construction.
type Option func(*Manager)

// WithProbeTimeout overrides the per-probe timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Manager) { m.probeTimeout = d }
}

// WithDebounce overrides the health check debounce window.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.debounce = d }
}

// WithRPCTimeout overrides the request timeout of constructed clients.
func WithRPCTimeout(d time.Duration) Option {
	return func(m *Manager) { m.rpcTimeout = d }
}

// NewManager builds a manager over the given pool. It does not connect;
// call Connect once at startup, then let the health loop take over.
func NewManager(pool *endpoint.Pool, log *logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		pool:         pool,
		log:          log,
		probeTimeout: DefaultProbeTimeout,
		debounce:     DefaultDebounce,
		index:        -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect iterates the endpoint pool in order, probing each candidate with
// a getSlot call. The first success becomes the active connection. When all
// candidates fail, the manager stays degraded and dependent operations see
// an unavailable error instead of a construction failure.
func (m *Manager) Connect(ctx context.Context) error {
	profile := m.pool.Profile()

	for i, url := range m.pool.Sequence() {
		client, err := rpc.NewClient(rpc.Config{
			Endpoint:   url,
			Commitment: profile.Commitment,
			Timeout:    m.rpcTimeout,
		})
		if err != nil {
			m.log.Field("endpoint", url).Warnf("skipping endpoint: %v", err)
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		slot, err := client.GetSlot(probeCtx)
		cancel()
		if err != nil {
			metrics.RecordProbeFailure()
			m.log.Field("endpoint", url).Warnf("liveness probe failed: %v", err)
			continue
		}

		m.mu.Lock()
		m.client = client
		m.index = i
		m.connected = true
		m.lastCheck = time.Now()
		m.mu.Unlock()

		metrics.SetActiveEndpoint(i)
		m.log.Field("endpoint", url).Field("slot", slot).Infof("connected to %s", profile.Name)
		return nil
	}

	m.mu.Lock()
	m.client = nil
	m.index = -1
	m.connected = false
	m.lastCheck = time.Now()
	m.mu.Unlock()

	metrics.SetActiveEndpoint(-1)
	m.log.Errorf("all %d endpoints for %s failed, entering degraded mode", m.pool.Len(), profile.Name)
	return operr.Unavailable("connect", "no healthy endpoint in pool")
}

// CheckHealth re-probes the active endpoint unless a check ran within the
// debounce window. A failed probe flips the manager to disconnected and
// immediately attempts a full reconnect, preferring earlier pool entries.
func (m *Manager) CheckHealth(ctx context.Context) {
	m.mu.Lock()
	if time.Since(m.lastCheck) < m.debounce {
		m.mu.Unlock()
		return
	}
	m.lastCheck = time.Now()
	client := m.client
	m.mu.Unlock()

	if client == nil {
		metrics.RecordFailover()
		_ = m.Connect(ctx)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	_, err := client.GetSlot(probeCtx)
	cancel()
	if err == nil {
		return
	}

	metrics.RecordProbeFailure()
	m.log.Field("endpoint", client.Endpoint()).Warnf("health check failed: %v", err)

	m.mu.Lock()
	// Another goroutine may have already replaced the handle.
	if m.client == client {
		m.client = nil
		m.index = -1
		m.connected = false
	}
	m.mu.Unlock()

	metrics.RecordFailover()
	_ = m.Connect(ctx)
}

// Handle returns the current connection handle, or an unavailable error
// when the manager is degraded. Callers get a consistent snapshot: either
// the pre- or post-failover handle, never a partially constructed one.
func (m *Manager) Handle() (*rpc.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected || m.client == nil {
		return nil, operr.Unavailable("", "no healthy connection to the network")
	}
	return m.client, nil
}

// Invoke runs fn against the active handle. A transport-level failure
// triggers exactly one failover-and-retry, transparent to the caller; node
// errors and validation failures pass straight through. Re-submitting the
// same signed transaction bytes is idempotent on the network side, so the
// single retry cannot duplicate a transfer.
func (m *Manager) Invoke(ctx context.Context, fn func(*rpc.Client) error) error {
	client, err := m.Handle()
	if err != nil {
		return err
	}

	err = fn(client)
	if err == nil || rpc.IsNodeError(err) || ctx.Err() != nil {
		return err
	}

	m.log.Err(err).Warnf("remote call failed, attempting failover")

	m.mu.Lock()
	if m.client == client {
		m.client = nil
		m.index = -1
		m.connected = false
	}
	m.mu.Unlock()

	metrics.RecordFailover()
	if cerr := m.Connect(ctx); cerr != nil {
		return err
	}

	retryClient, herr := m.Handle()
	if herr != nil {
		return err
	}
	return fn(retryClient)
}

// State returns a snapshot of the connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := State{
		Connected: m.connected,
		LastCheck: m.lastCheck,
	}
	if m.client != nil {
		s.ActiveEndpoint = m.client.Endpoint()
	}
	return s
}

// Schedule registers the recurring health check on the given cron runner so
// failover happens proactively, independent of request traffic.
func (m *Manager) Schedule(c *cron.Cron, spec string) error {
	if spec == "" {
		spec = DefaultHealthSchedule
	}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.probeTimeout*time.Duration(m.pool.Len()+1))
		defer cancel()
		m.CheckHealth(ctx)
	})
	return err
}
