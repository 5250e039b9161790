// Package app bundles the per-browser stores into explicit contexts.
//
// A Context is created on a browser's first request and lives until it
// has been idle for the configured TTL or the process shuts down.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pumpdash/dashboard/internal/apiclient"
	"pumpdash/dashboard/internal/config"
	"pumpdash/dashboard/internal/ids"
	"pumpdash/dashboard/internal/metrics"
	"pumpdash/dashboard/internal/notification"
	"pumpdash/dashboard/internal/router"
	"pumpdash/dashboard/internal/session"
)

// Gateway is the API wrapper as seen by a context.
type Gateway interface {
	session.Gateway
	Do(ctx context.Context, method, path string, body any, opts *apiclient.Options) (json.RawMessage, error)
}

type GatewayFactory func() (Gateway, error)

type Context struct {
	ID            string
	API           Gateway
	Session       *session.Store
	Notifications *notification.Registry
	Navigator     *router.Navigator
	// LoginLimiter is nil when login throttling is disabled.
	LoginLimiter  *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

func (c *Context) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Context) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Context) close() {
	c.Notifications.Close()
}

// ErrContextLimit is returned by Create when the live context cap is hit
// and no idle context could be evicted.
var ErrContextLimit = errors.New("page context limit reached")

type Manager struct {
	mu       sync.Mutex
	contexts map[string]*Context

	table         *router.Table
	newGateway    GatewayFactory
	notifOpts     []notification.Option
	idleTTL       time.Duration
	max           int
	loginInterval time.Duration
	loginBurst    int
	now           func() time.Time
	log           zerolog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Manager)

func WithGatewayFactory(f GatewayFactory) Option {
	return func(m *Manager) { m.newGateway = f }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithNotificationOptions(opts ...notification.Option) Option {
	return func(m *Manager) { m.notifOpts = append(m.notifOpts, opts...) }
}

func NewManager(cfg *config.AppConfig, table *router.Table, log zerolog.Logger, mtr *metrics.Metrics, opts ...Option) *Manager {
	m := &Manager{
		contexts:      make(map[string]*Context),
		table:         table,
		idleTTL:       cfg.Contexts.IdleTTL,
		max:           cfg.Contexts.Max,
		loginInterval: cfg.Contexts.LoginInterval,
		loginBurst:    cfg.Contexts.LoginBurst,
		now:           time.Now,
		log:           log,
		metrics:       mtr,
		notifOpts: []notification.Option{
			notification.WithTimings(cfg.Notifications.Lifetime, cfg.Notifications.ResumeAfter),
		},
		newGateway: func() (Gateway, error) {
			return apiclient.New(cfg.Upstream, log.With().Str("component", "apiclient").Logger(), mtr)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a live context and marks it as seen.
func (m *Manager) Get(id string) (*Context, bool) {
	m.mu.Lock()
	c, ok := m.contexts[id]
	m.mu.Unlock()
	if ok {
		c.touch(m.now())
	}
	return c, ok
}

func (m *Manager) Create() (*Context, error) {
	if m.full() {
		m.Sweep()
		if m.full() {
			return nil, ErrContextLimit
		}
	}

	api, err := m.newGateway()
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	id := ids.New()
	log := m.log.With().Str("context_id", id).Logger()

	notifOpts := append([]notification.Option{
		notification.WithLogger(log),
		notification.WithAddHook(func(n notification.Notification) {
			m.metrics.NotificationAdded(string(n.Kind))
		}),
	}, m.notifOpts...)
	notes := notification.NewRegistry(notifOpts...)
	store := session.NewStore(api, log, m.metrics)

	c := &Context{
		ID:            id,
		API:           api,
		Session:       store,
		Notifications: notes,
		Navigator:     router.NewNavigator(m.table, store, notes, log, m.metrics),
		lastSeen:      m.now(),
	}
	if m.loginInterval > 0 && m.loginBurst > 0 {
		c.LoginLimiter = rate.NewLimiter(rate.Every(m.loginInterval), m.loginBurst)
	}

	m.mu.Lock()
	if m.max > 0 && len(m.contexts) >= m.max {
		m.mu.Unlock()
		c.close()
		return nil, ErrContextLimit
	}
	m.contexts[id] = c
	n := len(m.contexts)
	m.mu.Unlock()

	m.metrics.SetActiveContexts(n)
	log.Debug().Msg("page context created")
	return c, nil
}

// Sweep tears down contexts idle for longer than the TTL and returns how
// many were removed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var stale []*Context
	for id, c := range m.contexts {
		if c.LastSeen().Before(cutoff) {
			stale = append(stale, c)
			delete(m.contexts, id)
		}
	}
	n := len(m.contexts)
	m.mu.Unlock()

	for _, c := range stale {
		c.close()
	}
	m.metrics.SetActiveContexts(n)
	return len(stale)
}

func (m *Manager) full() bool {
	return m.max > 0 && m.Len() >= m.max
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.contexts)
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.contexts
	m.contexts = make(map[string]*Context)
	m.mu.Unlock()

	for _, c := range all {
		c.close()
	}
	m.metrics.SetActiveContexts(0)
	m.log.Info().Int("contexts", len(all)).Msg("page contexts closed")
}
