// Package modal picks the wallet connector to use, the way a wallet
// selection dialog does: cached choice first, then the injected wallet or
// the user's pick among the configured connectors.
package modal

import (
	"context"
	"errors"

	"github.com/mrz1836/mns/internal/connector"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// Config selects the connectors a Modal offers.
type Config struct {
	ProviderOptions         map[string]connector.Options
	DisableInjectedProvider bool
	CacheProvider           bool
	InjectedURL             string
}

// Choice is one entry shown by a Chooser.
type Choice struct {
	Name    string `json:"name"`
	Display string `json:"display"`
	Type    string `json:"type"`
}

// Chooser lets the user pick one of several connectors.
type Chooser interface {
	Choose(ctx context.Context, choices []Choice) (string, error)
}

// ChooserFunc adapts a function to Chooser.
type ChooserFunc func(ctx context.Context, choices []Choice) (string, error)

// Choose implements Chooser.
func (f ChooserFunc) Choose(ctx context.Context, choices []Choice) (string, error) {
	return f(ctx, choices)
}

// Logger receives cache failures. A failing cache never blocks a connection.
type Logger interface {
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}

// Modal owns the connector set for one session.
type Modal struct {
	cfg        Config
	connectors []connector.Connector
	cache      Cache
	chooser    Chooser
	logger     Logger
}

// Option configures a Modal.
type Option func(*Modal)

// WithCache sets where the cached choice is kept. Defaults to memory.
func WithCache(c Cache) Option {
	return func(m *Modal) { m.cache = c }
}

// WithChooser sets the interactive picker used when several connectors exist.
func WithChooser(c Chooser) Option {
	return func(m *Modal) { m.chooser = c }
}

// WithLogger sets where cache failures are reported.
func WithLogger(l Logger) Option {
	return func(m *Modal) { m.logger = l }
}

// WithConnectors replaces the connectors built from Config.
func WithConnectors(cs ...connector.Connector) Option {
	return func(m *Modal) { m.connectors = cs }
}

// New builds the connector set described by cfg. It performs no I/O.
func New(cfg Config, env connector.Env, opts ...Option) (*Modal, error) {
	m := &Modal{cfg: cfg, cache: &MemoryCache{}, logger: nopLogger{}}

	var injected []connector.Connector
	if !cfg.DisableInjectedProvider {
		if _, overridden := cfg.ProviderOptions[connector.InjectedName]; !overridden {
			c, err := connector.Build(connector.InjectedName, connector.Options{
				Type:    connector.TypeInjected,
				URL:     cfg.InjectedURL,
				Display: "Injected wallet",
			}, env)
			if err != nil {
				return nil, err
			}
			injected = append(injected, c)
		}
	}

	configured, err := connector.BuildAll(cfg.ProviderOptions, env)
	if err != nil {
		return nil, err
	}
	if cfg.DisableInjectedProvider {
		configured = withoutType(configured, connector.TypeInjected)
	}
	m.connectors = append(injected, configured...)

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the configuration the modal was built from.
func (m *Modal) Config() Config {
	return m.cfg
}

// Connectors returns the connectors in the order they are tried.
func (m *Modal) Connectors() []connector.Connector {
	return m.connectors
}

// Choices describes the connectors for a Chooser.
func (m *Modal) Choices() []Choice {
	choices := make([]Choice, len(m.connectors))
	for i, c := range m.connectors {
		choices[i] = Choice{Name: c.Name(), Display: c.Display(), Type: string(c.Type())}
	}
	return choices
}

// CachedProvider returns the cached connector name, or "".
func (m *Modal) CachedProvider() string {
	if !m.cfg.CacheProvider {
		return ""
	}
	name, err := m.cache.Load()
	if err != nil {
		m.logger.Error("reading cached connector: %v", err)
		return ""
	}
	return name
}

// ClearCachedProvider forgets the cached choice.
func (m *Modal) ClearCachedProvider() error {
	return m.cache.Clear()
}

// Connect opens a raw provider. A cached choice is tried first; if its
// wallet is gone the cache is cleared and selection starts over. With a
// chooser and several connectors the user picks one. Otherwise connectors
// are tried in order, moving on only while wallets are unavailable.
func (m *Modal) Connect(ctx context.Context) (connector.Provider, connector.Connector, error) {
	if len(m.connectors) == 0 {
		return nil, nil, mnserr.WithDetails(mnserr.ErrExtensionUnavailable, map[string]string{
			"reason": "no wallet connectors configured",
		})
	}

	if name := m.CachedProvider(); name != "" {
		if c := m.find(name); c != nil {
			p, err := c.Connect(ctx)
			if err == nil {
				return p, c, nil
			}
			if !errors.Is(err, mnserr.ErrExtensionUnavailable) {
				return nil, c, err
			}
		}
		if err := m.cache.Clear(); err != nil {
			m.logger.Error("clearing stale connector %s: %v", name, err)
		}
	}

	if m.chooser != nil && len(m.connectors) > 1 {
		c, err := m.choose(ctx)
		if err != nil {
			return nil, nil, err
		}
		return m.connectOne(ctx, c)
	}

	var lastErr error
	for _, c := range m.connectors {
		p, used, err := m.connectOne(ctx, c)
		if err == nil {
			return p, used, nil
		}
		lastErr = err
		if !errors.Is(err, mnserr.ErrExtensionUnavailable) {
			return nil, used, err
		}
	}
	return nil, nil, lastErr
}

func (m *Modal) connectOne(ctx context.Context, c connector.Connector) (connector.Provider, connector.Connector, error) {
	p, err := c.Connect(ctx)
	if err != nil {
		return nil, c, err
	}
	if m.cfg.CacheProvider {
		if err := m.cache.Store(c.Name()); err != nil {
			m.logger.Error("caching connector %s: %v", c.Name(), err)
		}
	}
	return p, c, nil
}

func (m *Modal) choose(ctx context.Context) (connector.Connector, error) {
	name, err := m.chooser.Choose(ctx, m.Choices())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, mnserr.WithCause(mnserr.ErrUserRejected, err)
	}

	c := m.find(name)
	if c == nil {
		return nil, mnserr.WithDetails(mnserr.ErrUnknownConnector, map[string]string{"connector": name})
	}
	return c, nil
}

func (m *Modal) find(name string) connector.Connector {
	for _, c := range m.connectors {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func withoutType(cs []connector.Connector, t connector.Type) []connector.Connector {
	out := cs[:0]
	for _, c := range cs {
		if c.Type() != t {
			out = append(out, c)
		}
	}
	return out
}
