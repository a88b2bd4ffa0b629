package cli

import (
	"os"

	"github.com/google/uuid"

	"github.com/mrz1836/mns/internal/config"
	"github.com/mrz1836/mns/internal/connector"
	"github.com/mrz1836/mns/internal/metrics"
	"github.com/mrz1836/mns/internal/modal"
	"github.com/mrz1836/mns/internal/notice"
	"github.com/mrz1836/mns/internal/output"
	"github.com/mrz1836/mns/internal/rpc"
	"github.com/mrz1836/mns/internal/session"
)

// newNotifierFn builds the notifier for wrong-network notices; swapped in tests.
//
//nolint:gochecknoglobals // replaced by tests to avoid waiting on stdin
var newNotifierFn = func() notice.Notifier { return notice.NewTerminalNotifier() }

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config    *config.Config
	Logger    *config.Logger
	Formatter *output.Formatter
	Notifier  notice.Notifier
	Chooser   modal.Chooser
	Cache     modal.Cache
	Metrics   *metrics.Metrics
	Getenv    func(string) string
}

// NewCommandContext creates a context with the given dependencies.
func NewCommandContext(
	c *config.Config,
	l *config.Logger,
	f *output.Formatter,
) *CommandContext {
	return &CommandContext{
		Config:    c,
		Logger:    l,
		Formatter: f,
		Notifier:  newNotifierFn(),
		Chooser:   modal.ChooserFunc(promptConnectorFn),
		Metrics:   metrics.Global,
		Getenv:    os.Getenv,
	}
}

// WithNotifier sets where blocking notices go.
func (c *CommandContext) WithNotifier(n notice.Notifier) *CommandContext {
	c.Notifier = n
	return c
}

// WithChooser sets how the user picks between connectors.
func (c *CommandContext) WithChooser(ch modal.Chooser) *CommandContext {
	c.Chooser = ch
	return c
}

// WithCache sets where the chosen connector is remembered.
func (c *CommandContext) WithCache(cache modal.Cache) *CommandContext {
	c.Cache = cache
	return c
}

// SessionConfig maps the configuration onto a session configuration.
func (c *CommandContext) SessionConfig() (session.Config, error) {
	target, err := c.Config.TargetNetwork()
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		TargetNetwork:         target,
		ConnectorOptions:      c.Config.Wallet.Connectors,
		AllowInjectedProvider: c.Config.Wallet.AllowInjectedProvider,
		InjectedURL:           c.Config.Wallet.InjectedURL,
		CacheProvider:         c.Config.Wallet.CacheProvider,
	}, nil
}

// ConnectorEnv returns what connectors need from the process.
func (c *CommandContext) ConnectorEnv() connector.Env {
	opts := &rpc.ClientOptions{
		Timeout: c.Config.RPCTimeout(),
		Metrics: c.Metrics,
	}
	if r := c.Config.Wallet.RateLimit; r > 0 {
		opts.Limiter = rpc.NewLimiter(r)
	}
	return connector.Env{
		Prompt:  promptPasswordFn,
		Getenv:  c.Getenv,
		RPC:     opts,
		NodeURL: c.Config.Network.NodeRPC,
	}
}

// ModalCache returns the connector choice cache, backed by
// <home>/modal.yaml unless one was set.
func (c *CommandContext) ModalCache() (modal.Cache, error) {
	if c.Cache != nil {
		return c.Cache, nil
	}
	path, err := c.Config.ModalCachePath()
	if err != nil {
		return nil, err
	}
	c.Cache = modal.NewFileCache(path)
	return c.Cache, nil
}

// NewSession builds and initializes a wallet session.
func (c *CommandContext) NewSession() (*session.Session, error) {
	sessCfg, err := c.SessionConfig()
	if err != nil {
		return nil, err
	}
	cache, err := c.ModalCache()
	if err != nil {
		return nil, err
	}

	log := c.Logger
	if log == nil {
		log = config.NullLogger()
	}
	log = log.With("session", uuid.NewString()[:8])

	modalOpts := []modal.Option{modal.WithCache(cache), modal.WithLogger(log)}
	if c.Chooser != nil {
		modalOpts = append(modalOpts, modal.WithChooser(c.Chooser))
	}

	sess := session.New(
		session.WithNotifier(c.Notifier),
		session.WithLogger(log),
		session.WithMetrics(c.Metrics),
		session.WithModalFactory(session.DefaultModalFactory(c.ConnectorEnv(), modalOpts...)),
	)
	if err := sess.Initialize(sessCfg); err != nil {
		return nil, err
	}
	return sess, nil
}
