// Package session owns the wallet connection for one process: it connects
// through a modal, validates the network on every access and hands out a
// provider or a signer.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"

	"github.com/mrz1836/mns/internal/connector"
	"github.com/mrz1836/mns/internal/metrics"
	"github.com/mrz1836/mns/internal/modal"
	"github.com/mrz1836/mns/internal/network"
	"github.com/mrz1836/mns/internal/notice"
	"github.com/mrz1836/mns/internal/provider"
	"github.com/mrz1836/mns/internal/rpc"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// State is the connection state of a session.
type State int

// Session states.
const (
	Disconnected State = iota
	Connected
)

// String returns the state name.
func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Config describes the wallet set a session connects through.
type Config struct {
	TargetNetwork         network.ID
	ConnectorOptions      map[string]connector.Options
	AllowInjectedProvider bool
	InjectedURL           string
	CacheProvider         bool
}

// ModalConfig converts c to the modal's configuration.
func (c Config) ModalConfig() modal.Config {
	return modal.Config{
		ProviderOptions:         c.ConnectorOptions,
		DisableInjectedProvider: !c.AllowInjectedProvider,
		CacheProvider:           c.CacheProvider,
		InjectedURL:             c.InjectedURL,
	}
}

// Modal is the connector picker a session prompts through.
type Modal interface {
	Connect(ctx context.Context) (connector.Provider, connector.Connector, error)
	ClearCachedProvider() error
}

// ModalFactory builds the modal for a configuration.
type ModalFactory func(cfg Config) (Modal, error)

// LogWriter receives session diagnostics.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// Handle is the result of GetProviderOrSigner. Signer is set only when a
// signer was requested.
type Handle struct {
	Provider *provider.Web3Provider
	Signer   *provider.Signer
}

// Status is a point-in-time view of the session.
type Status struct {
	State       string     `json:"state"`
	Connected   bool       `json:"connected"`
	Initialized bool       `json:"initialized"`
	Connector   string     `json:"connector,omitempty"`
	Account     string     `json:"account,omitempty"`
	ChainID     network.ID `json:"chain_id,omitempty"`
	Target      network.ID `json:"target_chain_id"`
}

// Session is the wallet session. It is safe for concurrent use; concurrent
// connection attempts share one wallet prompt.
type Session struct {
	notifier notice.Notifier
	logger   LogWriter
	metrics  *metrics.Metrics
	factory  ModalFactory

	flight   singleflight.Group
	inFlight atomic.Int32

	mu        sync.Mutex
	prompting int
	cfg       Config
	modal     Modal
	state     State
	raw       connector.Provider
	connector string
	account   common.Address
	chainID   network.ID
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier sets where blocking notices go. Defaults to notice.Discard.
func WithNotifier(n notice.Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithLogger sets the diagnostics sink.
func WithLogger(l LogWriter) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics sets the metrics sink. Defaults to metrics.Global.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithModalFactory sets how Initialize builds the modal.
func WithModalFactory(f ModalFactory) Option {
	return func(s *Session) { s.factory = f }
}

// DefaultModalFactory builds a modal with an in-memory cache and no chooser.
func DefaultModalFactory(env connector.Env, opts ...modal.Option) ModalFactory {
	return func(cfg Config) (Modal, error) {
		return modal.New(cfg.ModalConfig(), env, opts...)
	}
}

// New creates a disconnected, uninitialized session.
func New(opts ...Option) *Session {
	s := &Session{
		notifier: notice.Discard,
		logger:   nopLogger{},
		metrics:  metrics.Global,
		factory:  DefaultModalFactory(connector.Env{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize builds the modal for cfg without touching the network. It can
// be repeated while disconnected; the target network of a connected session
// cannot change.
func (s *Session) Initialize(cfg Config) error {
	if cfg.TargetNetwork == 0 {
		cfg.TargetNetwork = network.Goerli
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prompting > 0 || s.inFlight.Load() > 0 {
		return mnserr.ErrConnectInFlight
	}
	if s.state == Connected {
		return mnserr.ErrAlreadyConnected
	}

	m, err := s.factory(cfg)
	if err != nil {
		return err
	}

	if s.raw != nil {
		s.raw.Close()
		s.raw = nil
	}
	s.cfg = cfg
	s.modal = m
	s.logger.Debug("wallet session initialized for %s", cfg.TargetNetwork)
	return nil
}

// Connect prompts for a wallet, validates its network and marks the
// session connected. Failures leave the state unchanged.
func (s *Session) Connect(ctx context.Context) error {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	_, err, _ := s.flight.Do("connect", func() (any, error) {
		err := s.connect(ctx)
		s.metrics.RecordConnect(err)
		if err != nil {
			s.logger.Error("wallet connect failed: %v", err)
		}
		return nil, err
	})
	return err
}

func (s *Session) connect(ctx context.Context) error {
	h, err := s.GetProviderOrSigner(ctx, false)
	if err != nil {
		return err
	}

	var account common.Address
	if accounts, accErr := h.Provider.Accounts(ctx); accErr == nil && len(accounts) > 0 {
		account = accounts[0]
	}

	s.mu.Lock()
	s.state = Connected
	s.account = account
	s.mu.Unlock()

	s.logger.Debug("wallet connected via %s as %s", s.connectorName(), account.Hex())
	return nil
}

// GetProviderOrSigner returns a provider, or a signer bound to the first
// account when needSigner is set. The raw provider is reused only while
// connected; otherwise the modal prompts. The chain id is queried on every
// call, and a mismatch shows a blocking notice before ErrWrongNetwork is
// returned.
func (s *Session) GetProviderOrSigner(ctx context.Context, needSigner bool) (Handle, error) {
	raw, err := s.rawProvider(ctx)
	if err != nil {
		return Handle{}, err
	}

	web3 := provider.NewWeb3Provider(raw)
	net, err := web3.GetNetwork(ctx)
	if err != nil {
		if errors.Is(err, rpc.ErrUnreachable) {
			return Handle{}, mnserr.WithCause(mnserr.ErrExtensionUnavailable, err)
		}
		return Handle{}, err
	}
	s.metrics.RecordNetworkCheck()

	s.mu.Lock()
	s.chainID = net.ChainID
	target := s.cfg.TargetNetwork
	s.mu.Unlock()

	if net.ChainID != target {
		s.logger.Debug("wallet on %s, want %s", net.ChainID, target)
		msg := "Change the network to " + target.DisplayName()
		if notifyErr := s.notifier.Notify(ctx, notice.Notice{
			Kind:    notice.KindWarning,
			Title:   "Wrong network",
			Message: msg,
		}); notifyErr != nil {
			s.logger.Error("showing wrong network notice: %v", notifyErr)
		}
		return Handle{}, mnserr.WithSuggestion(
			mnserr.WithDetails(mnserr.ErrWrongNetwork, map[string]string{
				"expected": target.String(),
				"actual":   net.ChainID.String(),
			}),
			msg,
		)
	}

	h := Handle{Provider: web3}
	if needSigner {
		signer, err := web3.GetSigner(ctx)
		if err != nil {
			return Handle{}, err
		}
		h.Signer = signer
	}
	return h, nil
}

// Provider is GetProviderOrSigner(ctx, false).Provider.
func (s *Session) Provider(ctx context.Context) (*provider.Web3Provider, error) {
	h, err := s.GetProviderOrSigner(ctx, false)
	if err != nil {
		return nil, err
	}
	return h.Provider, nil
}

// Signer is GetProviderOrSigner(ctx, true).Signer.
func (s *Session) Signer(ctx context.Context) (*provider.Signer, error) {
	h, err := s.GetProviderOrSigner(ctx, true)
	if err != nil {
		return nil, err
	}
	return h.Signer, nil
}

// rawProvider returns the stored provider while connected, otherwise
// prompts through the modal and stores the result. The modal cannot be
// replaced by Initialize while a prompt is open.
func (s *Session) rawProvider(ctx context.Context) (connector.Provider, error) {
	s.mu.Lock()
	if s.modal == nil {
		s.mu.Unlock()
		return nil, mnserr.ErrNotInitialized
	}
	if s.state == Connected && s.raw != nil {
		raw := s.raw
		s.mu.Unlock()
		return raw, nil
	}
	m := s.modal
	s.prompting++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.prompting--
		s.mu.Unlock()
	}()

	v, err, _ := s.flight.Do("prompt", func() (any, error) {
		p, c, err := m.Connect(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.raw != nil {
			s.raw.Close()
		}
		s.raw = p
		s.connector = c.Name()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(connector.Provider), nil
}

// Disconnect closes the wallet connection and forgets the cached choice so
// the next connect prompts again.
func (s *Session) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Connected && s.raw == nil {
		return mnserr.ErrNotConnected
	}
	s.teardownLocked()

	if s.modal != nil {
		if err := s.modal.ClearCachedProvider(); err != nil {
			s.logger.Error("clearing cached provider: %v", err)
			return err
		}
	}
	s.logger.Debug("wallet disconnected")
	return nil
}

// Close releases the wallet connection, keeping the cached choice.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	return nil
}

func (s *Session) teardownLocked() {
	if s.raw != nil {
		s.raw.Close()
		s.raw = nil
	}
	s.state = Disconnected
	s.connector = ""
	s.account = common.Address{}
	s.chainID = 0
}

// State returns the connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the session is connected.
func (s *Session) Connected() bool {
	return s.State() == Connected
}

// Connecting reports whether a connection attempt or wallet prompt is running.
func (s *Session) Connecting() bool {
	if s.inFlight.Load() > 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompting > 0
}

// Snapshot returns the current status.
func (s *Session) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var account string
	if s.account != (common.Address{}) {
		account = s.account.Hex()
	}
	return Status{
		State:       s.state.String(),
		Connected:   s.state == Connected,
		Initialized: s.modal != nil,
		Connector:   s.connector,
		Account:     account,
		ChainID:     s.chainID,
		Target:      s.cfg.TargetNetwork,
	}
}

func (s *Session) connectorName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connector
}
