// Package web serves the whitelist page and a small JSON API over one
// wallet session.
package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/mrz1836/mns/internal/metrics"
	"github.com/mrz1836/mns/internal/notice"
	"github.com/mrz1836/mns/internal/output"
	"github.com/mrz1836/mns/internal/provider"
	"github.com/mrz1836/mns/internal/session"
	"github.com/mrz1836/mns/internal/ui"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// Defaults for Config.
const (
	DefaultListen         = "127.0.0.1:8080"
	defaultRateLimit      = 10
	defaultRateBurst      = 20
	defaultConnectTimeout = 2 * time.Minute
	rateLimitExpiry       = 3 * time.Minute
)

// WalletSession is the session surface the server drives.
type WalletSession interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Signer(ctx context.Context) (*provider.Signer, error)
	Snapshot() session.Status
	Connecting() bool
}

// Config configures the server.
type Config struct {
	Listen         string
	RateLimit      float64
	RateBurst      int
	ConnectTimeout time.Duration
}

// Server is the HTTP surface.
type Server struct {
	cfg     Config
	echo    *echo.Echo
	session WalletSession
	notices *notice.Recorder
	metrics *metrics.Metrics
	logger  session.LogWriter
	pending atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics sets the metrics exposed at /api/metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets where request and wallet errors are logged.
func WithLogger(l session.LogWriter) Option {
	return func(s *Server) { s.logger = l }
}

// StatusResponse is the body of /api/status and the POST endpoints.
type StatusResponse struct {
	Page       ui.Page             `json:"page"`
	Session    session.Status      `json:"session"`
	Connecting bool                `json:"connecting"`
	Notices    []notice.Notice     `json:"notices,omitempty"`
	Error      *output.ErrorDetail `json:"error,omitempty"`
}

// JoinResponse is the body of POST /join.
type JoinResponse struct {
	StatusResponse

	Account string `json:"account,omitempty"`
}

type pageData struct {
	Page ui.Page
}

// New builds the server. The session's notifier should be a notice.Routed
// falling back to notices: notices raised while serving a request are
// answered in that request's response, and the rest (from AutoConnect)
// are shown on the next page load.
func New(cfg Config, sess WalletSession, notices *notice.Recorder, opts ...Option) *Server {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	s := &Server{
		cfg:     cfg,
		session: sess,
		notices: notices,
		metrics: metrics.Global,
		logger:  discardLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = newTemplateRenderer()
	e.HTTPErrorHandler = s.handleHTTPError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error("[%s] %s %s -> %d: %v", v.RequestID, v.Method, v.URI, v.Status, v.Error)
				return nil
			}
			s.logger.Debug("[%s] %s %s -> %d", v.RequestID, v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RateLimit),
			Burst:     cfg.RateBurst,
			ExpiresIn: rateLimitExpiry,
		}),
	}))

	e.GET("/", s.handlePage)
	e.POST("/connect", s.handleConnect)
	e.POST("/disconnect", s.handleDisconnect)
	e.POST("/join", s.handleJoin)
	e.GET("/api/status", s.handleStatus)
	e.GET("/api/metrics", s.handleMetrics)
	e.GET("/healthz", s.handleHealth)

	s.echo = e
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Listen returns the configured listen address.
func (s *Server) Listen() string {
	return s.cfg.Listen
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	if err := s.echo.Start(s.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// AutoConnect tries to connect once, the way the page does on load while
// disconnected. Failures are logged and left for the page to show.
func (s *Server) AutoConnect(ctx context.Context) {
	if s.session.Snapshot().Connected {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	if err := s.session.Connect(ctx); err != nil {
		s.logger.Error("auto connect: %v", err)
	}
}

func (s *Server) handlePage(c echo.Context) error {
	return c.Render(http.StatusOK, "page", pageData{Page: s.page(s.drainNotices())})
}

func (s *Server) handleConnect(c echo.Context) error {
	ctx, notices := requestNotices(c)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	err := s.session.Connect(ctx)
	return s.respond(c, notices, err, nil)
}

func (s *Server) handleDisconnect(c echo.Context) error {
	ctx, notices := requestNotices(c)
	err := s.session.Disconnect(ctx)
	if errors.Is(err, mnserr.ErrNotConnected) {
		err = nil
	}
	return s.respond(c, notices, err, nil)
}

// handleJoin acquires a signer for the connected account. The pending flag
// drives the "Loading..." label while the wallet is asked.
func (s *Server) handleJoin(c echo.Context) error {
	ctx, notices := requestNotices(c)
	if !s.session.Snapshot().Connected {
		return s.respond(c, notices, mnserr.ErrNotConnected, nil)
	}
	if !s.pending.CompareAndSwap(false, true) {
		return s.respond(c, notices, mnserr.ErrJoinInFlight, nil)
	}

	signer, err := s.session.Signer(ctx)
	s.pending.Store(false)

	var account string
	if err == nil {
		account = signer.Address().Hex()
	}
	return s.respond(c, notices, err, &account)
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.status(s.drainNotices(), nil))
}

func (s *Server) handleMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// requestNotices binds a recorder to the request so the session's notices
// for it come back in its own response.
func requestNotices(c echo.Context) (context.Context, *notice.Recorder) {
	rec := &notice.Recorder{}
	return notice.WithRecorder(c.Request().Context(), rec), rec
}

// respond answers a POST: JSON for API clients, otherwise the page with
// any notice or error shown in the banner.
func (s *Server) respond(c echo.Context, rec *notice.Recorder, err error, account *string) error {
	notices := rec.Drain()
	code := http.StatusOK
	if err != nil {
		code = StatusCode(err)
	}

	if !wantsJSON(c) {
		page := s.page(notices)
		if page.Notice == "" && err != nil {
			page.Notice = output.NewErrorDetail(err).Message
		}
		return c.Render(code, "page", pageData{Page: page})
	}

	status := s.status(notices, err)
	if account != nil {
		return c.JSON(code, JoinResponse{StatusResponse: status, Account: *account})
	}
	return c.JSON(code, status)
}

func (s *Server) status(notices []notice.Notice, err error) StatusResponse {
	resp := StatusResponse{
		Page:       s.page(notices),
		Session:    s.session.Snapshot(),
		Connecting: s.session.Connecting(),
		Notices:    notices,
	}
	if err != nil {
		detail := output.NewErrorDetail(err)
		resp.Error = &detail
	}
	return resp
}

func (s *Server) page(notices []notice.Notice) ui.Page {
	status := s.session.Snapshot()
	page := ui.NewPage(status.Connected, s.pending.Load())
	page.Account = status.Account
	page.Network = status.Target.DisplayName()
	if len(notices) > 0 {
		page.Notice = notices[len(notices)-1].Message
	}
	return page
}

func (s *Server) drainNotices() []notice.Notice {
	if s.notices == nil {
		return nil
	}
	return s.notices.Drain()
}

func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		}
	}

	if jsonErr := c.JSON(code, output.ErrorOutput{Error: output.ErrorDetail{
		Code:     strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_")),
		Message:  message,
		ExitCode: mnserr.ExitGeneral,
	}}); jsonErr != nil {
		s.logger.Error("writing error response: %v", jsonErr)
	}
}

// StatusCode maps the wallet error taxonomy to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, mnserr.ErrExtensionUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, mnserr.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, mnserr.ErrWrongNetwork),
		errors.Is(err, mnserr.ErrConnectInFlight),
		errors.Is(err, mnserr.ErrJoinInFlight),
		errors.Is(err, mnserr.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func wantsJSON(c echo.Context) bool {
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) ||
		strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Error(string, ...any) {}
