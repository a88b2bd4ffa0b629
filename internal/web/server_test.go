package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/mns/internal/connector"
	"github.com/mrz1836/mns/internal/metrics"
	"github.com/mrz1836/mns/internal/network"
	"github.com/mrz1836/mns/internal/notice"
	"github.com/mrz1836/mns/internal/provider"
	"github.com/mrz1836/mns/internal/session"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

const testAccount = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// fakeSession scripts Connect outcomes.
type fakeSession struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	notifier   notice.Notifier
	connects   int

	// signing, when set, holds Signer until it is closed.
	signing     chan struct{}
	signerCalls chan struct{}
}

// accountsTransport answers eth_accounts with testAccount.
type accountsTransport struct{}

func (accountsTransport) Request(_ context.Context, method string, _ ...any) (json.RawMessage, error) {
	if method != "eth_accounts" {
		return nil, mnserr.ErrGeneral
	}
	return json.Marshal([]string{testAccount})
}

func (f *fakeSession) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		if f.notifier != nil && mnserr.Is(f.connectErr, mnserr.ErrWrongNetwork) {
			_ = f.notifier.Notify(ctx, notice.Notice{Kind: notice.KindWarning, Message: "Change the network to Goerli"})
		}
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeSession) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return mnserr.ErrNotConnected
	}
	f.connected = false
	return nil
}

func (f *fakeSession) Signer(ctx context.Context) (*provider.Signer, error) {
	if f.signing == nil {
		return nil, mnserr.ErrNoAccounts
	}
	f.signerCalls <- struct{}{}
	<-f.signing
	return provider.NewWeb3Provider(accountsTransport{}).GetSigner(ctx)
}

func (f *fakeSession) Snapshot() session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := session.Status{State: "disconnected", Connected: f.connected, Initialized: true, Target: network.Goerli}
	if f.connected {
		st.State = "connected"
		st.Account = testAccount
		st.ChainID = network.Goerli
	}
	return st
}

func (f *fakeSession) Connecting() bool { return false }

func do(t *testing.T, s *Server, method, path string, asJSON bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) StatusResponse {
	t.Helper()
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestPage_Disconnected(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeSession{}, &notice.Recorder{})

	rec := do(t, s, http.MethodGet, "/", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Mind Name Service")
	assert.Contains(t, body, "Your immortal API on the blockchain!")
	assert.Contains(t, body, `action="/connect"`)
	assert.Contains(t, body, "Connect your wallet")
	assert.Contains(t, body, "https://twitter.com/namn_grg")
}

func TestPage_Connected(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeSession{connected: true}, &notice.Recorder{})

	body := do(t, s, http.MethodGet, "/", false).Body.String()
	assert.Contains(t, body, "Join the Whitelist")
	assert.Contains(t, body, testAccount)
	assert.NotContains(t, body, "Connect your wallet")
}

func TestConnect_JSON(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{}
	s := New(Config{}, sess, &notice.Recorder{})

	rec := do(t, s, http.MethodPost, "/connect", true)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeStatus(t, rec)
	assert.True(t, resp.Session.Connected)
	assert.Equal(t, "Join the Whitelist", string(resp.Page.Button))
	assert.Nil(t, resp.Error)
}

func TestConnect_WrongNetworkCarriesNotice(t *testing.T) {
	t.Parallel()
	recorder := &notice.Recorder{}
	sess := &fakeSession{connectErr: mnserr.ErrWrongNetwork, notifier: notice.Routed{Fallback: recorder}}
	s := New(Config{}, sess, recorder)

	rec := do(t, s, http.MethodPost, "/connect", true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	resp := decodeStatus(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "WRONG_NETWORK", resp.Error.Code)
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, "Change the network to Goerli", resp.Notices[0].Message)
	assert.Equal(t, "Change the network to Goerli", resp.Page.Notice)
	assert.Equal(t, "Connect your wallet", string(resp.Page.Button))
	assert.Equal(t, 0, recorder.Len(), "request notices never reach the shared recorder")
}

func TestNotices_StayWithTheirRequest(t *testing.T) {
	t.Parallel()
	recorder := &notice.Recorder{}
	sess := &fakeSession{notifier: notice.Routed{Fallback: recorder}}
	s := New(Config{}, sess, recorder)

	// A notice raised outside any request, as AutoConnect does.
	require.NoError(t, sess.notifier.Notify(context.Background(), notice.Notice{Message: "Change the network to Goerli"}))

	rec := do(t, s, http.MethodPost, "/connect", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeStatus(t, rec).Notices)

	resp := decodeStatus(t, do(t, s, http.MethodGet, "/api/status", false))
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, "Change the network to Goerli", resp.Notices[0].Message)
}

func TestJoin_PendingShowsLoading(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{
		connected:   true,
		signing:     make(chan struct{}),
		signerCalls: make(chan struct{}, 1),
	}
	s := New(Config{}, sess, &notice.Recorder{})

	joined := make(chan *httptest.ResponseRecorder, 1)
	go func() { joined <- do(t, s, http.MethodPost, "/join", true) }()
	<-sess.signerCalls

	status := decodeStatus(t, do(t, s, http.MethodGet, "/api/status", false))
	assert.Equal(t, "Loading...", string(status.Page.Button))
	assert.Contains(t, do(t, s, http.MethodGet, "/", false).Body.String(), "Loading...")

	second := do(t, s, http.MethodPost, "/join", true)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "JOIN_IN_FLIGHT", decodeStatus(t, second).Error.Code)

	close(sess.signing)
	rec := <-joined
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JoinResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testAccount, resp.Account)
	assert.Equal(t, "Join the Whitelist", string(resp.Page.Button))
	assert.Nil(t, resp.Error)
}

func TestConnect_HTMLShowsBanner(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeSession{connectErr: mnserr.ErrExtensionUnavailable}, &notice.Recorder{})

	rec := do(t, s, http.MethodPost, "/connect", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no wallet provider is available")
	assert.Contains(t, rec.Body.String(), `role="alert"`)
}

func TestDisconnect(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{connected: true}
	s := New(Config{}, sess, &notice.Recorder{})

	rec := do(t, s, http.MethodPost, "/disconnect", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeStatus(t, rec).Session.Connected)

	// Disconnecting twice is not an error for the page.
	rec = do(t, s, http.MethodPost, "/disconnect", true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJoin_RequiresConnection(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeSession{}, &notice.Recorder{})

	rec := do(t, s, http.MethodPost, "/join", true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NOT_CONNECTED", decodeStatus(t, rec).Error.Code)
}

func TestStatusMetricsHealth(t *testing.T) {
	t.Parallel()
	m := &metrics.Metrics{}
	m.RecordConnect(nil)
	s := New(Config{}, &fakeSession{}, &notice.Recorder{}, WithMetrics(m))

	rec := do(t, s, http.MethodGet, "/api/status", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", decodeStatus(t, rec).Session.State)

	rec = do(t, s, http.MethodGet, "/api/metrics", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.ConnectSuccesses)

	rec = do(t, s, http.MethodGet, "/healthz", false)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNotFound_JSONError(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeSession{}, &notice.Recorder{})

	rec := do(t, s, http.MethodGet, "/nope", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
}

func TestAutoConnect(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{}
	s := New(Config{}, sess, &notice.Recorder{})

	s.AutoConnect(context.Background())
	s.AutoConnect(context.Background())
	assert.Equal(t, 1, sess.connects, "a connected session is not reconnected")
}

func TestStatusCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(mnserr.ErrExtensionUnavailable))
	assert.Equal(t, http.StatusForbidden, StatusCode(mnserr.ErrUserRejected))
	assert.Equal(t, http.StatusConflict, StatusCode(mnserr.ErrWrongNetwork))
	assert.Equal(t, http.StatusConflict, StatusCode(mnserr.ErrJoinInFlight))
	assert.Equal(t, http.StatusGatewayTimeout, StatusCode(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(mnserr.ErrGeneral))
}

// TestWrongNetworkEndToEnd drives a real session against a wallet on mainnet.
func TestWrongNetworkEndToEnd(t *testing.T) {
	t.Parallel()
	wallet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_requestAccounts", "eth_accounts":
			resp["result"] = []string{testAccount}
		case "eth_chainId":
			resp["result"] = hexutil.EncodeUint64(1)
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(wallet.Close)

	recorder := &notice.Recorder{}
	sess := session.New(
		session.WithNotifier(notice.Routed{Fallback: recorder}),
		session.WithMetrics(&metrics.Metrics{}),
		session.WithModalFactory(session.DefaultModalFactory(connector.Env{})),
	)
	require.NoError(t, sess.Initialize(session.Config{
		TargetNetwork:         network.Goerli,
		AllowInjectedProvider: true,
		InjectedURL:           wallet.URL,
	}))

	s := New(Config{}, sess, recorder)
	rec := do(t, s, http.MethodPost, "/connect", false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Change the network to Goerli"))
	assert.Contains(t, rec.Body.String(), "Connect your wallet")
	assert.Equal(t, session.Disconnected, sess.State())
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeSession{}, &notice.Recorder{})

	rec := do(t, s, http.MethodGet, "/healthz", false)
	id := rec.Header().Get(echo.HeaderXRequestID)
	_, err := uuid.Parse(id)
	require.NoError(t, err, id)

	next := do(t, s, http.MethodGet, "/healthz", false)
	assert.NotEqual(t, id, next.Header().Get(echo.HeaderXRequestID))
}
