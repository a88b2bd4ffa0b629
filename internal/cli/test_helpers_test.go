package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrz1836/mns/internal/notice"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	// first account of testMnemonic on m/44'/60'/0'/0/0
	testMnemonicAddress = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	testPrivateKey      = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testKeyAddress      = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// testNotices collects the notices shown by commands under test.
//
//nolint:gochecknoglobals // shared by the non-parallel command tests
var testNotices = &notice.Recorder{}

//nolint:gochecknoinits // route notices away from the terminal for every test
func init() {
	newNotifierFn = func() notice.Notifier { return testNotices }
}

// executeCommand runs the root command with args and a fresh home directory
// unless one is given. Package globals are reset first.
func executeCommand(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	testNotices.Drain()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), err
}

func resetFlags() {
	homeDir, outputFormat, verbose = "", "auto", false
	signMessage = ""
	configForce = false
	keyEnv, keyPassEnv, keyForce = "", "", false
	mnemonicEnv, passphraseEnv, mnemonicIndex = "", "", 0
	versionCheck = false
	serveListen, serveAutoConnect = "", true
	cfg, logger, formatter, cmdCtx = nil, nil, nil, nil
}

// withMockPrompts replaces prompt functions for testing and restores on cleanup.
func withMockPrompts(t *testing.T, privateKey string, password []byte) {
	t.Helper()
	origPW := promptPasswordFn
	origNewPW := promptNewPasswordFn
	t.Cleanup(func() {
		promptPasswordFn = origPW
		promptNewPasswordFn = origNewPW
	})
	promptPasswordFn = func(label string) ([]byte, error) {
		if label == "Enter private key (hex): " {
			return []byte(privateKey), nil
		}
		cp := make([]byte, len(password))
		copy(cp, password)
		return cp, nil
	}
	promptNewPasswordFn = func() ([]byte, error) {
		cp := make([]byte, len(password))
		copy(cp, password)
		return cp, nil
	}
}

// rpcNode is a JSON-RPC endpoint answering from a method table.
type rpcNode struct {
	mu      sync.Mutex
	results map[string]any
	calls   map[string]int
}

func newRPCNode(t *testing.T, results map[string]any) (*rpcNode, *httptest.Server) {
	t.Helper()
	n := &rpcNode{results: results, calls: make(map[string]int)}
	srv := httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *rpcNode) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	result, ok := n.results[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if ok {
		resp["result"] = result
	} else {
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *rpcNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m), s)
	return m
}
