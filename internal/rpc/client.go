// Package rpc provides a minimal JSON-RPC 2.0 client for Ethereum nodes and
// wallet endpoints that speak the EIP-1193 method set.
package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mrz1836/mns/internal/metrics"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

const (
	maxResponseBodySize   = 1 << 20
	defaultRequestTimeout = 30 * time.Second
	jsonRPCVersion        = "2.0"
	contentTypeJSON       = "application/json"
	hexPrefix             = "0x"
	defaultNonceBlockTag  = "pending"
)

var (
	// ErrUnreachable indicates the endpoint could not be reached at all.
	ErrUnreachable = &mnserr.MNSError{
		Code:     "RPC_UNREACHABLE",
		Message:  "RPC endpoint unreachable",
		ExitCode: mnserr.ExitUnavailable,
	}

	// ErrRPCResponse indicates an invalid RPC response.
	ErrRPCResponse = &mnserr.MNSError{
		Code:     "RPC_INVALID_RESPONSE",
		Message:  "invalid RPC response",
		ExitCode: mnserr.ExitGeneral,
	}

	// ErrInvalidHexNumber indicates an invalid hex number.
	ErrInvalidHexNumber = &mnserr.MNSError{
		Code:     "RPC_INVALID_HEX",
		Message:  "invalid hex number",
		ExitCode: mnserr.ExitInput,
	}
)

// ClientOptions contains optional configuration for the RPC client.
type ClientOptions struct {
	// Transport overrides the default HTTP transport.
	Transport http.RoundTripper
	// Timeout bounds each HTTP request. Zero means 30 seconds.
	Timeout time.Duration
	// Limiter throttles outgoing requests when set.
	Limiter *Limiter
	// Connector names the wallet the client serves. It keys the limiter
	// and defaults to the endpoint URL.
	Connector string
	// Metrics receives per-call latency. Defaults to metrics.Global.
	Metrics *metrics.Metrics
}

// Client is a minimal Ethereum JSON-RPC client.
type Client struct {
	url        string
	connector  string
	httpClient *http.Client
	limiter    *Limiter
	metrics    *metrics.Metrics
	idCounter  atomic.Uint64
}

// NewClient creates a new RPC client.
func NewClient(url string) *Client {
	return NewClientWithOptions(url, nil)
}

// NewClientWithOptions creates a new RPC client with optional overrides.
func NewClientWithOptions(url string, opts *ClientOptions) *Client {
	c := &Client{
		url:        url,
		connector:  url,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		metrics:    metrics.Global,
	}

	if opts != nil {
		if opts.Transport != nil {
			c.httpClient.Transport = opts.Transport
		}
		if opts.Timeout > 0 {
			c.httpClient.Timeout = opts.Timeout
		}
		if opts.Limiter != nil {
			c.limiter = opts.Limiter
		}
		if opts.Metrics != nil {
			c.metrics = opts.Metrics
		}
		if opts.Connector != "" {
			c.connector = opts.Connector
		}
	}

	return c
}

// URL returns the endpoint this client talks to.
func (c *Client) URL() string {
	return c.url
}

// request represents a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// response represents a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object returned by the endpoint.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// ErrorCode extracts the JSON-RPC error code from err, if any.
func ErrorCode(err error) (int, bool) {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Code, true
	}
	return 0, false
}

// Call performs a JSON-RPC call.
func (c *Client) Call(ctx context.Context, method string, params ...any) (result json.RawMessage, err error) {
	if params == nil {
		params = []any{}
	}

	start := time.Now()
	defer func() { c.metrics.RecordRPCCall(time.Since(start), err) }()

	if c.limiter != nil {
		if waitErr := c.limiter.Wait(ctx, c.connector); waitErr != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", waitErr)
		}
	}

	req := request{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
		ID:      c.idCounter.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, mnserr.WithCause(ErrUnreachable, fmt.Errorf("creating HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, mnserr.WithCause(ErrUnreachable, err)
	}
	// Body.Close error is intentionally ignored as it only fails if the
	// connection is already broken, and there's no recovery action.
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, mnserr.WithDetails(
			mnserr.WithCause(ErrRPCResponse, err),
			map[string]string{"status": httpResp.Status},
		)
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// Request satisfies the EIP-1193 style transport used by the provider package.
func (c *Client) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return c.Call(ctx, method, params...)
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, "chain ID", "eth_chainId")
}

// GetTransactionCount returns the nonce for an address.
func (c *Client) GetTransactionCount(ctx context.Context, address, block string) (uint64, error) {
	if block == "" {
		block = defaultNonceBlockTag
	}

	n, err := c.callBigInt(ctx, "nonce", "eth_getTransactionCount", address, block)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// GasPrice returns the node's suggested legacy gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, "gas price", "eth_gasPrice")
}

// RequestAccounts asks the wallet to expose its accounts, prompting the user
// when the wallet has not yet authorized this caller.
func (c *Client) RequestAccounts(ctx context.Context) ([]string, error) {
	return c.callStrings(ctx, "requested accounts", "eth_requestAccounts")
}

// SendRawTransaction sends a signed transaction.
// Returns the transaction hash.
func (c *Client) SendRawTransaction(ctx context.Context, signedTx []byte) (string, error) {
	result, err := c.Call(ctx, "eth_sendRawTransaction", hexPrefix+hex.EncodeToString(signedTx))
	if err != nil {
		return "", err
	}

	var txHash string
	if err := json.Unmarshal(result, &txHash); err != nil {
		return "", fmt.Errorf("parsing tx hash: %w", err)
	}

	return txHash, nil
}

// TxArgs are the eth_signTransaction / eth_sendTransaction parameters.
type TxArgs struct {
	From                 string
	To                   string
	Gas                  uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Value                *big.Int
	Nonce                *uint64
	Data                 []byte
	ChainID              *big.Int
}

// MarshalJSON encodes quantities as 0x-prefixed hex, as nodes expect.
func (a TxArgs) MarshalJSON() ([]byte, error) {
	type txArgsJSON struct {
		From                 string `json:"from"`
		To                   string `json:"to,omitempty"`
		Gas                  string `json:"gas,omitempty"`
		GasPrice             string `json:"gasPrice,omitempty"`
		MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
		MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
		Value                string `json:"value,omitempty"`
		Nonce                string `json:"nonce,omitempty"`
		Data                 string `json:"data,omitempty"`
		ChainID              string `json:"chainId,omitempty"`
	}

	msg := txArgsJSON{
		From: a.From,
		To:   a.To,
	}

	if a.Gas > 0 {
		msg.Gas = fmt.Sprintf("0x%x", a.Gas)
	}
	if a.GasPrice != nil {
		msg.GasPrice = hexPrefix + a.GasPrice.Text(16)
	}
	if a.MaxFeePerGas != nil {
		msg.MaxFeePerGas = hexPrefix + a.MaxFeePerGas.Text(16)
	}
	if a.MaxPriorityFeePerGas != nil {
		msg.MaxPriorityFeePerGas = hexPrefix + a.MaxPriorityFeePerGas.Text(16)
	}
	if a.Value != nil {
		msg.Value = hexPrefix + a.Value.Text(16)
	}
	if a.Nonce != nil {
		msg.Nonce = fmt.Sprintf("0x%x", *a.Nonce)
	}
	if len(a.Data) > 0 {
		msg.Data = hexPrefix + hex.EncodeToString(a.Data)
	}
	if a.ChainID != nil {
		msg.ChainID = hexPrefix + a.ChainID.Text(16)
	}

	return json.Marshal(msg)
}

// Close closes the client and releases its rate limit bucket.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
	if c.limiter != nil {
		c.limiter.Release(c.connector)
	}
}

func (c *Client) callBigInt(ctx context.Context, what, method string, params ...any) (*big.Int, error) {
	result, err := c.Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}

	var hexVal string
	if err := json.Unmarshal(result, &hexVal); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", what, err)
	}

	return ParseHexBigInt(hexVal)
}

func (c *Client) callStrings(ctx context.Context, what, method string, params ...any) ([]string, error) {
	result, err := c.Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}

	var values []string
	if err := json.Unmarshal(result, &values); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", what, err)
	}
	return values, nil
}

// ParseHexBigInt parses a hex string (with or without 0x prefix) to big.Int.
func ParseHexBigInt(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, hexPrefix)
	if s == "" {
		return big.NewInt(0), nil
	}

	n := new(big.Int)
	if _, ok := n.SetString(s, 16); !ok {
		return nil, ErrInvalidHexNumber
	}

	return n, nil
}
