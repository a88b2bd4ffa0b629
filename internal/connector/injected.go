package connector

import (
	"context"
	"errors"

	"github.com/mrz1836/mns/internal/rpc"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// Injected connects to a wallet that exposes an EIP-1193 JSON-RPC endpoint,
// the process-level equivalent of a browser-injected provider.
type Injected struct {
	name    string
	display string
	url     string
	opts    *rpc.ClientOptions
}

// NewInjected creates an injected connector for the wallet at url.
func NewInjected(name, display, url string, opts *rpc.ClientOptions) *Injected {
	return &Injected{name: name, display: display, url: url, opts: opts}
}

// Name implements Connector.
func (c *Injected) Name() string { return c.name }

// Type implements Connector.
func (c *Injected) Type() Type { return TypeInjected }

// Display implements Connector.
func (c *Injected) Display() string { return c.display }

// URL returns the wallet endpoint.
func (c *Injected) URL() string { return c.url }

// Connect asks the wallet to expose its accounts. An unset or unreachable
// endpoint is ErrExtensionUnavailable; a declined prompt or an empty account
// list is ErrUserRejected.
func (c *Injected) Connect(ctx context.Context) (Provider, error) {
	if c.url == "" {
		return nil, mnserr.WithDetails(mnserr.ErrExtensionUnavailable, map[string]string{
			"reason": "no injected wallet endpoint configured",
		})
	}

	client := rpc.NewClientWithOptions(c.url, c.opts)
	accounts, err := client.RequestAccounts(ctx)
	if err != nil {
		client.Close()
		return nil, ClassifyError(err)
	}
	if len(accounts) == 0 {
		client.Close()
		return nil, mnserr.WithDetails(mnserr.ErrUserRejected, map[string]string{
			"reason": "wallet exposed no accounts",
		})
	}

	return client, nil
}

// ClassifyError maps a raw wallet error onto the connection taxonomy.
// Context cancellation is returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, rpc.ErrUnreachable) {
		return mnserr.WithCause(mnserr.ErrExtensionUnavailable, err)
	}

	if code, ok := rpc.ErrorCode(err); ok {
		switch code {
		case rpc.CodeUserRejected, rpc.CodeUnauthorized:
			return mnserr.WithCause(mnserr.ErrUserRejected, err)
		case rpc.CodeDisconnected, rpc.CodeChainDisconnected:
			return mnserr.WithCause(mnserr.ErrExtensionUnavailable, err)
		}
	}
	return mnserr.Wrap(err, "requesting wallet accounts")
}
