// Package connector builds the wallet connectors a modal can offer: the
// injected wallet endpoint and in-process wallets backed by a key file or a
// mnemonic.
package connector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mrz1836/mns/internal/provider"
	"github.com/mrz1836/mns/internal/rpc"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// Type names a connector implementation.
type Type string

// Supported connector types.
const (
	TypeInjected Type = "injected"
	TypeKeyfile  Type = "keyfile"
	TypeMnemonic Type = "mnemonic"
)

// InjectedName is the registry name of the built-in injected connector.
const InjectedName = "injected"

// maxTypoDistance bounds "did you mean" suggestions for connector types.
const maxTypoDistance = 3

// Provider is a live raw wallet connection.
type Provider interface {
	provider.Transport
	Close()
}

// Connector opens wallet connections.
type Connector interface {
	Name() string
	Type() Type
	Display() string
	Connect(ctx context.Context) (Provider, error)
}

// Options configures one named connector.
type Options struct {
	Type          Type    `yaml:"type" json:"type"`
	Display       string  `yaml:"display,omitempty" json:"display,omitempty"`
	URL           string  `yaml:"url,omitempty" json:"url,omitempty"`
	KeyFile       string  `yaml:"key_file,omitempty" json:"key_file,omitempty"`
	PasswordEnv   string  `yaml:"password_env,omitempty" json:"password_env,omitempty"`
	MnemonicEnv   string  `yaml:"mnemonic_env,omitempty" json:"mnemonic_env,omitempty"`
	PassphraseEnv string  `yaml:"passphrase_env,omitempty" json:"passphrase_env,omitempty"`
	Index         uint32  `yaml:"index,omitempty" json:"index,omitempty"`
	RateLimit     float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// Env carries the process-level dependencies connectors need.
type Env struct {
	// Prompt reads a secret from the user. Nil disables prompting.
	Prompt func(label string) ([]byte, error)
	// Getenv looks up environment variables. Nil means no environment.
	Getenv func(key string) string
	// RPC configures every JSON-RPC client a connector creates.
	RPC *rpc.ClientOptions
	// NodeURL is the node local wallets forward reads to when the
	// connector has no URL of its own.
	NodeURL string
}

func (e Env) getenv(key string) string {
	if key == "" || e.Getenv == nil {
		return ""
	}
	return e.Getenv(key)
}

// rpcOptions returns the client options for the named connector. Its
// requests draw from the shared limiter under its own name unless it sets
// a rate limit of its own.
func (e Env) rpcOptions(name string, opts Options) *rpc.ClientOptions {
	out := &rpc.ClientOptions{}
	if e.RPC != nil {
		*out = *e.RPC
	}
	out.Connector = name
	if opts.RateLimit > 0 {
		out.Limiter = rpc.NewLimiter(opts.RateLimit)
	}
	return out
}

// Types returns the supported connector types in sorted order.
func Types() []Type {
	return []Type{TypeInjected, TypeKeyfile, TypeMnemonic}
}

// Build creates the connector described by opts.
func Build(name string, opts Options, env Env) (Connector, error) {
	if strings.TrimSpace(name) == "" {
		return nil, mnserr.WithSuggestion(mnserr.ErrInvalidInput, "connector names must not be empty")
	}

	display := opts.Display
	if display == "" {
		display = name
	}

	switch opts.Type {
	case TypeInjected:
		return NewInjected(name, display, opts.URL, env.rpcOptions(name, opts)), nil
	case TypeKeyfile:
		return NewLocal(name, display, TypeKeyfile, nodeURL(opts, env), env.rpcOptions(name, opts),
			KeyfileSource(opts.KeyFile, opts.PasswordEnv, env)), nil
	case TypeMnemonic:
		return NewLocal(name, display, TypeMnemonic, nodeURL(opts, env), env.rpcOptions(name, opts),
			MnemonicSource(opts.MnemonicEnv, opts.PassphraseEnv, opts.Index, env)), nil
	}

	err := mnserr.WithDetails(mnserr.ErrUnknownConnector, map[string]string{
		"connector": name,
		"type":      string(opts.Type),
	})
	if suggestion := SuggestType(string(opts.Type)); suggestion != "" {
		return nil, mnserr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", suggestion))
	}
	return nil, mnserr.WithSuggestion(err, "supported types: "+joinTypes(Types()))
}

// BuildAll builds every configured connector, sorted by name.
func BuildAll(options map[string]Options, env Env) ([]Connector, error) {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)

	connectors := make([]Connector, 0, len(names))
	for _, name := range names {
		c, err := Build(name, options[name], env)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
	}
	return connectors, nil
}

// SuggestType returns the closest supported type to t, or "".
func SuggestType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return ""
	}

	best := ""
	bestDistance := maxTypoDistance + 1
	for _, candidate := range Types() {
		if d := levenshtein.ComputeDistance(t, string(candidate)); d < bestDistance {
			best, bestDistance = string(candidate), d
		}
	}
	return best
}

func nodeURL(opts Options, env Env) string {
	if opts.URL != "" {
		return opts.URL
	}
	return env.NodeURL
}

func joinTypes(types []Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
