// Package config provides configuration management for mns.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/mns/internal/connector"
	"github.com/mrz1836/mns/internal/fileutil"
	"github.com/mrz1836/mns/internal/network"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// configFilePermissions is the mode of the written config file.
const configFilePermissions = 0o600

// Config represents the application configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Home    string        `yaml:"home" json:"home"`
	Network NetworkConfig `yaml:"network" json:"network"`
	Wallet  WalletConfig  `yaml:"wallet" json:"wallet"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// NetworkConfig selects the network the wallet must be on.
type NetworkConfig struct {
	Name    string `yaml:"name" json:"name"`
	NodeRPC string `yaml:"node_rpc" json:"node_rpc"`
}

// WalletConfig defines how wallets are reached.
type WalletConfig struct {
	InjectedURL           string                       `yaml:"injected_url" json:"injected_url"`
	AllowInjectedProvider bool                         `yaml:"allow_injected_provider" json:"allow_injected_provider"`
	CacheProvider         bool                         `yaml:"cache_provider" json:"cache_provider"`
	ConnectTimeoutSeconds int                          `yaml:"connect_timeout_seconds" json:"connect_timeout_seconds"`
	RPCTimeoutSeconds     int                          `yaml:"rpc_timeout_seconds" json:"rpc_timeout_seconds"`
	RateLimit             float64                      `yaml:"rate_limit" json:"rate_limit"`
	Connectors            map[string]connector.Options `yaml:"connectors,omitempty" json:"connectors,omitempty"`
}

// ServerConfig defines the HTTP surface.
type ServerConfig struct {
	Listen      string  `yaml:"listen" json:"listen"`
	AutoConnect bool    `yaml:"auto_connect" json:"auto_connect"`
	RateLimit   float64 `yaml:"rate_limit" json:"rate_limit"`
	RateBurst   int     `yaml:"rate_burst" json:"rate_burst"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"`
	Color         string `yaml:"color" json:"color"`
	Verbose       bool   `yaml:"verbose" json:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Load reads configuration from the specified file. Values missing from
// the file keep their defaults. A missing file returns an error matching
// os.ErrNotExist.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, mnserr.WithDetails(mnserr.WithCause(mnserr.ErrConfigInvalid, err), map[string]string{"path": path})
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return fileutil.WriteAtomic(path, data, configFilePermissions)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// DefaultHome returns the default mns home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mns"
	}
	return filepath.Join(home, ".mns")
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	invalid := func(field, reason string) error {
		return mnserr.WithDetails(mnserr.ErrConfigInvalid, map[string]string{"field": field, "reason": reason})
	}

	if _, err := c.TargetNetwork(); err != nil {
		return err
	}
	if c.Wallet.InjectedURL != "" && !isHTTPURL(c.Wallet.InjectedURL) {
		return invalid("wallet.injected_url", "must be an http(s) URL")
	}
	if c.Network.NodeRPC != "" && !isHTTPURL(c.Network.NodeRPC) {
		return invalid("network.node_rpc", "must be an http(s) URL")
	}
	if c.Wallet.ConnectTimeoutSeconds < 0 || c.Wallet.RPCTimeoutSeconds < 0 {
		return invalid("wallet", "timeouts must not be negative")
	}
	if c.Wallet.RateLimit < 0 || c.Server.RateLimit < 0 {
		return invalid("rate_limit", "must not be negative")
	}

	names := make([]string, 0, len(c.Wallet.Connectors))
	for name := range c.Wallet.Connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := validateConnector(name, c.Wallet.Connectors[name]); err != nil {
			return err
		}
	}
	return nil
}

func validateConnector(name string, opts connector.Options) error {
	for _, t := range connector.Types() {
		if opts.Type == t {
			return nil
		}
	}

	err := mnserr.WithDetails(mnserr.ErrUnknownConnector, map[string]string{
		"connector": name,
		"type":      string(opts.Type),
	})
	if suggestion := connector.SuggestType(string(opts.Type)); suggestion != "" {
		return mnserr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", suggestion))
	}
	return err
}

// TargetNetwork returns the chain the wallet must be connected to.
func (c *Config) TargetNetwork() (network.ID, error) {
	return network.Parse(c.Network.Name)
}

// ResolvedHome returns Home with "~" expanded.
func (c *Config) ResolvedHome() (string, error) {
	return fileutil.ExpandHome(c.Home)
}

// ModalCachePath returns the file the cached connector choice is kept in.
func (c *Config) ModalCachePath() (string, error) {
	home, err := c.ResolvedHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "modal.yaml"), nil
}

// ConnectTimeout returns the wallet prompt timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Wallet.ConnectTimeoutSeconds) * time.Second
}

// RPCTimeout returns the per-request JSON-RPC timeout.
func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.Wallet.RPCTimeoutSeconds) * time.Second
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
