package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mrz1836/go-sanitize"

	"github.com/mrz1836/mns/internal/fileutil"
)

// Environment variable names.
const (
	EnvHome           = "MNS_HOME"
	EnvNetwork        = "MNS_NETWORK"
	EnvInjectedURL    = "MNS_INJECTED_URL"
	EnvNodeRPC        = "MNS_NODE_RPC"
	EnvListen         = "MNS_LISTEN"
	EnvConnectTimeout = "MNS_CONNECT_TIMEOUT"
	EnvCacheProvider  = "MNS_CACHE_PROVIDER"
	EnvOutputFormat   = "MNS_OUTPUT_FORMAT"
	EnvVerbose        = "MNS_VERBOSE"
	EnvLogLevel       = "MNS_LOG_LEVEL"
	EnvNoColor        = "NO_COLOR"
)

// DotEnvFile is the optional file of environment defaults in the home directory.
const DotEnvFile = ".env"

// LoadDotEnv exports the variables of <home>/.env that are not already set,
// so secrets such as keyfile passwords can live next to the config. A
// missing file is not an error.
func LoadDotEnv(home string) error {
	home, err := fileutil.ExpandHome(home)
	if err != nil {
		return err
	}
	path := filepath.Join(home, DotEnvFile)

	vars, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	for k, v := range vars {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("exporting %s: %w", k, err)
		}
	}
	return nil
}

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvNetwork); v != "" {
		cfg.Network.Name = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvInjectedURL); v != "" {
		cfg.Wallet.InjectedURL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvNodeRPC); v != "" {
		cfg.Network.NodeRPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvListen); v != "" {
		cfg.Server.Listen = strings.TrimSpace(v)
	}

	// MNS_CONNECT_TIMEOUT is in seconds
	if v := os.Getenv(EnvConnectTimeout); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
			cfg.Wallet.ConnectTimeoutSeconds = secs
		}
	}

	if v := os.Getenv(EnvCacheProvider); v != "" {
		cfg.Wallet.CacheProvider = parseBool(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// Wallet and node endpoints pasted into the environment often carry
// copy-paste artifacts.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}
