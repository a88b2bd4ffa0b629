package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/mns/internal/config"
	"github.com/mrz1836/mns/internal/network"
	"github.com/mrz1836/mns/internal/output"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify mns configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.mns/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.

Example:
  mns config init
  mns config init --force`,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration, after environment overrides.

Example:
  mns config show
  mns config show -o json`,
	RunE: runConfigShow,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its dotted path.

Examples:
  mns config get network.name
  mns config get wallet.injected_url`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value by its dotted path and save the file.

Examples:
  mns config set wallet.injected_url http://127.0.0.1:1248
  mns config set wallet.cache_provider true
  mns config set logging.level debug`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

// configKey reads and writes one scalar setting.
type configKey struct {
	get func(c *config.Config) string
	set func(c *config.Config, v string) error
}

// configKeys lists the settable paths.
//
//nolint:gochecknoglobals // static lookup table
var configKeys = map[string]configKey{
	"home": {
		get: func(c *config.Config) string { return c.Home },
		set: func(c *config.Config, v string) error { c.Home = v; return nil },
	},
	"network.name": {
		get: func(c *config.Config) string { return c.Network.Name },
		set: func(c *config.Config, v string) error {
			id, err := network.Parse(v)
			if err != nil {
				return err
			}
			c.Network.Name = strconv.FormatUint(uint64(id), 10)
			if id.IsKnown() {
				c.Network.Name = id.Name()
			}
			return nil
		},
	},
	"network.node_rpc": {
		get: func(c *config.Config) string { return c.Network.NodeRPC },
		set: func(c *config.Config, v string) error { c.Network.NodeRPC = config.SanitizeURL(v); return nil },
	},
	"wallet.injected_url": {
		get: func(c *config.Config) string { return c.Wallet.InjectedURL },
		set: func(c *config.Config, v string) error { c.Wallet.InjectedURL = config.SanitizeURL(v); return nil },
	},
	"wallet.allow_injected_provider": boolKey(func(c *config.Config) *bool { return &c.Wallet.AllowInjectedProvider }),
	"wallet.cache_provider":          boolKey(func(c *config.Config) *bool { return &c.Wallet.CacheProvider }),
	"wallet.connect_timeout_seconds": intKey(func(c *config.Config) *int { return &c.Wallet.ConnectTimeoutSeconds }),
	"wallet.rpc_timeout_seconds":     intKey(func(c *config.Config) *int { return &c.Wallet.RPCTimeoutSeconds }),
	"server.listen": {
		get: func(c *config.Config) string { return c.Server.Listen },
		set: func(c *config.Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.auto_connect": boolKey(func(c *config.Config) *bool { return &c.Server.AutoConnect }),
	"output.default_format": {
		get: func(c *config.Config) string { return c.Output.DefaultFormat },
		set: func(c *config.Config, v string) error {
			return setOneOf(&c.Output.DefaultFormat, v, "text", "json", "auto")
		},
	},
	"output.color": {
		get: func(c *config.Config) string { return c.Output.Color },
		set: func(c *config.Config, v string) error {
			return setOneOf(&c.Output.Color, v, "auto", "always", "never")
		},
	},
	"output.verbose": boolKey(func(c *config.Config) *bool { return &c.Output.Verbose }),
	"logging.level": {
		get: func(c *config.Config) string { return c.Logging.Level },
		set: func(c *config.Config, v string) error {
			return setOneOf(&c.Logging.Level, v, "off", "error", "debug")
		},
	},
	"logging.file": {
		get: func(c *config.Config) string { return c.Logging.File },
		set: func(c *config.Config, v string) error { c.Logging.File = v; return nil },
	},
}

func boolKey(field func(*config.Config) *bool) configKey {
	return configKey{
		get: func(c *config.Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return mnserr.WithDetails(mnserr.ErrInvalidInput, map[string]string{"value": v, "valid": "true or false"})
			}
			*field(c) = b
			return nil
		},
	}
}

func intKey(field func(*config.Config) *int) configKey {
	return configKey{
		get: func(c *config.Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return mnserr.WithDetails(mnserr.ErrInvalidInput, map[string]string{"value": v, "valid": "a non-negative integer"})
			}
			*field(c) = n
			return nil
		},
	}
}

func setOneOf(dst *string, v string, valid ...string) error {
	for _, ok := range valid {
		if v == ok {
			*dst = v
			return nil
		}
	}
	return mnserr.WithDetails(mnserr.ErrInvalidInput, map[string]string{
		"value": v,
		"valid": strings.Join(valid, ", "),
	})
}

func lookupConfigKey(path string) (configKey, error) {
	key, ok := configKeys[path]
	if !ok {
		return configKey{}, mnserr.WithSuggestion(
			mnserr.WithDetails(mnserr.ErrUnknownConfigKey, map[string]string{"path": path}),
			"known keys: "+strings.Join(configKeyNames(), ", "),
		)
	}
	return key, nil
}

func configKeyNames() []string {
	names := make([]string, 0, len(configKeys))
	for name := range configKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	home, err := cfg.ResolvedHome()
	if err != nil {
		return err
	}
	configPath := config.Path(home)

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return mnserr.WithSuggestion(
			mnserr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home
	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - network.node_rpc: Goerli node used by keyfile and mnemonic wallets")
	outln(w, "  - wallet.injected_url: JSON-RPC endpoint of your wallet")
	outln(w, "  - wallet.connectors: additional keyfile or mnemonic wallets")
	outln(w, "  - logging.level: Log level (off/error/debug)")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	return formatter.RenderFields(cmd.OutOrStdout(), cfg, func(f *output.Fields) {
		for _, name := range configKeyNames() {
			f.Add(name, configKeys[name].get(cfg))
		}
		connectors := make([]string, 0, len(cfg.Wallet.Connectors))
		for name, opts := range cfg.Wallet.Connectors {
			connectors = append(connectors, fmt.Sprintf("%s (%s)", name, opts.Type))
		}
		sort.Strings(connectors)
		f.Add("wallet.connectors", strings.Join(connectors, ", "))
	})
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key, err := lookupConfigKey(args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), key.get(cfg))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, value := args[0], args[1]
	key, err := lookupConfigKey(path)
	if err != nil {
		return err
	}

	home, err := cfg.ResolvedHome()
	if err != nil {
		return err
	}
	configPath := config.Path(home)

	// Edit the file as written, without environment overrides
	fileCfg, err := config.Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		fileCfg = config.Defaults()
		fileCfg.Home = cfg.Home
	} else if err != nil {
		return err
	}

	if err := key.set(fileCfg, value); err != nil {
		return err
	}
	if err := fileCfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(fileCfg, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out(cmd.OutOrStdout(), "Set %s = %s\n", path, key.get(fileCfg))
	return nil
}
