package config

// Default endpoints.
const (
	// DefaultInjectedURL is where Frame and similar desktop wallets listen.
	DefaultInjectedURL = "http://127.0.0.1:1248"

	// DefaultNodeRPC is a public Goerli endpoint that needs no API key.
	DefaultNodeRPC = "https://ethereum-goerli-rpc.publicnode.com"

	// DefaultListen is the address the page is served on.
	DefaultListen = "127.0.0.1:8080"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.mns",
		Network: NetworkConfig{
			Name:    "goerli",
			NodeRPC: DefaultNodeRPC,
		},
		Wallet: WalletConfig{
			InjectedURL:           DefaultInjectedURL,
			AllowInjectedProvider: true,
			CacheProvider:         false,
			ConnectTimeoutSeconds: 120,
			RPCTimeoutSeconds:     30,
			RateLimit:             5,
		},
		Server: ServerConfig{
			Listen:      DefaultListen,
			AutoConnect: true,
			RateLimit:   10,
			RateBurst:   20,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.mns/mns.log",
		},
	}
}
