package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/mns/internal/config"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

func TestConfigInit(t *testing.T) {
	home := t.TempDir()

	stdout, err := executeCommand(t, home, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration initialized at "+config.Path(home))

	_, err = os.Stat(config.Path(home))
	require.NoError(t, err)

	_, err = executeCommand(t, home, "config", "init")
	require.ErrorIs(t, err, mnserr.ErrGeneral)

	_, err = executeCommand(t, home, "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigGetSet(t *testing.T) {
	home := t.TempDir()

	stdout, err := executeCommand(t, home, "config", "get", "network.name")
	require.NoError(t, err)
	assert.Equal(t, "goerli\n", stdout)

	stdout, err = executeCommand(t, home, "config", "set", "wallet.cache_provider", "true")
	require.NoError(t, err)
	assert.Equal(t, "Set wallet.cache_provider = true\n", stdout)

	stdout, err = executeCommand(t, home, "config", "set", "wallet.injected_url", " http://127.0.0.1:1249 ")
	require.NoError(t, err)
	assert.Contains(t, stdout, "http://127.0.0.1:1249")

	saved, err := config.Load(config.Path(home))
	require.NoError(t, err)
	assert.True(t, saved.Wallet.CacheProvider)
	assert.Equal(t, "http://127.0.0.1:1249", saved.Wallet.InjectedURL)

	stdout, err = executeCommand(t, home, "config", "get", "wallet.cache_provider")
	require.NoError(t, err)
	assert.Equal(t, "true\n", stdout)
}

func TestConfigSet_NetworkByChainID(t *testing.T) {
	home := t.TempDir()
	_, err := executeCommand(t, home, "config", "set", "network.name", "5")
	require.NoError(t, err)

	stdout, err := executeCommand(t, home, "config", "get", "network.name")
	require.NoError(t, err)
	assert.Equal(t, "goerli\n", stdout)
}

func TestConfigSetGet_Errors(t *testing.T) {
	home := t.TempDir()
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unknown get", []string{"config", "get", "wallet.colour"}, mnserr.ErrUnknownConfigKey},
		{"unknown set", []string{"config", "set", "nope", "1"}, mnserr.ErrUnknownConfigKey},
		{"bad bool", []string{"config", "set", "server.auto_connect", "maybe"}, mnserr.ErrInvalidInput},
		{"bad int", []string{"config", "set", "wallet.rpc_timeout_seconds", "soon"}, mnserr.ErrInvalidInput},
		{"bad enum", []string{"config", "set", "output.color", "purple"}, mnserr.ErrInvalidInput},
		{"bad network", []string{"config", "set", "network.name", "atlantis"}, mnserr.ErrUnknownNetwork},
		{"bad url", []string{"config", "set", "wallet.injected_url", "ftp://x"}, mnserr.ErrConfigInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := executeCommand(t, home, tc.args...)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestConfigShow(t *testing.T) {
	home := t.TempDir()

	stdout, err := executeCommand(t, home, "-o", "text", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "network.name:")
	assert.Contains(t, stdout, "wallet.injected_url:")
	assert.Contains(t, stdout, config.DefaultInjectedURL)

	stdout, err = executeCommand(t, home, "-o", "json", "config", "show")
	require.NoError(t, err)
	m := decodeJSON(t, stdout)
	wallet, ok := m["wallet"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, config.DefaultInjectedURL, wallet["injected_url"])
}
