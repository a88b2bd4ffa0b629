package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/mrz1836/mns/internal/config"
	"github.com/mrz1836/mns/internal/connector"
	"github.com/mrz1836/mns/internal/keys"
	"github.com/mrz1836/mns/internal/output"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// keyCmd is the parent command for local wallet keys.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage local wallets",
	Long: `Register keyfile and mnemonic wallets that mns can connect through when
no wallet endpoint is running.`,
}

// keyImportCmd encrypts a private key into a keyfile wallet.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyImportCmd = &cobra.Command{
	Use:   "import <name>",
	Short: "Import a private key as an encrypted keyfile wallet",
	Long: `Encrypt a hex private key with a password (age, scrypt) and register it
as a keyfile wallet named <name>.

The key is read from the environment variable named by --key-env, or
prompted for with hidden input.

Example:
  mns key import hot
  MY_KEY=0x... mns key import hot --key-env MY_KEY`,
	Args: cobra.ExactArgs(1),
	RunE: runKeyImport,
}

// keyMnemonicCmd registers a mnemonic wallet.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyMnemonicCmd = &cobra.Command{
	Use:   "mnemonic <name>",
	Short: "Register a mnemonic wallet read from the environment",
	Long: `Register a wallet derived from a BIP39 mnemonic on m/44'/60'/0'/0/<index>.
The mnemonic itself is never written; it is read from --mnemonic-env each
time the wallet connects.

Example:
  MNS_MNEMONIC="abandon ... about" mns key mnemonic dev --mnemonic-env MNS_MNEMONIC`,
	Args: cobra.ExactArgs(1),
	RunE: runKeyMnemonic,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	keyEnv        string
	keyPassEnv    string
	keyForce      bool
	mnemonicEnv   string
	passphraseEnv string
	mnemonicIndex uint32
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyImportCmd)
	keyCmd.AddCommand(keyMnemonicCmd)

	keyImportCmd.Flags().StringVar(&keyEnv, "key-env", "", "environment variable holding the hex private key")
	keyImportCmd.Flags().StringVar(&keyPassEnv, "password-env", "", "environment variable the password is read from on connect")
	keyImportCmd.Flags().BoolVar(&keyForce, "force", false, "overwrite an existing keyfile")

	keyMnemonicCmd.Flags().StringVar(&mnemonicEnv, "mnemonic-env", "", "environment variable holding the mnemonic")
	keyMnemonicCmd.Flags().StringVar(&passphraseEnv, "passphrase-env", "", "environment variable holding the BIP39 passphrase")
	keyMnemonicCmd.Flags().Uint32Var(&mnemonicIndex, "index", 0, "address index")
	_ = keyMnemonicCmd.MarkFlagRequired("mnemonic-env")
}

// keyView is the output of the key commands.
type keyView struct {
	Name    string         `json:"name"`
	Type    connector.Type `json:"type"`
	Address string         `json:"address"`
	KeyFile string         `json:"key_file,omitempty"`
	Path    string         `json:"path,omitempty"`
}

func runKeyImport(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if err := validateWalletName(name); err != nil {
		return err
	}

	home, err := cfg.ResolvedHome()
	if err != nil {
		return err
	}
	keyPath := filepath.Join(home, "keys", name+".age")
	if _, err := os.Stat(keyPath); err == nil && !keyForce {
		return mnserr.WithSuggestion(
			mnserr.ErrInvalidInput,
			fmt.Sprintf("keyfile already exists at %s. Use --force to overwrite.", keyPath),
		)
	}

	keyHex, err := readPrivateKeyInput()
	if err != nil {
		return err
	}
	key, err := keys.ParsePrivateKey(string(keyHex))
	keys.ZeroBytes(keyHex)
	if err != nil {
		return err
	}
	defer key.D.SetInt64(0)

	password, err := promptNewPasswordFn()
	if err != nil {
		return err
	}
	secret := keys.NewSecret(password)
	keys.ZeroBytes(password)
	defer secret.Destroy()

	if err := keys.WriteKeyFile(keyPath, key, string(secret.Bytes())); err != nil {
		return err
	}
	logger.Debug("imported keyfile wallet %s to %s", name, keyPath)

	view := keyView{
		Name:    name,
		Type:    connector.TypeKeyfile,
		Address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		KeyFile: keyPath,
	}
	opts := connector.Options{
		Type:        connector.TypeKeyfile,
		Display:     name,
		KeyFile:     keyPath,
		PasswordEnv: keyPassEnv,
	}
	if view.Path, err = registerConnector(name, opts); err != nil {
		return err
	}
	return displayKey(cmd, view)
}

func runKeyMnemonic(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if err := validateWalletName(name); err != nil {
		return err
	}

	getenv := cmdCtx.Getenv
	mnemonic := getenv(mnemonicEnv)
	if mnemonic == "" {
		return mnserr.WithDetails(mnserr.ErrInvalidInput, map[string]string{
			"reason": "environment variable is empty",
			"env":    mnemonicEnv,
		})
	}
	key, err := keys.DeriveKey(mnemonic, getenv(passphraseEnv), mnemonicIndex)
	if err != nil {
		return err
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	key.D.SetInt64(0)

	opts := connector.Options{
		Type:          connector.TypeMnemonic,
		Display:       name,
		MnemonicEnv:   mnemonicEnv,
		PassphraseEnv: passphraseEnv,
		Index:         mnemonicIndex,
	}
	path, err := registerConnector(name, opts)
	if err != nil {
		return err
	}
	return displayKey(cmd, keyView{Name: name, Type: connector.TypeMnemonic, Address: address, Path: path})
}

// readPrivateKeyInput returns the hex key from --key-env or a hidden prompt.
func readPrivateKeyInput() ([]byte, error) {
	if keyEnv != "" {
		v := cmdCtx.Getenv(keyEnv)
		if v == "" {
			return nil, mnserr.WithDetails(mnserr.ErrInvalidInput, map[string]string{
				"reason": "environment variable is empty",
				"env":    keyEnv,
			})
		}
		return []byte(v), nil
	}
	return promptPasswordFn("Enter private key (hex): ")
}

// registerConnector adds a connector to the config file and returns its path.
func registerConnector(name string, opts connector.Options) (string, error) {
	home, err := cfg.ResolvedHome()
	if err != nil {
		return "", err
	}
	configPath := config.Path(home)

	fileCfg, err := config.Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		fileCfg = config.Defaults()
		fileCfg.Home = cfg.Home
	} else if err != nil {
		return "", err
	}

	if fileCfg.Wallet.Connectors == nil {
		fileCfg.Wallet.Connectors = make(map[string]connector.Options)
	}
	fileCfg.Wallet.Connectors[name] = opts
	if err := config.Save(fileCfg, configPath); err != nil {
		return "", fmt.Errorf("saving config: %w", err)
	}
	return configPath, nil
}

func validateWalletName(name string) error {
	if name == "" || name == connector.InjectedName || strings.ContainsAny(name, `/\. `) {
		return mnserr.WithDetails(mnserr.ErrInvalidInput, map[string]string{
			"name":   name,
			"reason": "wallet names must be non-empty, not \"injected\", and contain no '/', '\\', '.' or spaces",
		})
	}
	return nil
}

func displayKey(cmd *cobra.Command, v keyView) error {
	w := cmd.OutOrStdout()
	if !formatter.IsJSON() {
		output.Successf(w, "registered %s wallet %q", v.Type, v.Name)
	}
	return formatter.RenderFields(w, v, func(f *output.Fields) {
		f.Add("Address", v.Address)
		if v.KeyFile != "" {
			f.Add("Key file", v.KeyFile)
		}
		f.Add("Config", v.Path)
	})
}
