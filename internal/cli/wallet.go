package cli

import (
	"io"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cobra"

	"github.com/mrz1836/mns/internal/connector"
	"github.com/mrz1836/mns/internal/output"
	"github.com/mrz1836/mns/internal/session"
	"github.com/mrz1836/mns/internal/ui"
)

// connectCmd connects a wallet.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect a wallet and check its network",
	Long: `Prompt the wallet for access and verify that it is on the target network.

When several wallets are configured you are asked to pick one, unless a
previous choice was cached (wallet.cache_provider). A wallet on the wrong
network shows a notice and exits with code 5.

Example:
  mns connect
  mns connect -o json`,
	RunE: runConnect,
}

// statusCmd shows the wallet gate state without prompting.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the wallet gate state",
	Long: `Show the target network, the configured wallets, the cached wallet
choice and the button the page would show. No wallet is contacted.`,
	RunE: runStatus,
}

// providerCmd connects and reports what the read-only provider sees.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Connect and show the provider's network, block and balance",
	RunE:  runProvider,
}

// signerCmd connects and obtains a signer.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var signerCmd = &cobra.Command{
	Use:   "signer",
	Short: "Connect and show the signing account",
	Long: `Connect, verify the network and obtain a signer for the wallet's first
account. With --sign-message the wallet is asked to sign the message.

Example:
  mns signer
  mns signer --sign-message "join mind name service"`,
	RunE: runSigner,
}

// disconnectCmd forgets the cached wallet choice.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the cached wallet choice",
	Long: `Disconnect clears the remembered wallet so the next connect prompts
for a wallet again.`,
	RunE: runDisconnect,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var signMessage string

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(providerCmd)
	rootCmd.AddCommand(signerCmd)
	rootCmd.AddCommand(disconnectCmd)

	signerCmd.Flags().StringVar(&signMessage, "sign-message", "", "ask the wallet to sign this message")
}

// statusView is the connect/status output.
type statusView struct {
	Session     session.Status `json:"session"`
	Button      ui.Label       `json:"button"`
	InjectedURL string         `json:"injected_url,omitempty"`
	Connectors  []string       `json:"connectors,omitempty"`
	Cached      string         `json:"cached_connector,omitempty"`
}

func runConnect(cmd *cobra.Command, _ []string) error {
	sess, err := cmdCtx.NewSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	ctx, cancel := contextWithTimeout(cmd, cfg.ConnectTimeout())
	defer cancel()

	if err := sess.Connect(ctx); err != nil {
		return err
	}

	snap := sess.Snapshot()
	return displayStatus(cmd.OutOrStdout(), statusView{
		Session: snap,
		Button:  ui.Button(snap.Connected, false),
	})
}

func runStatus(cmd *cobra.Command, _ []string) error {
	sess, err := cmdCtx.NewSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	cache, err := cmdCtx.ModalCache()
	if err != nil {
		return err
	}
	cached, _ := cache.Load()

	names := make([]string, 0, len(cfg.Wallet.Connectors)+1)
	if cfg.Wallet.AllowInjectedProvider {
		names = append(names, connector.InjectedName)
	}
	for name := range cfg.Wallet.Connectors {
		names = append(names, name)
	}

	snap := sess.Snapshot()
	return displayStatus(cmd.OutOrStdout(), statusView{
		Session:     snap,
		Button:      ui.Button(snap.Connected, false),
		InjectedURL: cfg.Wallet.InjectedURL,
		Connectors:  sortedUnique(names),
		Cached:      cached,
	})
}

func runProvider(cmd *cobra.Command, _ []string) error {
	sess, err := cmdCtx.NewSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	ctx, cancel := contextWithTimeout(cmd, cfg.ConnectTimeout())
	defer cancel()

	p, err := sess.Provider(ctx)
	if err != nil {
		return err
	}
	netw, err := p.GetNetwork(ctx)
	if err != nil {
		return err
	}
	block, err := p.BlockNumber(ctx)
	if err != nil {
		return err
	}

	type providerView struct {
		Network string `json:"network"`
		ChainID uint64 `json:"chain_id"`
		Block   uint64 `json:"block_number"`
		Account string `json:"account,omitempty"`
		Balance string `json:"balance_eth,omitempty"`
	}
	view := providerView{Network: netw.Name, ChainID: uint64(netw.ChainID), Block: block}

	if accounts, err := p.Accounts(ctx); err == nil && len(accounts) > 0 {
		view.Account = accounts[0].Hex()
		if bal, err := p.GetBalance(ctx, accounts[0]); err == nil {
			view.Balance = formatEther(bal)
		}
	}

	return formatter.RenderFields(cmd.OutOrStdout(), view, func(f *output.Fields) {
		f.Add("Network", netw.ChainID.String()).
			Add("Block", strconv.FormatUint(block, 10)).
			Add("Account", view.Account).
			Add("Balance", view.Balance)
	})
}

func runSigner(cmd *cobra.Command, _ []string) error {
	sess, err := cmdCtx.NewSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	ctx, cancel := contextWithTimeout(cmd, cfg.ConnectTimeout())
	defer cancel()

	signer, err := sess.Signer(ctx)
	if err != nil {
		return err
	}

	type signerView struct {
		Address   string `json:"address"`
		Message   string `json:"message,omitempty"`
		Signature string `json:"signature,omitempty"`
	}
	view := signerView{Address: signer.Address().Hex()}

	if signMessage != "" {
		sig, err := signer.SignMessage(ctx, []byte(signMessage))
		if err != nil {
			return err
		}
		view.Message = signMessage
		view.Signature = hexutil.Encode(sig)
	}

	return formatter.RenderFields(cmd.OutOrStdout(), view, func(f *output.Fields) {
		f.Add("Signer", view.Address)
		if view.Signature != "" {
			f.Add("Message", view.Message).Add("Signature", view.Signature)
		}
	})
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	cache, err := cmdCtx.ModalCache()
	if err != nil {
		return err
	}
	if err := cache.Clear(); err != nil {
		return err
	}

	logger.Debug("cleared cached wallet choice")
	return output.FormatSuccess(cmd.OutOrStdout(), "wallet disconnected", formatter.Format())
}

// displayStatus renders a status view.
func displayStatus(w io.Writer, v statusView) error {
	return formatter.RenderFields(w, v, func(f *output.Fields) {
		f.Add("State", v.Session.State).
			Add("Target", v.Session.Target.String())
		if v.Session.Connected {
			f.Add("Connector", v.Session.Connector).
				Add("Account", v.Session.Account).
				Add("Network", v.Session.ChainID.String())
		}
		if v.Connectors != nil {
			f.Add("Wallets", strings.Join(v.Connectors, ", ")).
				Add("Injected URL", v.InjectedURL).
				Add("Cached", v.Cached)
		}
		f.Add("Button", string(v.Button))
	})
}

// formatEther renders wei as ether with up to 18 decimals.
func formatEther(wei *big.Int) string {
	if wei == nil {
		return ""
	}
	ether := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	s := ether.Text('f', 18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	outList := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		outList = append(outList, s)
	}
	sort.Strings(outList)
	return outList
}
