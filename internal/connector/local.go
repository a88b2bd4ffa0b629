package connector

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mrz1836/mns/internal/rpc"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// defaultTransferGas is used when a transaction request carries no gas limit.
const defaultTransferGas = 21000

// KeySource loads the private key a local wallet signs with.
type KeySource func(ctx context.Context) (*ecdsa.PrivateKey, error)

// Local is an in-process wallet. It answers account and signing methods
// itself and forwards everything else to a node.
type Local struct {
	name    string
	display string
	typ     Type
	nodeURL string
	opts    *rpc.ClientOptions
	source  KeySource
}

// NewLocal creates a local wallet connector.
func NewLocal(name, display string, typ Type, nodeURL string, opts *rpc.ClientOptions, source KeySource) *Local {
	return &Local{name: name, display: display, typ: typ, nodeURL: nodeURL, opts: opts, source: source}
}

// Name implements Connector.
func (c *Local) Name() string { return c.name }

// Type implements Connector.
func (c *Local) Type() Type { return c.typ }

// Display implements Connector.
func (c *Local) Display() string { return c.display }

// Connect loads the key and returns a wallet bound to its address.
func (c *Local) Connect(ctx context.Context) (Provider, error) {
	if c.nodeURL == "" {
		return nil, mnserr.WithDetails(mnserr.ErrExtensionUnavailable, map[string]string{
			"connector": c.name,
			"reason":    "no node RPC endpoint configured",
		})
	}

	key, err := c.source(ctx)
	if err != nil {
		return nil, err
	}

	return &localWallet{
		node:    rpc.NewClientWithOptions(c.nodeURL, c.opts),
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// localWallet is the live connection returned by Local.Connect.
type localWallet struct {
	mu      sync.Mutex
	node    *rpc.Client
	key     *ecdsa.PrivateKey
	address common.Address
	closed  bool
}

// Request implements provider.Transport.
func (w *localWallet) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil, &rpc.Error{Code: rpc.CodeDisconnected, Message: "wallet disconnected"}
	}

	switch method {
	case "eth_accounts", "eth_requestAccounts":
		return json.Marshal([]string{w.address.Hex()})
	case "personal_sign":
		return w.personalSign(params)
	case "eth_signTransaction":
		signed, err := w.signTransaction(ctx, params)
		if err != nil {
			return nil, err
		}
		raw, err := signed.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encoding signed transaction: %w", err)
		}
		return json.Marshal(hexutil.Encode(raw))
	case "eth_sendTransaction":
		signed, err := w.signTransaction(ctx, params)
		if err != nil {
			return nil, err
		}
		raw, err := signed.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encoding signed transaction: %w", err)
		}
		hash, err := w.node.SendRawTransaction(ctx, raw)
		if err != nil {
			return nil, err
		}
		return json.Marshal(hash)
	}

	return w.node.Call(ctx, method, params...)
}

// Close releases the node client and clears the key.
func (w *localWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.node.Close()
	if w.key != nil && w.key.D != nil {
		w.key.D.SetInt64(0)
	}
}

func (w *localWallet) personalSign(params []any) (json.RawMessage, error) {
	if len(params) < 2 {
		return nil, invalidParams("personal_sign expects data and address")
	}
	data, ok := params[0].(string)
	if !ok {
		return nil, invalidParams("personal_sign data must be a string")
	}
	addr, ok := params[1].(string)
	if !ok || !common.IsHexAddress(addr) || common.HexToAddress(addr) != w.address {
		return nil, &rpc.Error{Code: rpc.CodeUnauthorized, Message: "account not managed by this wallet"}
	}

	msg := []byte(data)
	if strings.HasPrefix(data, "0x") {
		decoded, err := hexutil.Decode(data)
		if err != nil {
			return nil, invalidParams("personal_sign data is not valid hex")
		}
		msg = decoded
	}

	sig, err := crypto.Sign(accounts.TextHash(msg), w.key)
	if err != nil {
		return nil, fmt.Errorf("signing message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return json.Marshal(hexutil.Encode(sig))
}

func (w *localWallet) signTransaction(ctx context.Context, params []any) (*types.Transaction, error) {
	if len(params) < 1 {
		return nil, invalidParams("transaction arguments required")
	}

	var args rpc.TxArgs
	switch v := params[0].(type) {
	case rpc.TxArgs:
		args = v
	case *rpc.TxArgs:
		if v == nil {
			return nil, invalidParams("transaction arguments required")
		}
		args = *v
	default:
		return nil, invalidParams(fmt.Sprintf("unsupported transaction arguments %T", params[0]))
	}

	if args.From != "" && common.HexToAddress(args.From) != w.address {
		return nil, &rpc.Error{Code: rpc.CodeUnauthorized, Message: "account not managed by this wallet"}
	}

	tx, chainID, err := w.buildTransaction(ctx, args)
	if err != nil {
		return nil, err
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}

// buildTransaction fills in missing nonce, chain id and fees from the node.
func (w *localWallet) buildTransaction(ctx context.Context, args rpc.TxArgs) (*types.Transaction, *big.Int, error) {
	chainID := args.ChainID
	if chainID == nil {
		id, err := w.node.ChainID(ctx)
		if err != nil {
			return nil, nil, err
		}
		chainID = id
	}

	var nonce uint64
	if args.Nonce != nil {
		nonce = *args.Nonce
	} else {
		n, err := w.node.GetTransactionCount(ctx, w.address.Hex(), "")
		if err != nil {
			return nil, nil, err
		}
		nonce = n
	}

	gas := args.Gas
	if gas == 0 {
		gas = defaultTransferGas
	}
	value := args.Value
	if value == nil {
		value = new(big.Int)
	}

	var to *common.Address
	if args.To != "" {
		if !common.IsHexAddress(args.To) {
			return nil, nil, invalidParams("invalid recipient address")
		}
		addr := common.HexToAddress(args.To)
		to = &addr
	}

	if args.MaxFeePerGas != nil {
		tip := args.MaxPriorityFeePerGas
		if tip == nil {
			tip = new(big.Int)
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: args.MaxFeePerGas,
			Gas:       gas,
			To:        to,
			Value:     value,
			Data:      args.Data,
		}), chainID, nil
	}

	gasPrice := args.GasPrice
	if gasPrice == nil {
		p, err := w.node.GasPrice(ctx)
		if err != nil {
			return nil, nil, err
		}
		gasPrice = p
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       to,
		Value:    value,
		Data:     args.Data,
	}), chainID, nil
}

// invalidParams is the JSON-RPC "invalid params" error.
func invalidParams(msg string) error {
	return &rpc.Error{Code: -32602, Message: msg}
}
