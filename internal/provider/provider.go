// Package provider wraps a raw wallet transport in a network-aware provider
// and derives account-bound signers from it.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/mns/internal/network"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// Transport is the raw request surface of a connected wallet (EIP-1193 shape).
type Transport interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Network describes the chain a provider is currently attached to.
type Network struct {
	ChainID network.ID `json:"chain_id"`
	Name    string     `json:"name"`
}

// Web3Provider is a read-capable, network-aware handle over a Transport.
// It never caches the chain id: the wallet may switch networks at any time.
type Web3Provider struct {
	transport Transport
}

// NewWeb3Provider wraps a raw transport.
func NewWeb3Provider(t Transport) *Web3Provider {
	return &Web3Provider{transport: t}
}

// Transport returns the underlying raw transport.
func (p *Web3Provider) Transport() Transport {
	return p.transport
}

// GetNetwork queries the wallet for its current chain id.
func (p *Web3Provider) GetNetwork(ctx context.Context) (Network, error) {
	n, err := p.callBig(ctx, "eth_chainId")
	if err != nil {
		return Network{}, fmt.Errorf("getting network: %w", err)
	}

	id := network.FromBig(n)
	return Network{ChainID: id, Name: id.Name()}, nil
}

// Accounts returns the accounts the wallet exposes to this caller.
func (p *Web3Provider) Accounts(ctx context.Context) ([]common.Address, error) {
	result, err := p.transport.Request(ctx, "eth_accounts")
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	var raw []string
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("parsing accounts: %w", err)
	}

	accounts := make([]common.Address, 0, len(raw))
	for _, a := range raw {
		if !common.IsHexAddress(a) {
			return nil, mnserr.WithDetails(mnserr.ErrInvalidAddress, map[string]string{"address": a})
		}
		accounts = append(accounts, common.HexToAddress(a))
	}
	return accounts, nil
}

// GetBalance returns the latest balance of address in wei.
func (p *Web3Provider) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	return p.callBig(ctx, "eth_getBalance", address.Hex(), "latest")
}

// BlockNumber returns the latest block number.
func (p *Web3Provider) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := p.callBig(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// GetSigner returns a signer bound to the first exposed account.
func (p *Web3Provider) GetSigner(ctx context.Context) (*Signer, error) {
	accounts, err := p.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, mnserr.ErrNoAccounts
	}
	return &Signer{provider: p, address: accounts[0]}, nil
}

func (p *Web3Provider) callBig(ctx context.Context, method string, params ...any) (*big.Int, error) {
	result, err := p.transport.Request(ctx, method, params...)
	if err != nil {
		return nil, err
	}

	var hexVal string
	if err := json.Unmarshal(result, &hexVal); err != nil {
		return nil, fmt.Errorf("parsing %s result: %w", method, err)
	}

	n, err := hexutil.DecodeBig(hexVal)
	if err != nil {
		return nil, fmt.Errorf("decoding %s result %q: %w", method, hexVal, err)
	}
	return n, nil
}
