package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mrz1836/mns/internal/rpc"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// Signer is a provider bound to one account that can authorize actions.
// Signing is delegated to the wallet; results are verified locally.
type Signer struct {
	provider *Web3Provider
	address  common.Address
}

// Address returns the account the signer is bound to.
func (s *Signer) Address() common.Address {
	return s.address
}

// Provider returns the provider the signer was derived from.
func (s *Signer) Provider() *Web3Provider {
	return s.provider
}

// SignMessage signs msg with the EIP-191 personal message prefix and checks
// that the signature recovers to the bound account.
func (s *Signer) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	result, err := s.provider.transport.Request(ctx, "personal_sign", hexutil.Encode(msg), s.address.Hex())
	if err != nil {
		return nil, fmt.Errorf("signing message: %w", err)
	}

	sig, err := decodeHex(result)
	if err != nil {
		return nil, fmt.Errorf("parsing signature: %w", err)
	}

	recovered, err := RecoverMessageSigner(msg, sig)
	if err != nil {
		return nil, err
	}
	if recovered != s.address {
		return nil, mnserr.WithDetails(mnserr.ErrSignatureMismatch, map[string]string{
			"expected":  s.address.Hex(),
			"recovered": recovered.Hex(),
		})
	}

	return sig, nil
}

// SignTransaction asks the wallet to sign tx for the provider's current chain
// and verifies the sender of the returned transaction.
func (s *Signer) SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	net, err := s.provider.GetNetwork(ctx)
	if err != nil {
		return nil, err
	}
	chainID := net.ChainID.BigInt()

	nonce := tx.Nonce()
	args := rpc.TxArgs{
		From:    s.address.Hex(),
		Gas:     tx.Gas(),
		Value:   tx.Value(),
		Nonce:   &nonce,
		Data:    tx.Data(),
		ChainID: chainID,
	}
	if to := tx.To(); to != nil {
		args.To = to.Hex()
	}
	if tx.Type() == types.DynamicFeeTxType {
		args.MaxFeePerGas = tx.GasFeeCap()
		args.MaxPriorityFeePerGas = tx.GasTipCap()
	} else {
		args.GasPrice = tx.GasPrice()
	}

	result, err := s.provider.transport.Request(ctx, "eth_signTransaction", args)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}

	raw, err := decodeSignedTx(result)
	if err != nil {
		return nil, err
	}

	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("decoding signed transaction: %w", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		return nil, fmt.Errorf("recovering transaction sender: %w", err)
	}
	if sender != s.address {
		return nil, mnserr.WithDetails(mnserr.ErrSignatureMismatch, map[string]string{
			"expected":  s.address.Hex(),
			"recovered": sender.Hex(),
		})
	}

	return signed, nil
}

// RecoverMessageSigner returns the address that produced an EIP-191 signature.
// Both 0/1 and 27/28 recovery ids are accepted.
func RecoverMessageSigner(msg, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, mnserr.WithDetails(mnserr.ErrInvalidInput, map[string]string{
			"reason": fmt.Sprintf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig)),
		})
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(msg), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func decodeHex(result json.RawMessage) ([]byte, error) {
	var hexVal string
	if err := json.Unmarshal(result, &hexVal); err != nil {
		return nil, err
	}
	return hexutil.Decode(hexVal)
}

// decodeSignedTx accepts either a bare hex string or {"raw": "0x..."}.
func decodeSignedTx(result json.RawMessage) ([]byte, error) {
	var wrapped struct {
		Raw string `json:"raw"`
	}
	if json.Unmarshal(result, &wrapped) == nil && wrapped.Raw != "" {
		return hexutil.Decode(wrapped.Raw)
	}

	raw, err := decodeHex(result)
	if err != nil {
		return nil, fmt.Errorf("parsing signed transaction: %w", err)
	}
	return raw, nil
}
