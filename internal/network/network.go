// Package network identifies the EVM networks a wallet session can target.
package network

import (
	"math/big"
	"strconv"
	"strings"

	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// ID is an EIP-155 chain identifier.
type ID uint64

// Known chain identifiers.
const (
	Mainnet ID = 1
	Goerli  ID = 5
	Sepolia ID = 11155111
	Holesky ID = 17000
)

// known maps chain identifiers to their canonical names.
//
//nolint:gochecknoglobals // Static lookup table
var known = map[ID]string{
	Mainnet: "mainnet",
	Goerli:  "goerli",
	Sepolia: "sepolia",
	Holesky: "holesky",
}

// aliases are alternative names accepted by Parse.
//
//nolint:gochecknoglobals // Static lookup table
var aliases = map[string]ID{
	"homestead": Mainnet,
	"ethereum":  Mainnet,
	"eth":       Mainnet,
}

// Name returns the canonical network name, or "unknown" for unregistered chains.
func (id ID) Name() string {
	if name, ok := known[id]; ok {
		return name
	}
	return "unknown"
}

// DisplayName returns a capitalized name for user-facing messages.
func (id ID) DisplayName() string {
	name := id.Name()
	if name == "unknown" {
		return "chain " + strconv.FormatUint(uint64(id), 10)
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// String returns "name (id)".
func (id ID) String() string {
	return id.Name() + " (" + strconv.FormatUint(uint64(id), 10) + ")"
}

// IsKnown returns true if the chain is in the registry.
func (id ID) IsKnown() bool {
	_, ok := known[id]
	return ok
}

// BigInt returns the chain id as a big.Int for transaction signers.
func (id ID) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(id))
}

// FromBig converts a chain id returned by a node. Values that do not fit in
// 64 bits map to 0, which never equals a configured target.
func FromBig(n *big.Int) ID {
	if n == nil || !n.IsUint64() {
		return 0
	}
	return ID(n.Uint64())
}

// Parse accepts a network name ("goerli"), an alias ("homestead"), a decimal
// chain id ("5") or a hex chain id ("0x5").
func Parse(s string) (ID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, mnserr.WithDetails(mnserr.ErrUnknownNetwork, map[string]string{"network": s})
	}

	for id, name := range known {
		if name == s {
			return id, nil
		}
	}
	if id, ok := aliases[s]; ok {
		return id, nil
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") {
		base = 16
		digits = s[2:]
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil || n == 0 {
		return 0, mnserr.WithDetails(mnserr.ErrUnknownNetwork, map[string]string{"network": s})
	}
	return ID(n), nil
}
