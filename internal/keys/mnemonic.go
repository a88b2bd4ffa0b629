package keys

import (
	"crypto/ecdsa"
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// BIP44 path components for Ethereum: m/44'/60'/0'/0/index.
const (
	purpose      = 44
	coinTypeETH  = 60
	account      = 0
	externalPath = 0

	// maxSuggestionDistance bounds how far a typo may be from a word list entry.
	maxSuggestionDistance = 2
)

// whitespaceRegex matches one or more whitespace characters.
var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeMnemonic lowercases and collapses whitespace.
func NormalizeMnemonic(mnemonic string) string {
	return whitespaceRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(mnemonic)), " ")
}

// DerivationPath returns the path DeriveKey uses for index.
func DerivationPath(index uint32) string {
	return fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", purpose, coinTypeETH, account, externalPath, index)
}

// ValidateMnemonic checks a BIP39 phrase. Unknown words are reported with
// the closest word list entry as a suggestion.
func ValidateMnemonic(mnemonic string) error {
	mnemonic = NormalizeMnemonic(mnemonic)
	for _, word := range strings.Split(mnemonic, " ") {
		if _, ok := bip39.GetWordIndex(word); ok {
			continue
		}
		err := mnserr.WithDetails(mnserr.ErrInvalidMnemonic, map[string]string{"word": word})
		if suggestion := SuggestWord(word); suggestion != "" {
			err = mnserr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", suggestion))
		}
		return err
	}

	if !bip39.IsMnemonicValid(mnemonic) {
		return mnserr.WithSuggestion(mnserr.ErrInvalidMnemonic, "check the word order and count")
	}
	return nil
}

// SuggestWord returns the closest BIP39 word to word, or "" if none is close.
func SuggestWord(word string) string {
	best := ""
	bestDistance := maxSuggestionDistance + 1
	for _, candidate := range bip39.GetWordList() {
		if d := levenshtein.ComputeDistance(word, candidate); d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	return best
}

// DeriveKey derives the private key at m/44'/60'/0'/0/index.
func DeriveKey(mnemonic, passphrase string, index uint32) (*ecdsa.PrivateKey, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(NormalizeMnemonic(mnemonic), passphrase)
	defer ZeroBytes(seed)

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}

	path := []uint32{
		bip32.FirstHardenedChild + purpose,
		bip32.FirstHardenedChild + coinTypeETH,
		bip32.FirstHardenedChild + account,
		externalPath,
		index,
	}
	for _, child := range path {
		key, err = key.NewChildKey(child)
		if err != nil {
			return nil, fmt.Errorf("deriving %s: %w", DerivationPath(index), err)
		}
	}

	priv, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, mnserr.WithCause(mnserr.ErrInvalidKey, err)
	}
	return priv, nil
}
