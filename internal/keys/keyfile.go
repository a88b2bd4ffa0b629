package keys

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mrz1836/mns/internal/fileutil"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// keyFilePermissions is the mode for written key files.
const keyFilePermissions = 0o600

// Seal encrypts a private key for storage with an age scrypt recipient.
// The plaintext is the 0x-less hex encoding of the key.
func Seal(key *ecdsa.PrivateKey, password string) ([]byte, error) {
	if key == nil {
		return nil, mnserr.ErrInvalidKey
	}
	if password == "" {
		return nil, mnserr.WithSuggestion(mnserr.ErrInvalidInput, "a password is required to encrypt the key")
	}

	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}

	raw := crypto.FromECDSA(key)
	defer ZeroBytes(raw)
	plaintext := []byte(hex.EncodeToString(raw))
	defer ZeroBytes(plaintext)

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("initializing encryption: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}

	return buf.Bytes(), nil
}

// Open decrypts a sealed key. A wrong password yields ErrDecryptionFailed.
func Open(ciphertext []byte, password string) (*ecdsa.PrivateKey, error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, mnserr.WithCause(mnserr.ErrDecryptionFailed, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, mnserr.WithCause(mnserr.ErrDecryptionFailed, err)
	}
	secret := NewSecret(plaintext)
	ZeroBytes(plaintext)
	defer secret.Destroy()

	return ParsePrivateKey(string(secret.Bytes()))
}

// ParsePrivateKey parses a hex private key, with or without 0x prefix.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, mnserr.WithCause(mnserr.ErrInvalidKey, err)
	}
	return key, nil
}

// WriteKeyFile seals key and writes it atomically to path.
func WriteKeyFile(path string, key *ecdsa.PrivateKey, password string) error {
	sealed, err := Seal(key, password)
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(path, sealed, keyFilePermissions); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// ReadKeyFile reads and opens a sealed key file.
func ReadKeyFile(path, password string) (*ecdsa.PrivateKey, error) {
	// #nosec G304 -- key file path comes from the user's own configuration
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, mnserr.WithDetails(mnserr.ErrNotFound, map[string]string{"key_file": path})
		}
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return Open(data, password)
}
