package connector

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/mrz1836/mns/internal/fileutil"
	"github.com/mrz1836/mns/internal/keys"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// errNoSecretSource is returned when neither env nor prompt can supply a secret.
var errNoSecretSource = errors.New("no password source available")

// KeyfileSource loads an age-encrypted key file. The password comes from
// passwordEnv when set, otherwise from the prompt. A missing file is
// ErrExtensionUnavailable; a declined prompt or a wrong password is
// ErrUserRejected.
func KeyfileSource(path, passwordEnv string, env Env) KeySource {
	return func(ctx context.Context) (*ecdsa.PrivateKey, error) {
		if path == "" {
			return nil, mnserr.WithDetails(mnserr.ErrExtensionUnavailable, map[string]string{
				"reason": "no key_file configured",
			})
		}
		resolved, err := fileutil.ExpandHome(path)
		if err != nil {
			return nil, err
		}

		password, err := secret(ctx, env, passwordEnv, fmt.Sprintf("Password for %s: ", resolved))
		if err != nil {
			return nil, err
		}

		key, err := keys.ReadKeyFile(resolved, password)
		switch {
		case err == nil:
			return key, nil
		case errors.Is(err, mnserr.ErrNotFound):
			return nil, mnserr.WithCause(mnserr.ErrExtensionUnavailable, err)
		case errors.Is(err, mnserr.ErrDecryptionFailed):
			return nil, mnserr.WithCause(mnserr.ErrUserRejected, err)
		default:
			return nil, err
		}
	}
}

// MnemonicSource derives the key at m/44'/60'/0'/0/index from the mnemonic
// held in mnemonicEnv. An unset variable is ErrExtensionUnavailable.
func MnemonicSource(mnemonicEnv, passphraseEnv string, index uint32, env Env) KeySource {
	return func(_ context.Context) (*ecdsa.PrivateKey, error) {
		mnemonic := env.getenv(mnemonicEnv)
		if mnemonic == "" {
			return nil, mnserr.WithDetails(mnserr.ErrExtensionUnavailable, map[string]string{
				"reason": "mnemonic environment variable is empty",
				"env":    mnemonicEnv,
			})
		}
		return keys.DeriveKey(mnemonic, env.getenv(passphraseEnv), index)
	}
}

// secret resolves a password from the environment or the prompt.
func secret(ctx context.Context, env Env, envKey, label string) (string, error) {
	if v := env.getenv(envKey); v != "" {
		return v, nil
	}
	if env.Prompt == nil {
		return "", mnserr.WithCause(mnserr.ErrExtensionUnavailable, errNoSecretSource)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b, err := env.Prompt(label)
	if err != nil {
		return "", mnserr.WithCause(mnserr.ErrUserRejected, err)
	}
	defer keys.ZeroBytes(b)
	return string(b), nil
}
