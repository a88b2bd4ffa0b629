// Package keys loads the private keys used by the local wallet connectors:
// age-encrypted key files and BIP39 mnemonics derived on the Ethereum path.
package keys

import (
	"runtime"
	"sync"
)

// Secret holds sensitive bytes in locked memory where the OS allows it and
// zeroes them on Destroy.
type Secret struct {
	data   []byte
	locked bool
	mu     sync.Mutex
}

// NewSecret copies data into a new Secret. The caller should zero data.
func NewSecret(data []byte) *Secret {
	s := &Secret{data: make([]byte, len(data))}
	copy(s.data, data)

	// Locking is best effort; the secret is still zeroed on Destroy.
	s.locked = mlock(s.data)

	runtime.SetFinalizer(s, func(s *Secret) {
		s.Destroy()
	})

	return s
}

// Bytes returns the underlying slice, or nil after Destroy.
func (s *Secret) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// IsLocked reports whether the memory is mlocked.
func (s *Secret) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Destroy zeroes and unlocks the memory. Safe to call multiple times.
func (s *Secret) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return
	}

	ZeroBytes(s.data)
	if s.locked {
		munlock(s.data)
		s.locked = false
	}
	s.data = nil

	runtime.SetFinalizer(s, nil)
}

// ZeroBytes overwrites b with zeros.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
