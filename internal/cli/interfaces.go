package cli

import (
	"github.com/mrz1836/mns/internal/config"
	"github.com/mrz1836/mns/internal/output"
	"github.com/mrz1836/mns/internal/session"
	"github.com/mrz1836/mns/internal/web"
)

// Compile-time interface checks.
var (
	_ LogWriter         = (*config.Logger)(nil)
	_ session.LogWriter = (*config.Logger)(nil)
	_ FormatProvider    = (*output.Formatter)(nil)
	_ web.WalletSession = (*session.Session)(nil)
)

// LogWriter provides logging capabilities.
// This interface enables mocking logging in tests.
type LogWriter interface {
	// Debug logs a debug-level message.
	Debug(format string, args ...any)

	// Error logs an error-level message.
	Error(format string, args ...any)

	// Close closes the logger and releases resources.
	Close() error
}

// FormatProvider provides output format information.
type FormatProvider interface {
	// Format returns the current output format.
	Format() output.Format
}
