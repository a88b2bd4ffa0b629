// Package errors provides structured error handling for mns.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the mns binary.
const (
	ExitSuccess     = 0 // Successful execution
	ExitGeneral     = 1 // General/unknown error
	ExitInput       = 2 // Invalid input or configuration
	ExitRejected    = 3 // User declined the wallet prompt
	ExitUnavailable = 4 // No wallet could be reached
	ExitNetwork     = 5 // Wallet is on the wrong network
)

// MNSError is the structured error type for mns.
type MNSError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *MNSError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *MNSError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for MNSError.
func (e *MNSError) Is(target error) bool {
	var t *MNSError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &MNSError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &MNSError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &MNSError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitInput,
	}

	// Wallet connection errors.
	ErrExtensionUnavailable = &MNSError{
		Code:       "EXTENSION_UNAVAILABLE",
		Message:    "no wallet provider is available",
		Suggestion: "start your wallet and make sure its RPC endpoint is reachable",
		ExitCode:   ExitUnavailable,
	}

	ErrUserRejected = &MNSError{
		Code:     "USER_REJECTED",
		Message:  "wallet connection request was rejected",
		ExitCode: ExitRejected,
	}

	ErrWrongNetwork = &MNSError{
		Code:       "WRONG_NETWORK",
		Message:    "wallet is connected to the wrong network",
		Suggestion: "switch the network in your wallet and connect again",
		ExitCode:   ExitNetwork,
	}

	ErrNotConnected = &MNSError{
		Code:     "NOT_CONNECTED",
		Message:  "wallet is not connected",
		ExitCode: ExitGeneral,
	}

	ErrAlreadyConnected = &MNSError{
		Code:     "ALREADY_CONNECTED",
		Message:  "wallet session is already connected",
		ExitCode: ExitInput,
	}

	ErrConnectInFlight = &MNSError{
		Code:     "CONNECT_IN_FLIGHT",
		Message:  "a wallet connection attempt is in progress",
		ExitCode: ExitGeneral,
	}

	ErrJoinInFlight = &MNSError{
		Code:     "JOIN_IN_FLIGHT",
		Message:  "a whitelist join is already in progress",
		ExitCode: ExitGeneral,
	}

	ErrNotInitialized = &MNSError{
		Code:     "NOT_INITIALIZED",
		Message:  "wallet session has not been initialized",
		ExitCode: ExitGeneral,
	}

	ErrNoAccounts = &MNSError{
		Code:     "NO_ACCOUNTS",
		Message:  "wallet exposed no accounts",
		ExitCode: ExitRejected,
	}

	ErrNetworkError = &MNSError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrDecryptionFailed = &MNSError{
		Code:     "DECRYPTION_FAILED",
		Message:  "decryption failed - wrong password or corrupted file",
		ExitCode: ExitInput,
	}

	ErrInvalidMnemonic = &MNSError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	ErrInvalidKey = &MNSError{
		Code:     "INVALID_KEY",
		Message:  "invalid private key",
		ExitCode: ExitInput,
	}

	ErrInvalidAddress = &MNSError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrSignatureMismatch = &MNSError{
		Code:     "SIGNATURE_MISMATCH",
		Message:  "wallet returned a signature from a different account",
		ExitCode: ExitGeneral,
	}

	// Config-specific errors.
	ErrConfigNotFound = &MNSError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitInput,
	}

	ErrConfigInvalid = &MNSError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &MNSError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown configuration key",
		ExitCode: ExitInput,
	}

	ErrUnknownNetwork = &MNSError{
		Code:     "UNKNOWN_NETWORK",
		Message:  "unknown network",
		ExitCode: ExitInput,
	}

	ErrUnknownConnector = &MNSError{
		Code:     "UNKNOWN_CONNECTOR",
		Message:  "unknown connector type",
		ExitCode: ExitInput,
	}
)

// New creates a new MNSError with the given code and message.
func New(code, message string) *MNSError {
	return &MNSError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var se *MNSError
	if errors.As(err, &se) {
		return &MNSError{
			Code:       se.Code,
			Message:    fmt.Sprintf("%s: %s", msg, se.Message),
			Details:    se.Details,
			Suggestion: se.Suggestion,
			Cause:      err,
			ExitCode:   se.ExitCode,
		}
	}

	return &MNSError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of a sentinel carrying the underlying cause.
// errors.Is still matches the sentinel; errors.As reaches the cause.
func WithCause(sentinel *MNSError, cause error) error {
	return &MNSError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var se *MNSError
	if errors.As(err, &se) {
		return &MNSError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    details,
			Suggestion: se.Suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &MNSError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var se *MNSError
	if errors.As(err, &se) {
		return &MNSError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    se.Details,
			Suggestion: suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &MNSError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var se *MNSError
	if errors.As(err, &se) {
		return se.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var se *MNSError
	if errors.As(err, &se) {
		return se.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
