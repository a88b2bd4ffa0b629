package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/mrz1836/mns/internal/keys"
	"github.com/mrz1836/mns/internal/modal"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// minPasswordLength is the shortest keyfile password accepted on import.
const minPasswordLength = 8

// errNoSelection is returned when the connector prompt is dismissed.
var errNoSelection = errors.New("no wallet selected")

// Prompt hooks, swapped out in tests.
//
//nolint:gochecknoglobals // replaced by tests to avoid a terminal
var (
	promptPasswordFn    = promptPassword
	promptNewPasswordFn = promptNewPassword
	promptConnectorFn   = promptConnector
)

// promptPassword prompts for a password with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(syscall.Stdin)
	outln(os.Stderr) // Add newline after hidden input

	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	return password, nil
}

// promptNewPassword prompts for a new password with confirmation.
// The caller is responsible for zeroing the returned bytes after use.
func promptNewPassword() ([]byte, error) {
	password, err := promptPasswordFn("Enter encryption password: ")
	if err != nil {
		return nil, err
	}

	if len(password) < minPasswordLength {
		keys.ZeroBytes(password)
		return nil, mnserr.WithSuggestion(
			mnserr.ErrInvalidInput,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength),
		)
	}

	confirm, err := promptPasswordFn("Confirm password: ")
	if err != nil {
		keys.ZeroBytes(password)
		return nil, err
	}
	defer keys.ZeroBytes(confirm)

	if string(password) != string(confirm) {
		keys.ZeroBytes(password)
		return nil, mnserr.WithSuggestion(
			mnserr.ErrInvalidInput,
			"passwords do not match",
		)
	}

	return password, nil
}

// promptConnector asks which wallet to connect through.
func promptConnector(ctx context.Context, choices []modal.Choice) (string, error) {
	return chooseConnector(ctx, os.Stdin, os.Stderr, choices)
}

// chooseConnector lists choices on w and reads a number or name from r.
func chooseConnector(ctx context.Context, r io.Reader, w io.Writer, choices []modal.Choice) (string, error) {
	outln(w, "Select a wallet:")
	for i, c := range choices {
		out(w, "  %d) %s [%s]\n", i+1, c.Display, c.Type)
	}
	out(w, "Choice [1-%d]: ", len(choices))

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		done <- result{line, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		outln(w)
		return "", ctx.Err()
	case res = <-done:
	}
	if res.err != nil && !errors.Is(res.err, io.EOF) {
		return "", fmt.Errorf("reading selection: %w", res.err)
	}

	answer := strings.TrimSpace(res.line)
	if answer == "" {
		return "", errNoSelection
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(choices) {
			return "", mnserr.WithDetails(mnserr.ErrInvalidInput, map[string]string{"choice": answer})
		}
		return choices[n-1].Name, nil
	}
	for _, c := range choices {
		if strings.EqualFold(c.Name, answer) {
			return c.Name, nil
		}
	}
	return answer, nil
}

// out is a helper for CLI output that ignores write errors (standard pattern for CLI tools).
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func outln(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}
