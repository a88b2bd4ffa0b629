package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// NewErrorDetail describes err for machine consumers.
func NewErrorDetail(err error) ErrorDetail {
	var se *mnserr.MNSError
	if errors.As(err, &se) {
		return ErrorDetail{
			Code:       se.Code,
			Message:    se.Message,
			Details:    se.Details,
			Suggestion: se.Suggestion,
			ExitCode:   se.ExitCode,
		}
	}
	return ErrorDetail{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		ExitCode: mnserr.ExitGeneral,
	}
}

// FormatError formats an error for display.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	if format == FormatJSON {
		return WriteJSON(w, ErrorOutput{Error: NewErrorDetail(err)})
	}
	return formatErrorText(w, err)
}

// formatErrorText writes the message, sorted details and the suggestion.
func formatErrorText(w io.Writer, err error) error {
	var sb strings.Builder

	var se *mnserr.MNSError
	if errors.As(err, &se) {
		sb.WriteString(fmt.Sprintf("Error: %s\n", se.Message))

		if len(se.Details) > 0 {
			keys := make([]string, 0, len(se.Details))
			for k := range se.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			sb.WriteString("\nDetails:\n")
			for _, k := range keys {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", k, se.Details[k]))
			}
		}

		if se.Cause != nil && !isSentinelCause(se) {
			sb.WriteString(fmt.Sprintf("\nCause: %v\n", se.Cause))
		}

		if se.Suggestion != "" {
			sb.WriteString(fmt.Sprintf("\nSuggestion: %s\n", se.Suggestion))
		}
	} else {
		sb.WriteString(fmt.Sprintf("Error: %s\n", err.Error()))
	}

	_, writeErr := w.Write([]byte(sb.String()))
	return writeErr
}

// isSentinelCause reports whether the cause only repeats the same code,
// as produced by Wrap, so the text output does not print it twice.
func isSentinelCause(se *mnserr.MNSError) bool {
	var inner *mnserr.MNSError
	return errors.As(se.Cause, &inner) && inner.Code == se.Code
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return WriteJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
