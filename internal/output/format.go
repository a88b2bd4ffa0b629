// Package output renders command results and errors as text or JSON.
package output

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format represents the output format.
type Format string

// Output format constants.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatAuto Format = "auto"
)

// Formatter renders command results in one format: the JSON view for
// scripts and pipes, or a human view for terminals.
type Formatter struct {
	format Format
}

// NewFormatter creates a formatter for format.
func NewFormatter(format Format) *Formatter {
	return &Formatter{format: format}
}

// Format returns the current output format.
func (f *Formatter) Format() Format {
	return f.format
}

// IsJSON returns true if the formatter outputs JSON.
func (f *Formatter) IsJSON() bool {
	return f.format == FormatJSON
}

// Render writes v as indented JSON, or calls text to write the human view.
func (f *Formatter) Render(w io.Writer, v any, text func(w io.Writer) error) error {
	if f.IsJSON() {
		return WriteJSON(w, v)
	}
	return text(w)
}

// RenderFields is Render with an aligned key/value human view filled in
// by fields.
func (f *Formatter) RenderFields(w io.Writer, v any, fields func(*Fields)) error {
	return f.Render(w, v, func(w io.Writer) error {
		view := &Fields{}
		fields(view)
		return view.Render(w)
	})
}

// WriteJSON encodes v with two-space indentation.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// DetectFormat picks the format for w: an explicit choice wins, a terminal
// gets text and anything else (pipes, files, test buffers) gets JSON.
func DetectFormat(w io.Writer, explicit Format) Format {
	if explicit != FormatAuto && explicit != "" {
		return explicit
	}

	if f, ok := w.(*os.File); ok {
		if term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: Fd() returns uintptr, safe conversion for term.IsTerminal
			return FormatText
		}
	}

	return FormatJSON
}

// ParseFormat parses a format string.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatAuto
	}
}
