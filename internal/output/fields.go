package output

import (
	"fmt"
	"io"
	"strings"
)

// Fields is an ordered list of label/value pairs rendered as an aligned
// block, e.g. the session status.
type Fields struct {
	labels []string
	values []string
}

// Add appends a pair. Empty values are rendered as "-".
func (f *Fields) Add(label, value string) *Fields {
	if value == "" {
		value = "-"
	}
	f.labels = append(f.labels, label)
	f.values = append(f.values, value)
	return f
}

// Len returns the number of pairs.
func (f *Fields) Len() int {
	return len(f.labels)
}

// Render writes the aligned block.
func (f *Fields) Render(w io.Writer) error {
	width := 0
	for _, l := range f.labels {
		if len(l) > width {
			width = len(l)
		}
	}
	for i, l := range f.labels {
		if _, err := fmt.Fprintf(w, "%-*s %s\n", width+1, l+":", f.values[i]); err != nil {
			return err
		}
	}
	return nil
}

// String returns the rendered block.
func (f *Fields) String() string {
	var sb strings.Builder
	_ = f.Render(&sb)
	return sb.String()
}
