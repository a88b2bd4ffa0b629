// Package notice delivers blocking, user-facing notices such as the
// wrong-network alert.
package notice

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Kind classifies a notice.
type Kind string

// Notice kinds.
const (
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notice is one message shown to the user.
type Notice struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// Notifier shows a notice and returns once the user has acknowledged it
// or ctx is done.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notice) error {
	return f(ctx, n)
}

// Discard drops every notice.
//
//nolint:gochecknoglobals // stateless default notifier
var Discard Notifier = NotifierFunc(func(context.Context, Notice) error { return nil })

// TerminalNotifier prints notices and, when input is a terminal, waits for
// the user to press Enter.
type TerminalNotifier struct {
	Out io.Writer
	In  io.Reader
	// Interactive forces (or disables) waiting for Enter. When nil the
	// notifier waits only if In is a terminal.
	Interactive *bool
}

// NewTerminalNotifier writes to stderr and reads acknowledgements from stdin.
func NewTerminalNotifier() *TerminalNotifier {
	return &TerminalNotifier{Out: os.Stderr, In: os.Stdin}
}

// Notify implements Notifier.
func (t *TerminalNotifier) Notify(ctx context.Context, n Notice) error {
	if n.Title != "" {
		_, _ = fmt.Fprintf(t.Out, "%s: %s\n", n.Title, n.Message)
	} else {
		_, _ = fmt.Fprintln(t.Out, n.Message)
	}

	if !t.interactive() {
		return nil
	}

	_, _ = fmt.Fprint(t.Out, "Press Enter to continue...")
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(t.In).ReadString('\n')
		done <- err
	}()

	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(t.Out)
		return ctx.Err()
	case err := <-done:
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading acknowledgement: %w", err)
		}
		return nil
	}
}

func (t *TerminalNotifier) interactive() bool {
	if t.Interactive != nil {
		return *t.Interactive
	}
	f, ok := t.In.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: fd fits in int
}

// Recorder keeps notices for later display, e.g. in an HTTP response.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

// Drain returns and clears the recorded notices.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

// Last returns the most recent notice without clearing it.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Len returns the number of recorded notices.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

type recorderKey struct{}

// WithRecorder binds r to ctx so a Routed notifier delivers the notices of
// one request to that request alone.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// RecorderFrom returns the recorder bound to ctx, if any.
func RecorderFrom(ctx context.Context) (*Recorder, bool) {
	r, ok := ctx.Value(recorderKey{}).(*Recorder)
	return r, ok && r != nil
}

// Routed delivers notices to the recorder bound to the context, or to
// Fallback when none is bound.
type Routed struct {
	Fallback Notifier
}

// Notify implements Notifier.
func (r Routed) Notify(ctx context.Context, n Notice) error {
	if rec, ok := RecorderFrom(ctx); ok {
		return rec.Notify(ctx, n)
	}
	if r.Fallback == nil {
		return nil
	}
	return r.Fallback.Notify(ctx, n)
}
