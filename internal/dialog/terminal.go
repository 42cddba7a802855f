package dialog

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/huh"
)

// TerminalRenderer draws dialogs as huh forms. Only one dialog holds the
// terminal at a time; later dialogs wait their turn.
type TerminalRenderer struct {
	input      io.Reader
	output     io.Writer
	accessible bool

	// terminal is held from Open until Close.
	terminal sync.Mutex
}

// TerminalOption configures a TerminalRenderer.
type TerminalOption func(*TerminalRenderer)

// WithInput sets where keystrokes are read from.
func WithInput(r io.Reader) TerminalOption {
	return func(t *TerminalRenderer) {
		t.input = r
	}
}

// WithOutput sets where the form is drawn.
func WithOutput(w io.Writer) TerminalOption {
	return func(t *TerminalRenderer) {
		t.output = w
	}
}

// WithAccessible switches huh to plain line-based prompts.
func WithAccessible(accessible bool) TerminalOption {
	return func(t *TerminalRenderer) {
		t.accessible = accessible
	}
}

// NewTerminalRenderer returns a renderer drawing on stdin/stderr by default.
func NewTerminalRenderer(opts ...TerminalOption) *TerminalRenderer {
	t := &TerminalRenderer{
		input:  os.Stdin,
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open blocks until the terminal is free, then prepares a form for req.
func (t *TerminalRenderer) Open(ctx context.Context, req Request) (Dialog, error) {
	acquired := make(chan struct{})
	go func() {
		t.terminal.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// release the lock once the pending acquisition completes
		go func() {
			<-acquired
			t.terminal.Unlock()
		}()
		return nil, ctx.Err()
	}

	d := &terminalDialog{release: t.terminal.Unlock}
	d.form = huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(req.Title).
			Placeholder(req.Placeholder).
			Value(&d.value),
	)).
		WithKeyMap(dialogKeyMap()).
		WithInput(t.input).
		WithOutput(t.output).
		WithAccessible(t.accessible).
		WithShowHelp(true)
	return d, nil
}

// dialogKeyMap dismisses the dialog on escape as well as ctrl+c.
func dialogKeyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "cancel"),
	)
	return km
}

type terminalDialog struct {
	form      *huh.Form
	value     string
	release   func()
	closeOnce sync.Once
}

func (d *terminalDialog) Await(ctx context.Context) (string, error) {
	if err := d.form.RunWithContext(ctx); err != nil {
		return "", runError(ctx, err)
	}
	return d.value, nil
}

func (d *terminalDialog) Close() error {
	d.closeOnce.Do(d.release)
	return nil
}

// runError folds user aborts and context cancellation into ErrCancelled.
func runError(ctx context.Context, err error) error {
	if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, huh.ErrTimeout) || ctx.Err() != nil {
		return ErrCancelled
	}
	return err
}
