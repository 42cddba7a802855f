// Package dialog shows modal input dialogs on behalf of DataSources.
//
// A Presenter owns the lifecycle: it opens a dialog through a Renderer,
// waits for exactly one outcome (submit or cancel) and always tears the
// dialog down afterwards.
package dialog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrCancelled is returned by Await when the user dismissed the dialog.
var ErrCancelled = errors.New("dialog cancelled")

// Details describes an input dialog requested by a DataSource.
type Details struct {
	// Description is shown as the input's placeholder.
	Description string

	// SubmitCallback receives the submitted value. It is not called on cancel.
	SubmitCallback func(value string)
}

// Request is what a Renderer needs to draw a dialog.
type Request struct {
	Title       string
	Placeholder string
}

//go:generate mockgen -destination=mocks/mock_renderer.go -package=mocks -source=dialog.go Renderer,Dialog

// Renderer draws dialogs in an isolated surface.
type Renderer interface {
	Open(ctx context.Context, req Request) (Dialog, error)
}

// Dialog is a single open dialog.
type Dialog interface {
	// Await blocks until the user submits a value or cancels. Cancellation,
	// including ctx ending, is reported as ErrCancelled.
	Await(ctx context.Context) (string, error)

	// Close removes the dialog. It is safe to call more than once.
	Close() error
}

// Presenter shows dialogs asynchronously.
type Presenter struct {
	renderer Renderer
	title    string
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// PresenterOption configures a Presenter.
type PresenterOption func(*Presenter)

// WithLogger sets the presenter's logger.
func WithLogger(logger *slog.Logger) PresenterOption {
	return func(p *Presenter) {
		p.logger = logger
	}
}

// WithTitle sets the title drawn above every dialog.
func WithTitle(title string) PresenterOption {
	return func(p *Presenter) {
		p.title = title
	}
}

// NewPresenter returns a Presenter drawing through renderer.
func NewPresenter(renderer Renderer, opts ...PresenterOption) *Presenter {
	p := &Presenter{
		renderer: renderer,
		title:    "Metro",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Show opens a dialog for details and returns immediately. The submit
// callback runs on the dialog's goroutine.
func (p *Presenter) Show(ctx context.Context, details Details) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.show(ctx, details)
	}()
}

// Wait blocks until every dialog shown so far has been torn down.
func (p *Presenter) Wait() {
	p.wg.Wait()
}

func (p *Presenter) show(ctx context.Context, details Details) {
	dlg, err := p.renderer.Open(ctx, Request{Title: p.title, Placeholder: details.Description})
	if err != nil {
		p.logger.Warn("Failed to open input dialog", "error", err)
		return
	}
	defer func() {
		if err := dlg.Close(); err != nil {
			p.logger.Warn("Failed to close input dialog", "error", err)
		}
	}()

	value, err := dlg.Await(ctx)
	switch {
	case errors.Is(err, ErrCancelled):
		p.logger.Debug("Input dialog cancelled")
	case err != nil:
		p.logger.Warn("Input dialog failed", "error", err)
	case details.SubmitCallback != nil:
		details.SubmitCallback(value)
	}
}
