// Package contextmenu registers DataSource context-menu buttons with the
// background and dispatches the resulting menu clicks back to the
// DataSource that owns each button.
package contextmenu

import (
	"context"
	"errors"
	"maps"

	"github.com/metroplatform/metro-host/internal/bus"
)

// ButtonStateKey is the local-store key holding the sources that already
// have a button.
const ButtonStateKey = "Metro-Core-ContextMenuButtons"

// Menu-click fields sent by the background.
const (
	fieldType         = "type"
	fieldFunctionName = "functionName"
	fieldContextInfo  = "contextInfo"
)

var (
	// ErrRejected is returned when the background answers a create request
	// with anything other than true.
	ErrRejected = errors.New("background rejected context-menu button")

	// ErrNoSource is returned for a button that does not name its DataSource.
	ErrNoSource = errors.New("context-menu button has no datasource")
)

// Button describes a context-menu entry. Extra carries any additional
// fields the background understands; they are sent alongside the known ones.
type Button struct {
	Title        string         `json:"title,omitempty"`
	Type         string         `json:"type"`
	FunctionName string         `json:"functionName"`
	Contexts     []string       `json:"contexts,omitempty"`
	Source       string         `json:"datasource"`
	Extra        map[string]any `json:"-"`
}

// message builds the contextMenu-create envelope. Known fields take
// precedence over Extra.
func (b Button) message() bus.Message {
	fields := make(map[string]any, len(b.Extra)+5)
	maps.Copy(fields, b.Extra)
	if b.Title != "" {
		fields["title"] = b.Title
	}
	if len(b.Contexts) > 0 {
		fields["contexts"] = b.Contexts
	}
	fields[fieldType] = b.Type
	fields[fieldFunctionName] = b.FunctionName
	fields["datasource"] = b.Source
	return bus.NewMessage(bus.MethodContextMenuCreate, fields)
}

// ContextInfo is the click context the background attaches to a menu click.
type ContextInfo map[string]any

// ButtonFunc handles a click on a registered button. Its result is returned
// to the background as the click's reply.
type ButtonFunc func(ctx context.Context, info ContextInfo) any

type handlerKey struct {
	buttonType   string
	functionName string
}
