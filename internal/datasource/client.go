package datasource

import (
	"context"
	"log/slog"
	"slices"

	"github.com/metroplatform/metro-host/internal/bus"
	"github.com/metroplatform/metro-host/internal/contextmenu"
	"github.com/metroplatform/metro-host/internal/dialog"
	"github.com/metroplatform/metro-host/internal/schema"
	"github.com/metroplatform/metro-host/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_deps.go -package=mocks -source=client.go DataStore,ButtonRegistrar,DialogPresenter

// DataStore persists per-DataSource values.
type DataStore interface {
	Store(namespace, key string, value any)
	Read(namespace, key string, callback func(value any))
}

// ButtonRegistrar creates context-menu buttons.
type ButtonRegistrar interface {
	Register(ctx context.Context, button contextmenu.Button, fn contextmenu.ButtonFunc) (bool, error)
}

// DialogPresenter shows input dialogs.
type DialogPresenter interface {
	Show(ctx context.Context, details dialog.Details)
}

// Client is the only handle a DataSource gets on the host. Its identity is
// fixed at construction.
type Client struct {
	datasource string
	slug       string
	username   string
	projects   []string
	schema     schema.Schema

	bus       bus.Bus
	store     DataStore
	registrar ButtonRegistrar
	dialogs   DialogPresenter
	logger    *slog.Logger
	metrics   *telemetry.DatasourceMetrics
}

// Datasource returns the DataSource name the client acts for.
func (c *Client) Datasource() string {
	return c.datasource
}

// Slug returns the activation slug the client was created under.
func (c *Client) Slug() string {
	return c.slug
}

// SendDatapoint pushes dp to the background if it matches the DataSource's
// schema. Non-conforming datapoints are dropped.
func (c *Client) SendDatapoint(ctx context.Context, dp schema.Datapoint) {
	if !schema.Validate(c.schema, dp) {
		c.logger.Warn("Dropping datapoint that does not match schema", "missing_keys", schema.Missing(c.schema, dp))
		c.metrics.RecordDatapoint(ctx, c.datasource, telemetry.OutcomeDropped)
		return
	}

	msg := bus.NewMessage(bus.MethodPush, map[string]any{
		"ds":        c.slug,
		"username":  c.username,
		"projects":  slices.Clone(c.projects),
		"datapoint": dp,
	})
	if err := c.bus.Send(ctx, msg); err != nil {
		c.logger.Error("Failed to push datapoint", "error", err)
		c.metrics.RecordDatapoint(ctx, c.datasource, telemetry.OutcomeFailed)
		return
	}

	c.logger.Debug("Pushed datapoint")
	c.metrics.RecordDatapoint(ctx, c.datasource, telemetry.OutcomePushed)
}

// StoreData saves value under key in the DataSource's namespace.
func (c *Client) StoreData(key string, value any) {
	c.store.Store(c.datasource, key, value)
}

// ReadData looks key up in the DataSource's namespace. callback runs exactly
// once, after ReadData returns, with the value or the "-1" miss sentinel.
func (c *Client) ReadData(key string, callback func(value any)) {
	c.store.Read(c.datasource, key, callback)
}

// CreateContextMenuButton registers button on behalf of the DataSource. It
// returns at once; the outcome is only logged.
func (c *Client) CreateContextMenuButton(ctx context.Context, button contextmenu.Button, fn contextmenu.ButtonFunc) {
	button.Source = c.datasource
	go func() {
		created, err := c.registrar.Register(context.WithoutCancel(ctx), button, fn)
		if err != nil {
			c.logger.Warn("Context-menu button not created", "function", button.FunctionName, "error", err)
			return
		}
		if created {
			c.logger.Info("Context-menu button ready", "function", button.FunctionName)
		}
	}()
}

// ShowInputDialog asks the user for a value. details.SubmitCallback runs on
// submit; nothing runs on cancel.
func (c *Client) ShowInputDialog(ctx context.Context, details dialog.Details) {
	c.dialogs.Show(ctx, details)
}
