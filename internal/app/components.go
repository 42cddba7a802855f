package app

import (
	"github.com/metroplatform/metro-host/internal/bus"
	"github.com/metroplatform/metro-host/internal/catalog"
	"github.com/metroplatform/metro-host/internal/contextmenu"
	"github.com/metroplatform/metro-host/internal/datasource"
	"github.com/metroplatform/metro-host/internal/dialog"
	"github.com/metroplatform/metro-host/internal/storage"
)

// Transport is a bus connection the app can shut down. Done is closed when
// the connection ends for any reason.
type Transport interface {
	bus.Bus
	Done() <-chan struct{}
	Close() error
}

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Loader runs one load cycle
	Loader *catalog.Loader

	// Coordinator reruns the catalog loader
	Coordinator *catalog.Coordinator

	// Registry holds the active DataSources
	Registry *datasource.Registry

	// Registrar owns context-menu buttons and their handlers
	Registrar *contextmenu.Registrar

	// Presenter shows input dialogs
	Presenter *dialog.Presenter

	// Bridge serves DataSource storage
	Bridge *storage.Bridge

	// Transport connects to the background
	Transport Transport

	// Store backs settings, button state and DataSource data
	Store storage.Store
}
