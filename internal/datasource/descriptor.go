// Package datasource holds the table of active DataSources and the Client
// each one is given to talk to the host.
package datasource

import (
	"encoding/json"

	"github.com/metroplatform/metro-host/internal/schema"
)

// Descriptor identifies a DataSource instance. It arrives as the data of an
// initDatasource request. Fields are taken as sent; only the slug's
// uniqueness is enforced, by the Registry.
type Descriptor struct {
	Name     string        `json:"name"`
	Slug     string        `json:"slug"`
	Username string        `json:"username"`
	Projects []string      `json:"projects"`
	Schema   schema.Schema `json:"schema"`
	BaseURL  string        `json:"baseURL,omitempty"`
	DevMode  bool          `json:"devMode,omitempty"`
}

// UnmarshalJSON accepts the legacy "datasource" field as the name.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	type plain Descriptor
	var wire struct {
		plain
		Datasource string `json:"datasource"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*d = Descriptor(wire.plain)
	if d.Name == "" {
		d.Name = wire.Datasource
	}
	return nil
}
