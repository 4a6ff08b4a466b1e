// Package entities holds the import configurations of the labor-admin
// master data.
package entities

import "github.com/ay01sec/labor-admin-sub000/internal/core"

// Registry keys.
const (
	Employee = "employee"
	Client   = "client"
	Site     = "site"
)

// All returns every entity config, in display order.
func All() []core.ImportConfig {
	return []core.ImportConfig{
		EmployeeConfig(),
		ClientConfig(),
		SiteConfig(),
	}
}

// Default returns a registry of All.
func Default() *core.Registry {
	reg, err := core.NewRegistry(All()...)
	if err != nil {
		// The configs are static; a failure here is a programming error.
		panic(err)
	}
	return reg
}
