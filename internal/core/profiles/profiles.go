// Package profiles defines the entity kinds the import pipeline handles.
//
// Each kind is a core.EntityImportProfile: a closed schema, the business key,
// the store checks run at preview and the record builder used at commit.
package profiles

import "github.com/JonMunkholm/rosterimport/internal/core"

// All returns a fresh instance of every profile.
func All() []core.EntityImportProfile {
	return []core.EntityImportProfile{
		NewStudent(),
		NewEmployee(),
	}
}

// NewRegistry returns a registry holding every profile.
func NewRegistry() *core.Registry {
	return core.NewRegistry(All()...)
}
