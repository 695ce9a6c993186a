package app

// ─────────────────────────────────────────────────────────────
// Source Provider Bridge
// ─────────────────────────────────────────────────────────────
//
// The workflow sources package uses interfaces (EntityProvider,
// DBProvider) to reach app infrastructure without creating circular
// deps. This file provides the concrete adapters that satisfy those
// interfaces using the App's services.

import (
	"masterdata/internal/workflow/sources"
)

// wireSourceProviders injects the App's services into the source registry.
func wireSourceProviders(a *App) {
	sources.SetEntityProvider(a.Entities)
	sources.SetDBProvider(a.Database)
}
