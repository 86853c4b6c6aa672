// assets/embed.go
//
// Embedded default content for the game server.
// catalog.json holds the species, tree nodes, scoring and educational notes
// the server falls back to when no CATALOG_FILE is configured.

package assets

import (
	_ "embed"
)

//go:embed catalog.json
var catalogJSON []byte

// CatalogJSON returns a copy of the embedded default catalog document.
func CatalogJSON() []byte {
	out := make([]byte, len(catalogJSON))
	copy(out, catalogJSON)
	return out
}
