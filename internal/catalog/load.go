// internal/catalog/load.go
//
// Loading catalogs from JSON.
//
// Sources, in order of preference:
//   1. An explicit file path (CATALOG_FILE in the server config).
//   2. The default catalog embedded in the assets package.

package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/robalobadob/oceantree/assets"
)

// Parse decodes a JSON catalog document and builds a Catalog from it.
// Unknown fields are rejected so typos in hand-edited files surface early.
func Parse(data []byte) (*Catalog, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc)
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (*Catalog, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Default parses the embedded catalog.
func Default() (*Catalog, []string, error) {
	return Parse(assets.CatalogJSON())
}

// Load returns the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, []string, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}
