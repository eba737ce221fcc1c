// Package embedded provides the SQL schemas compiled into the binary.
package embedded

import (
	"embed"
	"fmt"
)

// Schemas contains one schema file per database, named <database>_schema.sql:
//   - harvest_schema.sql - monthly asset and CPI time series
//   - cache_schema.sql - client data cache (upstream responses, backtest results)
//
//go:embed schemas/*.sql
var Schemas embed.FS

// Schema returns the schema for the named database.
func Schema(name string) (string, error) {
	content, err := Schemas.ReadFile("schemas/" + name + "_schema.sql")
	if err != nil {
		return "", fmt.Errorf("no embedded schema for database %q: %w", name, err)
	}
	return string(content), nil
}
