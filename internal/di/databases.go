// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/harvest/internal/config"
	"github.com/aristath/harvest/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. harvest - monthly asset and CPI series
	harvestDB, err := database.New(database.Config{
		Path:    cfg.DBFile,
		Profile: database.ProfileStandard,
		Name:    "harvest",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize harvest database: %w", err)
	}
	container.HarvestDB = harvestDB

	// 2. cache - upstream responses and backtest results
	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBFile,
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		harvestDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{harvestDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("harvest", harvestDB.Path()).
		Str("cache", cacheDB.Path()).
		Msg("Databases initialized")

	return container, nil
}
