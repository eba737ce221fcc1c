package di

import (
	"fmt"

	"github.com/aristath/harvest/internal/clientdata"
	"github.com/aristath/harvest/internal/modules/timeseries"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.HarvestDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases must be initialized first")
	}

	container.TimeseriesRepo = timeseries.NewRepository(container.HarvestDB.Conn(), log)
	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())

	return nil
}
