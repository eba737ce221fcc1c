/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived dependency of the server. It is built
 * once by Wire and passed to the HTTP server for access to services.
 */
package di

import (
	"errors"

	"github.com/aristath/harvest/internal/clientdata"
	"github.com/aristath/harvest/internal/clients/alphavantage"
	"github.com/aristath/harvest/internal/database"
	"github.com/aristath/harvest/internal/modules/backtest"
	"github.com/aristath/harvest/internal/modules/timeseries"
	"github.com/aristath/harvest/internal/reliability"
	"github.com/aristath/harvest/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	HarvestDB *database.DB // time series, backed up
	CacheDB   *database.DB // client data cache, refetchable

	// Repositories
	TimeseriesRepo *timeseries.Repository
	ClientDataRepo *clientdata.Repository

	// Clients
	AlphaVantageClient *alphavantage.Client

	// Services
	TimeseriesService *timeseries.Service
	BacktestService   *backtest.Service
	BackupService     *reliability.BackupService

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered scheduler jobs
type JobInstances struct {
	RefreshSeries       scheduler.Job
	ClientDataCleanup   scheduler.Job
	WALCheckpoints      scheduler.Job
	DatabaseBackup      scheduler.Job
	DatabaseMaintenance scheduler.Job
}

// Close closes every open database
func (c *Container) Close() error {
	var errs []error
	for _, db := range []*database.DB{c.HarvestDB, c.CacheDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
