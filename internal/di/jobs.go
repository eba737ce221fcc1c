// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/harvest/internal/clientdata"
	"github.com/aristath/harvest/internal/config"
	"github.com/aristath/harvest/internal/database"
	"github.com/aristath/harvest/internal/modules/timeseries"
	"github.com/aristath/harvest/internal/reliability"
	"github.com/aristath/harvest/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	cleanupSchedule     = "0 15 * * * *"   // hourly
	walCheckSchedule    = "0 */30 * * * *" // every 30 minutes
	maintenanceSchedule = "0 0 4 * * SUN"  // weekly
)

// RegisterJobs creates the scheduler and registers every job with it.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	container.Scheduler = sched

	walJob := scheduler.NewCheckWALCheckpointsJob(container.HarvestDB, container.CacheDB)
	walJob.SetLogger(log)

	maintenanceJob := reliability.NewMaintenanceJob(
		[]*database.DB{container.HarvestDB, container.CacheDB},
		cfg.DataDir,
		log,
	)

	instances := &JobInstances{
		RefreshSeries:       timeseries.NewRefreshJob(container.TimeseriesService, log),
		ClientDataCleanup:   clientdata.NewCleanupJob(container.ClientDataRepo, log),
		WALCheckpoints:      walJob,
		DatabaseBackup:      reliability.NewBackupJob(container.BackupService, log),
		DatabaseMaintenance: maintenanceJob,
	}

	schedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.RefreshSchedule, instances.RefreshSeries},
		{cleanupSchedule, instances.ClientDataCleanup},
		{walCheckSchedule, instances.WALCheckpoints},
		{cfg.Backup.Schedule, instances.DatabaseBackup},
		{maintenanceSchedule, instances.DatabaseMaintenance},
	}
	for _, s := range schedules {
		if err := sched.AddJob(s.schedule, s.job); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", s.job.Name(), err)
		}
	}

	return instances, nil
}
