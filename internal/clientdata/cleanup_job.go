package clientdata

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob prunes the cache database. Backtest results go as soon as they
// expire; AlphaVantage series are kept for a grace period as stale fallback.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
	now  func() time.Time
}

// NewCleanupJob creates a new client data cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
		now:  time.Now,
	}
}

// Run deletes every row past its table's retention and logs the count per table.
func (j *CleanupJob) Run() error {
	_, err := j.Prune()
	return err
}

// Prune is Run returning the number of rows deleted per table.
func (j *CleanupJob) Prune() (map[string]int64, error) {
	now := j.now()
	deleted := make(map[string]int64, len(AllTables))
	perTable := zerolog.Dict()

	var total int64
	for _, table := range AllTables {
		cutoff := now.Add(-staleRetention[table])
		n, err := j.repo.DeleteExpiredBefore(table, cutoff)
		if err != nil {
			j.log.Error().Err(err).Str("table", table).Msg("Failed to prune cache table")
			return deleted, fmt.Errorf("client data cleanup: %w", err)
		}
		deleted[table] = n
		perTable.Int64(table, n)
		total += n
	}

	j.log.Info().
		Dict("deleted", perTable).
		Int64("total_deleted", total).
		Msg("Client data cleanup completed")

	return deleted, nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
