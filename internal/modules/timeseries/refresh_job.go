package timeseries

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const refreshTimeout = 15 * time.Minute

// RefreshJob refreshes every stored series on a schedule.
type RefreshJob struct {
	service *Service
	log     zerolog.Logger
}

// NewRefreshJob creates the scheduled refresh job
func NewRefreshJob(service *Service, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		service: service,
		log:     log.With().Str("job", "refresh_series").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "refresh_series"
}

// Run refreshes CPI and all asset tickers
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	start := time.Now()
	if err := j.service.RefreshAll(ctx); err != nil {
		return err
	}

	j.log.Info().
		Dur("duration", time.Since(start)).
		Int("remaining_requests", j.service.RemainingRequests()).
		Msg("Series refresh completed")
	return nil
}
