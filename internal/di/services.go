package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aristath/harvest/internal/clientdata"
	"github.com/aristath/harvest/internal/clients/alphavantage"
	"github.com/aristath/harvest/internal/config"
	"github.com/aristath/harvest/internal/database"
	"github.com/aristath/harvest/internal/modules/backtest"
	"github.com/aristath/harvest/internal/modules/timeseries"
	"github.com/aristath/harvest/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients and services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.TimeseriesRepo == nil || container.ClientDataRepo == nil {
		return fmt.Errorf("repositories must be initialized first")
	}

	// AlphaVantage, with raw responses persisted in the client data cache
	client := alphavantage.NewClient(cfg.APIKey, log)
	client.SetStore(container.ClientDataRepo.Table(clientdata.TableAlphaVantageSeries))
	ttl := alphavantage.DefaultCacheTTL()
	ttl.Persistent = clientdata.TTLMonthlySeries
	client.SetCacheTTL(ttl)
	container.AlphaVantageClient = client

	resultsCache := container.ClientDataRepo.Table(clientdata.TableBacktestResults)

	container.TimeseriesService = timeseries.NewService(
		container.TimeseriesRepo,
		client,
		resultsCache,
		cfg.AutoFetch,
		log,
	)

	container.BacktestService = backtest.NewService(
		container.TimeseriesService,
		resultsCache,
		clientdata.TTLBacktestResult,
		cfg.BatchConcurrency,
		log,
	)

	var uploader reliability.Uploader
	if cfg.Backup.S3Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		s3, err := reliability.NewS3Uploader(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.S3Bucket,
			Region:          cfg.Backup.S3Region,
			Endpoint:        cfg.Backup.S3Endpoint,
			AccessKeyID:     cfg.Backup.S3AccessKeyID,
			SecretAccessKey: cfg.Backup.S3SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize s3 uploader: %w", err)
		}
		uploader = s3
		log.Info().Str("bucket", cfg.Backup.S3Bucket).Msg("S3 backup upload enabled")
	}

	// only durable data is backed up
	container.BackupService = reliability.NewBackupService(
		[]*database.DB{container.HarvestDB},
		filepath.Join(cfg.DataDir, "backups"),
		cfg.Backup.Keep,
		uploader,
		log,
	)

	return nil
}
