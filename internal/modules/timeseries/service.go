package timeseries

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aristath/harvest/internal/clients/alphavantage"
	"github.com/aristath/harvest/internal/domain"
	"github.com/aristath/harvest/internal/utils"
	"github.com/rs/zerolog"
)

// ResultsCache is cleared whenever stored series change.
// *clientdata.TableCache satisfies it.
type ResultsCache interface {
	Clear() (int64, error)
}

// Service keeps the time-series store filled from AlphaVantage and serves
// merged series to the backtest engine.
type Service struct {
	repo      *Repository
	loader    *Loader
	client    alphavantage.ClientInterface
	results   ResultsCache
	autoFetch bool
	log       zerolog.Logger

	// serializes upstream fetches so concurrent backtests of an unknown
	// ticker spend a single request
	fetchMu sync.Mutex
}

// NewService creates the time-series service. results may be nil.
func NewService(
	repo *Repository,
	client alphavantage.ClientInterface,
	results ResultsCache,
	autoFetch bool,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		loader:    NewLoader(repo),
		client:    client,
		results:   results,
		autoFetch: autoFetch,
		log:       log.With().Str("service", "timeseries").Logger(),
	}
}

// FetchSeries implements domain.SeriesProvider. With auto-fetch enabled, a
// ticker without stored rows is fetched once before giving up.
func (s *Service) FetchSeries(ctx context.Context, ticker string) ([]domain.RawObservation, error) {
	series, err := s.loader.FetchSeries(ctx, ticker)
	if err == nil || !s.autoFetch {
		return series, err
	}

	var unavailable *domain.DataUnavailableError
	if !errors.As(err, &unavailable) {
		return nil, err
	}

	if err := s.ensureStored(ctx, ticker); err != nil {
		return nil, err
	}
	return s.loader.FetchSeries(ctx, ticker)
}

// ensureStored fetches CPI and ticker when they have no rows.
func (s *Service) ensureStored(ctx context.Context, ticker string) error {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	cpiCount, err := s.repo.Count(domain.CPITicker, domain.SeriesTypeCPI)
	if err != nil {
		return err
	}
	if cpiCount == 0 {
		if _, err := s.refreshCPI(ctx); err != nil {
			return err
		}
	}

	count, err := s.repo.Count(ticker, domain.SeriesTypeAsset)
	if err != nil {
		return err
	}
	if count == 0 {
		s.log.Info().Str("ticker", ticker).Msg("Auto-fetching unknown ticker")
		if _, err := s.refreshAsset(ctx, ticker); err != nil {
			return err
		}
	}
	return nil
}

// EnsureInitialized fetches CPI and every seed ticker that has no stored rows.
// Every missing series is attempted; the returned error joins all failures.
func (s *Service) EnsureInitialized(ctx context.Context, seedTickers []string) error {
	exists, err := s.repo.TableExists()
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("timeseries table is missing, run migrations first")
	}

	var errs []error
	for _, ticker := range append([]string{domain.CPITicker}, seedTickers...) {
		isCPI := ticker == domain.CPITicker
		seriesType := domain.SeriesTypeAsset
		if isCPI {
			seriesType = domain.SeriesTypeCPI
		}

		count, err := s.repo.Count(ticker, seriesType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if count > 0 {
			s.log.Debug().Str("ticker", ticker).Int("rows", count).Msg("Series already stored")
			continue
		}

		if isCPI {
			_, err = s.RefreshCPI(ctx)
		} else {
			_, err = s.RefreshAsset(ctx, ticker)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RefreshAsset fetches and stores the full monthly history of ticker.
// Returns the number of rows stored.
func (s *Service) RefreshAsset(ctx context.Context, ticker string) (int, error) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	return s.refreshAsset(ctx, utils.NormalizeTicker(ticker))
}

func (s *Service) refreshAsset(ctx context.Context, ticker string) (int, error) {
	if ticker == "" {
		return 0, fmt.Errorf("ticker must not be empty")
	}

	series, err := s.client.GetMonthlyAdjusted(ctx, ticker)
	if err != nil {
		var notFound alphavantage.ErrSymbolNotFound
		if errors.As(err, &notFound) {
			return 0, &domain.DataUnavailableError{Ticker: ticker, Reason: "unknown symbol", Err: err}
		}
		return 0, fmt.Errorf("failed to fetch %s: %w", ticker, err)
	}

	rows := make([]AssetRow, len(series.Bars))
	for i, bar := range series.Bars {
		rows[i] = AssetRow{
			Date:           bar.Date,
			Open:           bar.Open,
			High:           bar.High,
			Low:            bar.Low,
			Close:          bar.Close,
			AdjustedClose:  bar.AdjustedClose,
			Volume:         bar.Volume,
			DividendAmount: bar.DividendAmount,
		}
	}

	if err := s.repo.UpsertAssetRows(ticker, rows); err != nil {
		return 0, err
	}
	s.invalidateResults()

	s.log.Info().Str("ticker", ticker).Int("rows", len(rows)).Msg("Stored asset series")
	return len(rows), nil
}

// RefreshCPI fetches and stores the monthly CPI series.
func (s *Service) RefreshCPI(ctx context.Context) (int, error) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	return s.refreshCPI(ctx)
}

func (s *Service) refreshCPI(ctx context.Context) (int, error) {
	cpi, err := s.client.GetCPI(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch CPI: %w", err)
	}

	points := make([]domain.InflationPoint, len(cpi.Data))
	for i, p := range cpi.Data {
		points[i] = domain.InflationPoint{Timestamp: p.Date, Value: p.Value}
	}

	if err := s.repo.UpsertCPIRows(points); err != nil {
		return 0, err
	}
	s.invalidateResults()

	s.log.Info().Int("rows", len(points)).Msg("Stored CPI series")
	return len(points), nil
}

// RefreshAll refreshes CPI and every stored asset ticker.
func (s *Service) RefreshAll(ctx context.Context) error {
	tickers, err := s.repo.ListTickers(domain.SeriesTypeAsset)
	if err != nil {
		return err
	}

	var errs []error
	if _, err := s.RefreshCPI(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.RefreshAsset(ctx, ticker); err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to refresh ticker")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Erase deletes the stored asset rows of ticker.
func (s *Service) Erase(ticker string) (int64, error) {
	ticker = utils.NormalizeTicker(ticker)
	deleted, err := s.repo.Erase(ticker, domain.SeriesTypeAsset)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.invalidateResults()
		s.log.Info().Str("ticker", ticker).Int64("rows", deleted).Msg("Erased ticker")
	}
	return deleted, nil
}

// ListTickers returns the stored asset tickers.
func (s *Service) ListTickers() ([]string, error) {
	return s.repo.ListTickers(domain.SeriesTypeAsset)
}

// ListTickerInfo returns per-ticker row counts and date ranges.
func (s *Service) ListTickerInfo() ([]TickerInfo, error) {
	return s.repo.ListTickerInfo(domain.SeriesTypeAsset)
}

// RemainingRequests reports the upstream daily budget.
func (s *Service) RemainingRequests() int {
	return s.client.GetRemainingRequests()
}

func (s *Service) invalidateResults() {
	if s.results == nil {
		return
	}
	cleared, err := s.results.Clear()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to clear cached backtest results")
		return
	}
	if cleared > 0 {
		s.log.Debug().Int64("entries", cleared).Msg("Cleared cached backtest results")
	}
}
