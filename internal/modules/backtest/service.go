package backtest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/harvest/internal/domain"
	"github.com/aristath/harvest/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ResultCache stores computed tables between requests.
type ResultCache interface {
	Load(key string, dest interface{}) (bool, error)
	Save(key string, value interface{}, ttl time.Duration) error
}

// cachedRun is the cached form of a completed run
type cachedRun struct {
	Monthly []MonthState `json:"monthly"`
	Yearly  []YearRecord `json:"yearly"`
}

// BatchEntry is one portfolio of a batch, or the reason it could not be built.
type BatchEntry struct {
	Portfolio *Portfolio
	Err       error
}

// Service runs portfolios against a series provider, optionally caching results.
type Service struct {
	provider    domain.SeriesProvider
	cache       ResultCache
	cacheTTL    time.Duration
	concurrency int
	log         zerolog.Logger
}

// NewService creates a backtest service. cache may be nil.
func NewService(provider domain.SeriesProvider, cache ResultCache, cacheTTL time.Duration, concurrency int, log zerolog.Logger) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		provider:    provider,
		cache:       cache,
		cacheTTL:    cacheTTL,
		concurrency: concurrency,
		log:         log.With().Str("service", "backtest").Logger(),
	}
}

// Run executes one portfolio, serving it from the cache when possible.
func (s *Service) Run(ctx context.Context, p *Portfolio) error {
	defer utils.OperationTimer("backtest_run", s.log)()

	key := CacheKey(p.config)
	if s.cache != nil {
		var cached cachedRun
		ok, err := s.cache.Load(key, &cached)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", p.config.Ticker).Msg("Failed to read cached backtest, recomputing")
		} else if ok {
			p.monthly, p.yearly = cached.Monthly, utcYears(cached.Yearly)
			for i := range p.monthly {
				p.monthly[i].Timestamp = p.monthly[i].Timestamp.UTC()
			}
			if p.yearly == nil {
				p.yearly = []YearRecord{}
			}
			return nil
		}
	}

	if err := p.Run(ctx, s.provider); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Save(key, cachedRun{Monthly: p.monthly, Yearly: p.yearly}, s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("ticker", p.config.Ticker).Msg("Failed to cache backtest")
		}
	}

	return nil
}

// RunBatch executes every entry concurrently (bounded by the configured
// concurrency) and returns one Result per entry in input order. A failing entry
// yields an error result and never affects its siblings. onResult, if set, is
// called once per entry as soon as it completes; calls are serialized.
func (s *Service) RunBatch(ctx context.Context, entries []BatchEntry, onResult func(index int, result Result)) []Result {
	results := make([]Result, len(entries))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			res := s.runEntry(ctx, entry)
			results[i] = res
			if onResult != nil {
				mu.Lock()
				onResult(i, res)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) runEntry(ctx context.Context, entry BatchEntry) (res Result) {
	cfg := entry.Portfolio.Config()
	if entry.Err != nil {
		return ErrorResult(cfg, entry.Err)
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("ticker", cfg.Ticker).Msg("Backtest panicked")
			res = ErrorResult(cfg, fmt.Errorf("backtest panicked: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return ErrorResult(cfg, err)
	}

	if err := s.Run(ctx, entry.Portfolio); err != nil {
		s.log.Warn().Err(err).Str("ticker", cfg.Ticker).Str("name", cfg.DisplayName()).Msg("Backtest failed")
		return ErrorResult(cfg, err)
	}

	return NewResult(entry.Portfolio)
}

// CacheKey fingerprints every parameter that affects the computed tables.
// The cache is cleared when series data changes, so the series is not part of the key.
func CacheKey(cfg PortfolioConfig) string {
	start := ""
	if cfg.StartDate != nil {
		start = cfg.StartDate.Format(time.RFC3339)
	}
	raw := fmt.Sprintf("%s|%s|%v|%v|%v|%v",
		cfg.Ticker, start, cfg.InitialInvestment, cfg.DividendTaxRate, cfg.CapitalGainsTaxRate, cfg.YearlySalePercentage)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func utcYears(years []YearRecord) []YearRecord {
	for i := range years {
		years[i].Timestamp = years[i].Timestamp.UTC()
	}
	return years
}
