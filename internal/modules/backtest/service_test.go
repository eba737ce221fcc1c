package backtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aristath/harvest/internal/clientdata"
	"github.com/aristath/harvest/internal/domain"
	testingpkg "github.com/aristath/harvest/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(t *testing.T, o Overrides) BatchEntry {
	t.Helper()
	p, err := NewPortfolio(DefaultConfig()).Derive(o)
	if err != nil {
		cfg, _ := DefaultConfig().With(o)
		return BatchEntry{Portfolio: NewPortfolio(cfg), Err: err}
	}
	return BatchEntry{Portfolio: p}
}

func TestService_RunBatch_MixedResults(t *testing.T) {
	provider := testingpkg.NewMockSeriesProvider().
		SetSeries("VTI", testingpkg.GrowthSeries(60, 100, 0.006, 0.005)).
		SetSeries("SCHD", testingpkg.DividendSeries(36, 40, 0.003)).
		SetSeries("GAP", testingpkg.PriceSeries(10, 0, 10))

	svc := NewService(provider, nil, 0, 2, zerolog.Nop())

	entries := []BatchEntry{
		newEntry(t, Overrides{}),
		newEntry(t, Overrides{Ticker: ptr("MISSING")}),
		newEntry(t, Overrides{Ticker: ptr("SCHD"), Name: ptr("income")}),
		newEntry(t, Overrides{Ticker: ptr("GAP")}),
		newEntry(t, Overrides{DividendTax: ptr(3.0), Name: ptr("bad tax")}),
	}

	var mu sync.Mutex
	var seen []int
	results := svc.RunBatch(context.Background(), entries, func(index int, result Result) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, index)
	})

	require.Len(t, results, len(entries))
	sort.Ints(seen)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)

	assert.Equal(t, "VTI", results[0].Name)
	assert.Empty(t, results[0].Error)
	assert.Len(t, results[0].YearlyResults, 5)

	assert.Equal(t, "MISSING", results[1].Ticker)
	assert.Equal(t, ErrorKindDataUnavailable, results[1].ErrorKind)
	assert.Nil(t, results[1].MonthlyResults)

	assert.Equal(t, "income", results[2].Name)
	assert.Empty(t, results[2].Error)
	assert.Len(t, results[2].MonthlyResults, 36)

	assert.Equal(t, ErrorKindZeroPrice, results[3].ErrorKind)

	assert.Equal(t, "bad tax", results[4].Name)
	assert.Equal(t, ErrorKindInvalidConfig, results[4].ErrorKind)
	assert.Equal(t, 1, provider.Calls("VTI"))
}

func TestService_RunBatch_Empty(t *testing.T) {
	svc := NewService(testingpkg.NewMockSeriesProvider(), nil, 0, 4, zerolog.Nop())
	results := svc.RunBatch(context.Background(), nil, nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestService_RunBatch_Cancelled(t *testing.T) {
	provider := testingpkg.NewMockSeriesProvider().
		SetSeries("VTI", testingpkg.FlatSeries(24, 100))
	svc := NewService(provider, nil, 0, 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := svc.RunBatch(ctx, []BatchEntry{newEntry(t, Overrides{}), newEntry(t, Overrides{})}, nil)
	for _, r := range results {
		assert.Equal(t, context.Canceled.Error(), r.Error)
		assert.Equal(t, ErrorKindInternal, r.ErrorKind)
	}
	assert.Equal(t, 0, provider.Calls("VTI"))
}

func TestService_RunBatch_RecoversPanics(t *testing.T) {
	provider := domain.SeriesProviderFunc(func(ctx context.Context, ticker string) ([]domain.RawObservation, error) {
		if ticker == "BOOM" {
			panic("provider exploded")
		}
		return testingpkg.FlatSeries(12, 50), nil
	})
	svc := NewService(provider, nil, 0, 2, zerolog.Nop())

	results := svc.RunBatch(context.Background(), []BatchEntry{
		newEntry(t, Overrides{Ticker: ptr("BOOM")}),
		newEntry(t, Overrides{}),
	}, nil)

	assert.Contains(t, results[0].Error, "provider exploded")
	assert.Equal(t, ErrorKindInternal, results[0].ErrorKind)
	assert.Empty(t, results[1].Error)
	assert.Len(t, results[1].YearlyResults, 1)
}

func TestService_Run_UsesCache(t *testing.T) {
	db, _ := testingpkg.NewTestDB(t, "cache")
	cache := clientdata.NewRepository(db.Conn()).Table(clientdata.TableBacktestResults)

	provider := testingpkg.NewMockSeriesProvider().
		SetSeries("VTI", testingpkg.GrowthSeries(40, 100, 0.008, 0.006))
	svc := NewService(provider, cache, clientdata.TTLBacktestResult, 1, zerolog.Nop())

	first := NewPortfolio(DefaultConfig())
	require.NoError(t, svc.Run(context.Background(), first))
	assert.Equal(t, 1, provider.Calls("VTI"))

	second := NewPortfolio(DefaultConfig())
	require.NoError(t, svc.Run(context.Background(), second))
	assert.Equal(t, 1, provider.Calls("VTI"), "second run should be served from the cache")

	require.Len(t, second.Monthly(), len(first.Monthly()))
	require.Len(t, second.Yearly(), len(first.Yearly()))
	for i, m := range first.Monthly() {
		got := second.Monthly()[i]
		assert.True(t, m.Timestamp.Equal(got.Timestamp))
		assert.Equal(t, time.UTC, got.Timestamp.Location())
		assert.Equal(t, m.Shares, got.Shares)
		assert.Equal(t, m.InflAdjNetIncome, got.InflAdjNetIncome)
		assert.Equal(t, m.InflAdjPortfolioGrowth, got.InflAdjPortfolioGrowth)
	}
	for i, y := range first.Yearly() {
		got := second.Yearly()[i]
		assert.True(t, y.Timestamp.Equal(got.Timestamp))
		assert.Equal(t, y.MonthlyIncome, got.MonthlyIncome)
		assert.Equal(t, y.TaxRatio, got.TaxRatio)
	}

	// a different parameter set misses the cache
	other, err := second.Derive(Overrides{YearlySalePercentage: ptr(0.03)})
	require.NoError(t, err)
	require.NoError(t, svc.Run(context.Background(), other))
	assert.Equal(t, 2, provider.Calls("VTI"))
}

func TestService_Run_FailuresAreNotCached(t *testing.T) {
	db, _ := testingpkg.NewTestDB(t, "cache")
	cache := clientdata.NewRepository(db.Conn()).Table(clientdata.TableBacktestResults)

	calls := 0
	provider := domain.SeriesProviderFunc(func(ctx context.Context, ticker string) ([]domain.RawObservation, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("rate limited")
		}
		return testingpkg.FlatSeries(12, 10), nil
	})
	svc := NewService(provider, cache, time.Hour, 1, zerolog.Nop())

	require.Error(t, svc.Run(context.Background(), NewPortfolio(DefaultConfig())))

	p := NewPortfolio(DefaultConfig())
	require.NoError(t, svc.Run(context.Background(), p))
	assert.Equal(t, 2, calls)
	assert.Len(t, p.Yearly(), 1)
}

func TestCacheKey(t *testing.T) {
	base := DefaultConfig()
	named := base
	named.Name = "something else"
	assert.Equal(t, CacheKey(base), CacheKey(named))

	keys := map[string]bool{CacheKey(base): true}
	variants := []Overrides{
		{Ticker: ptr("SCHD")},
		{StartDate: ptr("2010-01-01")},
		{InitialInvestment: ptr(5000.0)},
		{DividendTax: ptr(0.1)},
		{CapitalGainsTax: ptr(0.1)},
		{YearlySalePercentage: ptr(0.05)},
	}
	for _, o := range variants {
		cfg, err := base.With(o)
		require.NoError(t, err)
		key := CacheKey(cfg)
		assert.Len(t, key, 64)
		assert.False(t, keys[key], "duplicate key for %+v", o)
		keys[key] = true
	}
}
