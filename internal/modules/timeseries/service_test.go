package timeseries

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/harvest/internal/clients/alphavantage"
	"github.com/aristath/harvest/internal/clients/alphavantage/alphavantagetest"
	"github.com/aristath/harvest/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCache struct {
	mu      sync.Mutex
	cleared int
}

func (c *countingCache) Clear() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared++
	return 1, nil
}

func (c *countingCache) Cleared() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleared
}

func newTestService(t *testing.T, autoFetch bool) (*Service, *alphavantagetest.Client, *countingCache) {
	t.Helper()
	client := alphavantagetest.NewClient().
		SetMonthly("VTI", 36, 100).
		SetMonthly("SCHD", 24, 50).
		SetCPI(36, 170)
	cache := &countingCache{}
	return NewService(newTestRepository(t), client, cache, autoFetch, zerolog.Nop()), client, cache
}

func TestService_FetchSeries_AutoFetch(t *testing.T) {
	svc, client, cache := newTestService(t, true)
	ctx := context.Background()

	series, err := svc.FetchSeries(ctx, "VTI")
	require.NoError(t, err)
	require.Len(t, series, 36)
	for _, obs := range series {
		assert.Greater(t, obs.RawInflationIndex, 0.0)
	}
	assert.Equal(t, 1, client.Calls("VTI"))
	assert.Equal(t, 1, client.Calls("CPI"))
	assert.Equal(t, 2, cache.Cleared())

	// stored now, no further upstream calls
	_, err = svc.FetchSeries(ctx, "VTI")
	require.NoError(t, err)
	assert.Equal(t, 1, client.Calls("VTI"))
	assert.Equal(t, 1, client.Calls("CPI"))

	// CPI is only fetched once for the second ticker
	_, err = svc.FetchSeries(ctx, "SCHD")
	require.NoError(t, err)
	assert.Equal(t, 1, client.Calls("SCHD"))
	assert.Equal(t, 1, client.Calls("CPI"))
}

func TestService_FetchSeries_NoAutoFetch(t *testing.T) {
	svc, client, _ := newTestService(t, false)

	_, err := svc.FetchSeries(context.Background(), "VTI")
	var unavailable *domain.DataUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "VTI", unavailable.Ticker)
	assert.Zero(t, client.Calls("VTI"))
	assert.Zero(t, client.Calls("CPI"))
}

func TestService_FetchSeries_UnknownSymbol(t *testing.T) {
	svc, client, _ := newTestService(t, true)

	_, err := svc.FetchSeries(context.Background(), "NOPE")
	var unavailable *domain.DataUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "unknown symbol", unavailable.Reason)

	var notFound alphavantage.ErrSymbolNotFound
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, 1, client.Calls("NOPE"))
}

func TestService_FetchSeries_UpstreamFailure(t *testing.T) {
	svc, client, _ := newTestService(t, true)
	client.SetError("VTI", alphavantage.ErrRateLimitExceeded{})

	_, err := svc.FetchSeries(context.Background(), "VTI")
	require.Error(t, err)

	var limited alphavantage.ErrRateLimitExceeded
	assert.True(t, errors.As(err, &limited))

	var unavailable *domain.DataUnavailableError
	assert.False(t, errors.As(err, &unavailable))
}

func TestService_EnsureInitialized(t *testing.T) {
	svc, client, _ := newTestService(t, false)
	ctx := context.Background()

	err := svc.EnsureInitialized(ctx, []string{"VTI", "MISSING"})
	require.Error(t, err)
	var unavailable *domain.DataUnavailableError
	assert.True(t, errors.As(err, &unavailable))

	tickers, err := svc.ListTickers()
	require.NoError(t, err)
	assert.Equal(t, []string{"VTI"}, tickers)

	// stored series are not fetched again
	err = svc.EnsureInitialized(ctx, []string{"VTI"})
	require.NoError(t, err)
	assert.Equal(t, 1, client.Calls("VTI"))
	assert.Equal(t, 1, client.Calls("CPI"))
}

func TestService_EnsureInitialized_CPIFailure(t *testing.T) {
	svc, client, _ := newTestService(t, false)
	client.SetCPIError(errors.New("upstream down"))

	err := svc.EnsureInitialized(context.Background(), []string{"VTI"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	// the seed ticker is still attempted
	assert.Equal(t, 1, client.Calls("VTI"))
}

func TestService_RefreshAsset(t *testing.T) {
	svc, client, cache := newTestService(t, false)
	ctx := context.Background()

	rows, err := svc.RefreshAsset(ctx, " vti ")
	require.NoError(t, err)
	assert.Equal(t, 36, rows)
	assert.Equal(t, 1, client.Calls("VTI"))
	assert.Equal(t, 1, cache.Cleared())

	_, err = svc.RefreshAsset(ctx, "  ")
	assert.Error(t, err)
}

func TestService_RefreshAll(t *testing.T) {
	svc, client, _ := newTestService(t, false)
	ctx := context.Background()

	_, err := svc.RefreshAsset(ctx, "VTI")
	require.NoError(t, err)
	_, err = svc.RefreshAsset(ctx, "SCHD")
	require.NoError(t, err)

	require.NoError(t, svc.RefreshAll(ctx))
	assert.Equal(t, 2, client.Calls("VTI"))
	assert.Equal(t, 2, client.Calls("SCHD"))
	assert.Equal(t, 1, client.Calls("CPI"))

	client.SetError("SCHD", errors.New("boom"))
	err = svc.RefreshAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 3, client.Calls("VTI"))
}

func TestService_Erase(t *testing.T) {
	svc, _, cache := newTestService(t, false)
	ctx := context.Background()

	_, err := svc.RefreshAsset(ctx, "VTI")
	require.NoError(t, err)
	require.Equal(t, 1, cache.Cleared())

	deleted, err := svc.Erase("vti")
	require.NoError(t, err)
	assert.Equal(t, int64(36), deleted)
	assert.Equal(t, 2, cache.Cleared())

	deleted, err = svc.Erase("VTI")
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Equal(t, 2, cache.Cleared(), "nothing erased, nothing cleared")

	infos, err := svc.ListTickerInfo()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestService_RemainingRequests(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	assert.Equal(t, alphavantage.DefaultDailyLimit, svc.RemainingRequests())

	_, err := svc.RefreshCPI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alphavantage.DefaultDailyLimit-1, svc.RemainingRequests())
}

func TestService_NilResultsCache(t *testing.T) {
	client := alphavantagetest.NewClient().SetMonthly("VTI", 12, 100)
	svc := NewService(newTestRepository(t), client, nil, false, zerolog.Nop())

	rows, err := svc.RefreshAsset(context.Background(), "VTI")
	require.NoError(t, err)
	assert.Equal(t, 12, rows)
}

func TestRefreshJob(t *testing.T) {
	svc, client, _ := newTestService(t, false)
	_, err := svc.RefreshAsset(context.Background(), "VTI")
	require.NoError(t, err)

	job := NewRefreshJob(svc, zerolog.Nop())
	assert.Equal(t, "refresh_series", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 2, client.Calls("VTI"))
	assert.Equal(t, 1, client.Calls("CPI"))
}
