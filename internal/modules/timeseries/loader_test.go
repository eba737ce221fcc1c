package timeseries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/harvest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMergeInflation(t *testing.T) {
	cpi := []domain.InflationPoint{
		{Timestamp: day(2000, 1, 1), Value: 100},
		{Timestamp: day(2000, 1, 31), Value: 101},
		{Timestamp: day(2000, 3, 1), Value: 102},
	}

	tests := []struct {
		name     string
		date     time.Time
		expected float64
	}{
		{"before first point", day(1999, 11, 30), 100},
		{"exact match", day(2000, 1, 31), 101},
		{"tie goes to earlier point", day(2000, 1, 16), 100},
		{"nearest later point", day(2000, 2, 29), 102},
		{"after last point", day(2000, 6, 30), 102},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets := []AssetRow{{Date: tt.date, AdjustedClose: 10, Close: 11, DividendAmount: 0.2}}
			out := MergeInflation(assets, cpi)
			require.Len(t, out, 1)
			assert.Equal(t, tt.expected, out[0].RawInflationIndex)
			assert.Equal(t, tt.date, out[0].Timestamp)
			assert.Equal(t, 10.0, out[0].RawPrice)
			assert.Equal(t, 11.0, out[0].ClosePrice)
			assert.Equal(t, 0.2, out[0].DividendAmount)
		})
	}
}

func TestMergeInflation_Sequence(t *testing.T) {
	cpi := []domain.InflationPoint{
		{Timestamp: day(2000, 1, 1), Value: 100},
		{Timestamp: day(2000, 2, 1), Value: 101},
		{Timestamp: day(2000, 3, 1), Value: 102},
	}
	assets := []AssetRow{
		{Date: day(2000, 1, 31)},
		{Date: day(2000, 2, 29)},
		{Date: day(2000, 3, 31)},
	}

	out := MergeInflation(assets, cpi)
	require.Len(t, out, 3)
	assert.Equal(t, 101.0, out[0].RawInflationIndex)
	assert.Equal(t, 102.0, out[1].RawInflationIndex)
	assert.Equal(t, 102.0, out[2].RawInflationIndex)
}

func TestMergeInflation_NoCPI(t *testing.T) {
	out := MergeInflation([]AssetRow{{Date: day(2000, 1, 31), AdjustedClose: 5}}, nil)
	require.Len(t, out, 1)
	assert.Zero(t, out[0].RawInflationIndex)
}

func TestLoader_FetchSeries(t *testing.T) {
	repo := newTestRepository(t)
	loader := NewLoader(repo)
	ctx := context.Background()

	var unavailable *domain.DataUnavailableError

	_, err := loader.FetchSeries(ctx, "VTI")
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "no rows stored", unavailable.Reason)

	require.NoError(t, repo.UpsertAssetRows("VTI", assetRows(100, 101)))

	_, err = loader.FetchSeries(ctx, "VTI")
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "no CPI data stored", unavailable.Reason)

	require.NoError(t, repo.UpsertCPIRows([]domain.InflationPoint{
		{Timestamp: day(2000, 1, 1), Value: 168.8},
		{Timestamp: day(2000, 2, 1), Value: 169.1},
	}))

	series, err := loader.FetchSeries(ctx, "VTI")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 169.1, series[0].RawInflationIndex)
	assert.Equal(t, 169.1, series[1].RawInflationIndex)
	assert.Equal(t, 100.0, series[0].RawPrice)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = loader.FetchSeries(cancelled, "VTI")
	assert.ErrorIs(t, err, context.Canceled)
}
