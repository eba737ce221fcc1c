package timeseries

import (
	"testing"
	"time"

	"github.com/aristath/harvest/internal/domain"
	testingpkg "github.com/aristath/harvest/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, _ := testingpkg.NewTestDB(t, "harvest")
	return NewRepository(db.Conn(), zerolog.Nop())
}

func assetRows(prices ...float64) []AssetRow {
	rows := make([]AssetRow, len(prices))
	for i, ts := range testingpkg.MonthEnds(testingpkg.FixtureStart, len(prices)) {
		rows[i] = AssetRow{
			Date:           ts,
			Open:           prices[i] - 1,
			High:           prices[i] + 1,
			Low:            prices[i] - 2,
			Close:          prices[i] + 0.5,
			AdjustedClose:  prices[i],
			Volume:         int64(1000 * (i + 1)),
			DividendAmount: 0.1,
		}
	}
	return rows
}

func TestRepository_UpsertAndLoadAsset(t *testing.T) {
	repo := newTestRepository(t)

	rows := assetRows(100, 101, 102)
	require.NoError(t, repo.UpsertAssetRows("VTI", rows))

	loaded, err := repo.LoadAsset("VTI")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, rows, loaded)

	// replacing a month keeps one row per date
	rows[1].AdjustedClose = 150
	require.NoError(t, repo.UpsertAssetRows("VTI", rows[1:2]))

	loaded, err = repo.LoadAsset("VTI")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, 150.0, loaded[1].AdjustedClose)
}

func TestRepository_LoadAsset_Unknown(t *testing.T) {
	repo := newTestRepository(t)

	loaded, err := repo.LoadAsset("NOPE")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRepository_CPI(t *testing.T) {
	repo := newTestRepository(t)

	points := []domain.InflationPoint{
		{Timestamp: time.Date(2000, 2, 1, 0, 0, 0, 0, time.UTC), Value: 169.1},
		{Timestamp: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), Value: 168.8},
	}
	require.NoError(t, repo.UpsertCPIRows(points))

	loaded, err := repo.LoadCPI()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, points[1], loaded[0], "ordered by date")
	assert.Equal(t, points[0], loaded[1])

	// CPI rows never show up as assets
	tickers, err := repo.ListTickers(domain.SeriesTypeAsset)
	require.NoError(t, err)
	assert.Empty(t, tickers)

	count, err := repo.Count(domain.CPITicker, domain.SeriesTypeCPI)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRepository_ListAndErase(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.UpsertAssetRows("VTI", assetRows(100, 101, 102)))
	require.NoError(t, repo.UpsertAssetRows("SCHD", assetRows(50, 51)))

	tickers, err := repo.ListTickers(domain.SeriesTypeAsset)
	require.NoError(t, err)
	assert.Equal(t, []string{"SCHD", "VTI"}, tickers)

	infos, err := repo.ListTickerInfo(domain.SeriesTypeAsset)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "SCHD", infos[0].Ticker)
	assert.Equal(t, 2, infos[0].Rows)
	assert.Equal(t, testingpkg.FixtureStart, infos[0].First)
	assert.Equal(t, time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC), infos[0].Last)
	assert.Equal(t, 3, infos[1].Rows)

	deleted, err := repo.Erase("VTI", domain.SeriesTypeAsset)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	deleted, err = repo.Erase("VTI", domain.SeriesTypeAsset)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	tickers, err = repo.ListTickers(domain.SeriesTypeAsset)
	require.NoError(t, err)
	assert.Equal(t, []string{"SCHD"}, tickers)
}

func TestRepository_TableExists(t *testing.T) {
	repo := newTestRepository(t)

	exists, err := repo.TableExists()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestParseStoredDate(t *testing.T) {
	d, err := parseStoredDate("2020-03-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC), d)

	d, err = parseStoredDate("2020-03-31T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC), d)

	_, err = parseStoredDate("31/03/2020")
	assert.Error(t, err)
}
