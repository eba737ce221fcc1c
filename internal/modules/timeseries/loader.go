package timeseries

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/harvest/internal/domain"
)

// Loader reads stored series and merges inflation into the asset rows.
type Loader struct {
	repo *Repository
}

// NewLoader creates a loader over repo.
func NewLoader(repo *Repository) *Loader {
	return &Loader{repo: repo}
}

// FetchSeries implements domain.SeriesProvider.
func (l *Loader) FetchSeries(ctx context.Context, ticker string) ([]domain.RawObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assets, err := l.repo.LoadAsset(ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", ticker, err)
	}
	if len(assets) == 0 {
		return nil, &domain.DataUnavailableError{Ticker: ticker, Reason: "no rows stored"}
	}

	cpi, err := l.repo.LoadCPI()
	if err != nil {
		return nil, fmt.Errorf("failed to load CPI: %w", err)
	}
	if len(cpi) == 0 {
		return nil, &domain.DataUnavailableError{Ticker: ticker, Reason: "no CPI data stored"}
	}

	return MergeInflation(assets, cpi), nil
}

// MergeInflation attaches to every asset row the inflation point nearest in
// time. Ties go to the earlier point. Both inputs must be sorted by date;
// with an empty cpi slice the inflation index stays zero.
func MergeInflation(assets []AssetRow, cpi []domain.InflationPoint) []domain.RawObservation {
	out := make([]domain.RawObservation, len(assets))

	j := 0
	for i, row := range assets {
		obs := domain.RawObservation{
			Timestamp:      row.Date,
			RawPrice:       row.AdjustedClose,
			DividendAmount: row.DividendAmount,
			ClosePrice:     row.Close,
		}

		if len(cpi) > 0 {
			// advance while the next point is strictly closer
			for j+1 < len(cpi) && absDuration(cpi[j+1].Timestamp.Sub(row.Date)) < absDuration(cpi[j].Timestamp.Sub(row.Date)) {
				j++
			}
			obs.RawInflationIndex = cpi[j].Value
		}

		out[i] = obs
	}

	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
