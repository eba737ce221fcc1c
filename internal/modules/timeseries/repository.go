package timeseries

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/harvest/internal/database"
	"github.com/aristath/harvest/internal/domain"
	"github.com/aristath/harvest/internal/utils"
	"github.com/rs/zerolog"
)

// Repository handles the timeseries table in the harvest database.
// CPI rows are stored under domain.CPITicker with the value in adjusted_close.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new time-series repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "timeseries").Logger(),
	}
}

const upsertQuery = `
	INSERT OR REPLACE INTO timeseries (
		ticker, date, open, high, low, close, adjusted_close, volume, dividend_amount, type
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// UpsertAssetRows stores rows for ticker, replacing existing months.
func (r *Repository) UpsertAssetRows(ticker string, rows []AssetRow) error {
	done := utils.MeasureDBQuery("upsert_asset_rows", r.log)
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(upsertQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.Exec(
				ticker,
				row.Date.Format(domain.DateLayout),
				row.Open,
				row.High,
				row.Low,
				row.Close,
				row.AdjustedClose,
				row.Volume,
				row.DividendAmount,
				string(domain.SeriesTypeAsset),
			); err != nil {
				return fmt.Errorf("failed to upsert %s %s: %w", ticker, row.Date.Format(domain.DateLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	done(int64(len(rows)))

	r.log.Debug().Str("ticker", ticker).Int("rows", len(rows)).Msg("Upserted asset rows")
	return nil
}

// UpsertCPIRows stores inflation points, replacing existing months.
func (r *Repository) UpsertCPIRows(points []domain.InflationPoint) error {
	done := utils.MeasureDBQuery("upsert_cpi_rows", r.log)
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(upsertQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			if _, err := stmt.Exec(
				domain.CPITicker,
				p.Timestamp.Format(domain.DateLayout),
				nil, nil, nil, nil,
				p.Value,
				nil, nil,
				string(domain.SeriesTypeCPI),
			); err != nil {
				return fmt.Errorf("failed to upsert CPI %s: %w", p.Timestamp.Format(domain.DateLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	done(int64(len(points)))

	r.log.Debug().Int("rows", len(points)).Msg("Upserted CPI rows")
	return nil
}

// LoadAsset returns the stored rows of ticker ordered by date.
func (r *Repository) LoadAsset(ticker string) ([]AssetRow, error) {
	rows, err := r.db.Query(`
		SELECT date, open, high, low, close, adjusted_close, volume, dividend_amount
		FROM timeseries
		WHERE ticker = ? AND type = ?
		ORDER BY date
	`, ticker, string(domain.SeriesTypeAsset))
	if err != nil {
		return nil, fmt.Errorf("failed to query asset rows: %w", err)
	}
	defer rows.Close()

	var result []AssetRow
	for rows.Next() {
		var (
			dateStr                                    string
			open, high, low, closePrice, adjusted, div sql.NullFloat64
			volume                                     sql.NullInt64
		)
		if err := rows.Scan(&dateStr, &open, &high, &low, &closePrice, &adjusted, &volume, &div); err != nil {
			return nil, fmt.Errorf("failed to scan asset row: %w", err)
		}
		date, err := parseStoredDate(dateStr)
		if err != nil {
			return nil, err
		}
		result = append(result, AssetRow{
			Date:           date,
			Open:           open.Float64,
			High:           high.Float64,
			Low:            low.Float64,
			Close:          closePrice.Float64,
			AdjustedClose:  adjusted.Float64,
			Volume:         volume.Int64,
			DividendAmount: div.Float64,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset rows: %w", err)
	}

	return result, nil
}

// LoadCPI returns the stored inflation points ordered by date.
func (r *Repository) LoadCPI() ([]domain.InflationPoint, error) {
	rows, err := r.db.Query(`
		SELECT date, adjusted_close
		FROM timeseries
		WHERE ticker = ? AND type = ?
		ORDER BY date
	`, domain.CPITicker, string(domain.SeriesTypeCPI))
	if err != nil {
		return nil, fmt.Errorf("failed to query CPI rows: %w", err)
	}
	defer rows.Close()

	var result []domain.InflationPoint
	for rows.Next() {
		var dateStr string
		var value sql.NullFloat64
		if err := rows.Scan(&dateStr, &value); err != nil {
			return nil, fmt.Errorf("failed to scan CPI row: %w", err)
		}
		if !value.Valid {
			continue
		}
		date, err := parseStoredDate(dateStr)
		if err != nil {
			return nil, err
		}
		result = append(result, domain.InflationPoint{Timestamp: date, Value: value.Float64})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating CPI rows: %w", err)
	}

	return result, nil
}

// Erase deletes every row of ticker with the given type.
func (r *Repository) Erase(ticker string, seriesType domain.SeriesType) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM timeseries WHERE ticker = ? AND type = ?`, ticker, string(seriesType))
	if err != nil {
		return 0, fmt.Errorf("failed to erase %s: %w", ticker, err)
	}
	return result.RowsAffected()
}

// ListTickers returns the distinct tickers of a type, sorted.
func (r *Repository) ListTickers(seriesType domain.SeriesType) ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT ticker FROM timeseries WHERE type = ? ORDER BY ticker`, string(seriesType))
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	defer rows.Close()

	tickers := []string{}
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, ticker)
	}

	return tickers, rows.Err()
}

// ListTickerInfo returns row counts and date ranges per ticker of a type.
func (r *Repository) ListTickerInfo(seriesType domain.SeriesType) ([]TickerInfo, error) {
	rows, err := r.db.Query(`
		SELECT ticker, COUNT(*), MIN(date), MAX(date)
		FROM timeseries
		WHERE type = ?
		GROUP BY ticker
		ORDER BY ticker
	`, string(seriesType))
	if err != nil {
		return nil, fmt.Errorf("failed to list ticker info: %w", err)
	}
	defer rows.Close()

	infos := []TickerInfo{}
	for rows.Next() {
		var info TickerInfo
		var first, last string
		if err := rows.Scan(&info.Ticker, &info.Rows, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan ticker info: %w", err)
		}
		if info.First, err = parseStoredDate(first); err != nil {
			return nil, err
		}
		if info.Last, err = parseStoredDate(last); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// Count returns how many rows are stored for ticker with the given type.
func (r *Repository) Count(ticker string, seriesType domain.SeriesType) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM timeseries WHERE ticker = ? AND type = ?`,
		ticker, string(seriesType)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s rows: %w", ticker, err)
	}
	return count, nil
}

// TableExists reports whether the timeseries table has been created.
func (r *Repository) TableExists() (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'timeseries'`).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check timeseries table: %w", err)
	}
	return count > 0, nil
}

func parseStoredDate(s string) (time.Time, error) {
	if t, err := time.Parse(domain.DateLayout, s); err == nil {
		return t, nil
	}
	// tolerate timestamps written by other tools
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return t.UTC(), nil
}
