package backtest

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	// ErrUnknownMetric is returned for a chart metric that does not exist
	ErrUnknownMetric = errors.New("unknown chart metric")
	// ErrNotEnoughData is returned when no series has at least two points
	ErrNotEnoughData = errors.New("not enough data to chart")
)

// ChartMetric is one chartable column of the monthly or yearly table.
type ChartMetric struct {
	Key     string
	Title   string
	monthly func(MonthState) float64
	yearly  func(YearRecord) float64
}

// chartMetrics are the panels of the results dashboard.
var chartMetrics = []ChartMetric{
	{Key: "price", Title: "Price (normalized, monthly)", monthly: func(m MonthState) float64 { return m.Price }},
	{Key: "dividend_yield", Title: "Dividend yield % (yearly)", yearly: func(y YearRecord) float64 { return y.DividendYield * 100 }},
	{Key: "cpi", Title: "CPI (yearly)", yearly: func(y YearRecord) float64 { return y.InflationIndex }},
	{Key: "portfolio_value", Title: "Inflation adjusted portfolio value (monthly)", monthly: func(m MonthState) float64 { return m.InflAdjPortfolioValue }},
	{Key: "monthly_income", Title: "Inflation adjusted monthly income (yearly)", yearly: func(y YearRecord) float64 { return y.MonthlyIncome }},
	{Key: "tax_ratio", Title: "Tax / gross income ratio (yearly)", yearly: func(y YearRecord) float64 { return float64(y.TaxRatio) }},
}

var seriesColors = []string{"2563eb", "dc2626", "16a34a", "d97706", "7c3aed", "0891b2", "db2777", "4b5563"}

// ChartMetricKeys lists the supported metrics in display order.
func ChartMetricKeys() []string {
	keys := make([]string, len(chartMetrics))
	for i, m := range chartMetrics {
		keys[i] = m.Key
	}
	return keys
}

// LookupChartMetric finds a metric by key.
func LookupChartMetric(key string) (ChartMetric, error) {
	for _, m := range chartMetrics {
		if m.Key == key {
			return m, nil
		}
	}
	return ChartMetric{}, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownMetric, key, ChartMetricKeys())
}

// RenderChart draws one metric for every successful result as a PNG line chart.
func RenderChart(metricKey string, results []Result) ([]byte, error) {
	metric, err := LookupChartMetric(metricKey)
	if err != nil {
		return nil, err
	}

	var series []chart.Series
	for _, r := range results {
		if r.Error != "" {
			continue
		}
		xs, ys := metric.points(r)
		if len(xs) < 2 {
			continue
		}
		series = append(series, chart.TimeSeries{
			Name: r.Name,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex(seriesColors[len(series)%len(seriesColors)]),
				StrokeWidth: 2,
			},
			XValues: xs,
			YValues: ys,
		})
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNotEnoughData, metric.Key)
	}

	graph := chart.Chart{
		Title:  metric.Title,
		Width:  1000,
		Height: 450,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("2006")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return formatAxisValue(f)
				}
				return ""
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

// points extracts the finite points of the metric.
func (m ChartMetric) points(r Result) ([]time.Time, []float64) {
	var xs []time.Time
	var ys []float64

	add := func(t time.Time, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		xs = append(xs, t)
		ys = append(ys, v)
	}

	if m.monthly != nil {
		for _, month := range r.MonthlyResults {
			add(month.Timestamp, m.monthly(month))
		}
	} else {
		for _, year := range r.YearlyResults {
			add(year.Timestamp, m.yearly(year))
		}
	}

	return xs, ys
}

func formatAxisValue(f float64) string {
	abs := math.Abs(f)
	switch {
	case abs >= 1e6:
		return fmt.Sprintf("%.1fM", f/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.0fk", f/1e3)
	case abs >= 10:
		return fmt.Sprintf("%.0f", f)
	default:
		return fmt.Sprintf("%.2f", f)
	}
}
