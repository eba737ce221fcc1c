// Package handlers provides HTTP handlers for backtest operations.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/harvest/internal/modules/backtest"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// invalidBatchMessage is returned when a batch body is not {"portfolios": [...]}
const invalidBatchMessage = "Invalid input. Expected a JSON object with a 'portfolios' field containing an array of portfolio parameters."

const maxBodyBytes = 1 << 20

// Handler handles backtest HTTP requests
type Handler struct {
	service *backtest.Service
	log     zerolog.Logger
}

// NewHandler creates a new backtest handler
func NewHandler(service *backtest.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "backtest").Logger(),
	}
}

// VariantsRequest is the body of POST /api/backtest/variants
type VariantsRequest struct {
	Base     json.RawMessage   `json:"base"`
	Variants []json.RawMessage `json:"variants"`
}

// HandleBacktest handles POST /api/backtest
func (h *Handler) HandleBacktest(w http.ResponseWriter, r *http.Request) {
	raw, err := readPortfolios(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.Debug().Err(err).Msg("Rejected backtest request")
		h.writeError(w, http.StatusBadRequest, invalidBatchMessage)
		return
	}

	entries := buildEntries(raw)
	runID := uuid.New().String()

	start := time.Now()
	results := h.service.RunBatch(r.Context(), entries, nil)
	h.log.Info().
		Str("run_id", runID).
		Int("portfolios", len(entries)).
		Int("failed", countFailed(results)).
		Dur("duration", time.Since(start)).
		Msg("Backtest batch completed")

	h.writeResults(w, runID, results)
}

// HandleVariants handles POST /api/backtest/variants
func (h *Handler) HandleVariants(w http.ResponseWriter, r *http.Request) {
	var req VariantsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	baseOverrides, err := decodeOverrides(req.Base)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	baseConfig, err := backtest.DefaultConfig().With(baseOverrides)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	base := backtest.NewPortfolio(baseConfig)

	entries := make([]backtest.BatchEntry, 0, len(req.Variants)+1)
	entries = append(entries, backtest.BatchEntry{Portfolio: base})
	for i, rawVariant := range req.Variants {
		entries = append(entries, deriveEntry(base, i, rawVariant))
	}

	runID := uuid.New().String()
	results := h.service.RunBatch(r.Context(), entries, nil)
	h.log.Info().
		Str("run_id", runID).
		Str("ticker", baseConfig.Ticker).
		Int("variants", len(req.Variants)).
		Int("failed", countFailed(results)).
		Msg("Backtest variants completed")

	h.writeResults(w, runID, results)
}

// HandleChart handles GET /api/backtest/chart/{metric}
// Every ticker query parameter adds a portfolio; the other parameters apply to all of them.
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request, metric string) {
	if _, err := backtest.LookupChartMetric(metric); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := entriesFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := h.service.RunBatch(r.Context(), entries, nil)
	if failed := countFailed(results); failed == len(results) {
		first := results[0]
		h.writeJSON(w, statusForKind(first.ErrorKind), map[string]interface{}{
			"error":      first.Error,
			"error_kind": first.ErrorKind,
		})
		return
	}

	png, err := backtest.RenderChart(metric, results)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, backtest.ErrNotEnoughData) {
			status = http.StatusUnprocessableEntity
		}
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("metric", metric).Msg("Failed to render chart")
		}
		h.writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HandleMetrics handles GET /api/backtest/metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": backtest.ChartMetricKeys(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// readPortfolios decodes {"portfolios": [...]} and returns the raw entries.
func readPortfolios(body io.Reader) ([]json.RawMessage, error) {
	var envelope struct {
		Portfolios json.RawMessage `json:"portfolios"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(envelope.Portfolios)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("portfolios must be an array")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// decodeOverrides parses one portfolio object. Unknown fields are rejected.
func decodeOverrides(raw json.RawMessage) (backtest.Overrides, error) {
	var o backtest.Overrides
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return o, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return o, &backtest.ConfigError{Field: "portfolio", Reason: err.Error()}
	}
	return o, nil
}

// buildEntries turns raw portfolio objects into batch entries. An entry that
// cannot be decoded or validated is kept as a failed entry in its position.
func buildEntries(raw []json.RawMessage) []backtest.BatchEntry {
	entries := make([]backtest.BatchEntry, len(raw))
	for i, item := range raw {
		o, err := decodeOverrides(item)
		if err != nil {
			cfg := backtest.DefaultConfig()
			cfg.Name = fmt.Sprintf("portfolio %d", i+1)
			entries[i] = backtest.BatchEntry{Portfolio: backtest.NewPortfolio(cfg), Err: err}
			continue
		}
		cfg, err := backtest.DefaultConfig().With(o)
		entries[i] = backtest.BatchEntry{Portfolio: backtest.NewPortfolio(cfg), Err: err}
	}
	return entries
}

// deriveEntry applies one variant to base. A variant that cannot be decoded is
// reported under its 1-based position.
func deriveEntry(base *backtest.Portfolio, index int, raw json.RawMessage) backtest.BatchEntry {
	o, err := decodeOverrides(raw)
	if err != nil {
		cfg := base.Config()
		cfg.Name = fmt.Sprintf("variant %d", index+1)
		return backtest.BatchEntry{Portfolio: backtest.NewPortfolio(cfg), Err: err}
	}
	derived, err := base.Derive(o)
	if err != nil {
		cfg, _ := base.Config().With(o)
		return backtest.BatchEntry{Portfolio: backtest.NewPortfolio(cfg), Err: err}
	}
	return backtest.BatchEntry{Portfolio: derived}
}

func entriesFromQuery(r *http.Request) ([]backtest.BatchEntry, error) {
	q := r.URL.Query()

	var shared backtest.Overrides
	floatParams := []struct {
		key  string
		dest **float64
	}{
		{"initial_investment", &shared.InitialInvestment},
		{"dividend_tax", &shared.DividendTax},
		{"capital_gains_tax", &shared.CapitalGainsTax},
		{"yearly_sale_percentage", &shared.YearlySalePercentage},
	}
	for _, p := range floatParams {
		if v := q.Get(p.key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, &backtest.ConfigError{Field: p.key, Reason: fmt.Sprintf("%q is not a number", v)}
			}
			*p.dest = &f
		}
	}
	if v, ok := q["start_date"]; ok {
		shared.StartDate = &v[0]
	}

	tickers := q["ticker"]
	if len(tickers) == 0 {
		tickers = []string{backtest.DefaultTicker}
	}

	entries := make([]backtest.BatchEntry, 0, len(tickers))
	for _, ticker := range tickers {
		o := shared
		o.Ticker = &ticker
		cfg, err := backtest.DefaultConfig().With(o)
		if err != nil {
			return nil, err
		}
		entries = append(entries, backtest.BatchEntry{Portfolio: backtest.NewPortfolio(cfg)})
	}
	return entries, nil
}

func countFailed(results []backtest.Result) int {
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	return failed
}

// statusForKind maps an error kind to the HTTP status of single-portfolio endpoints.
func statusForKind(kind string) int {
	switch kind {
	case backtest.ErrorKindDataUnavailable:
		return http.StatusNotFound
	case backtest.ErrorKindInvalidConfig:
		return http.StatusBadRequest
	case backtest.ErrorKindEmptySeries, backtest.ErrorKindInvalidBaseValue, backtest.ErrorKindZeroPrice:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeResults(w http.ResponseWriter, runID string, results []backtest.Result) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"metadata": map[string]interface{}{
			"run_id":    runID,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeJSON encodes data before writing the header, so an encoding failure
// becomes a 500 instead of a truncated 200.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}
