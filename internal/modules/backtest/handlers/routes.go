package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the request/response backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/backtest", func(r chi.Router) {
		r.Post("/", h.HandleBacktest)
		r.Post("/variants", h.HandleVariants)
		r.Get("/metrics", h.HandleMetrics)
		r.Get("/chart/{metric}", func(w http.ResponseWriter, r *http.Request) {
			metric := chi.URLParam(r, "metric")
			h.HandleChart(w, r, metric)
		})
	})
}

// RegisterStreamRoutes registers the websocket route, kept out of the request timeout
func (h *Handler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/backtest/stream", h.HandleStream)
}
