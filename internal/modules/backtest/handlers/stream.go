package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/harvest/internal/modules/backtest"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

const (
	streamReadTimeout  = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// StreamMessage is one server-to-client message of the backtest stream
type StreamMessage struct {
	Type   string           `json:"type"` // "result", "error" or "done"
	RunID  string           `json:"run_id,omitempty"`
	Index  *int             `json:"index,omitempty"`
	Total  int              `json:"total,omitempty"`
	Result *backtest.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// HandleStream handles GET /api/backtest/stream.
// The client sends one batch request; each portfolio result is pushed as soon
// as it completes, followed by a "done" message.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxBodyBytes)

	runID := uuid.New().String()
	log := h.log.With().Str("run_id", runID).Logger()
	ctx := r.Context()

	readCtx, cancel := context.WithTimeout(ctx, streamReadTimeout)
	msgType, data, err := conn.Read(readCtx)
	cancel()
	if err != nil {
		log.Debug().Err(err).Msg("Stream closed before a request was received")
		conn.Close(websocket.StatusPolicyViolation, "expected a backtest request")
		return
	}
	if msgType != websocket.MessageText {
		conn.Close(websocket.StatusUnsupportedData, "expected a text message")
		return
	}

	raw, err := readPortfolios(bytes.NewReader(data))
	if err != nil {
		_ = h.send(ctx, conn, StreamMessage{Type: "error", RunID: runID, Error: invalidBatchMessage})
		conn.Close(websocket.StatusUnsupportedData, "invalid request")
		return
	}

	entries := buildEntries(raw)
	log.Info().Int("portfolios", len(entries)).Msg("Streaming backtest batch")

	h.service.RunBatch(ctx, entries, func(index int, result backtest.Result) {
		i := index
		if err := h.send(ctx, conn, StreamMessage{
			Type:   "result",
			RunID:  runID,
			Index:  &i,
			Total:  len(entries),
			Result: &result,
		}); err != nil {
			log.Debug().Err(err).Int("index", index).Msg("Failed to push result")
		}
	})

	if err := h.send(ctx, conn, StreamMessage{Type: "done", RunID: runID, Total: len(entries)}); err != nil {
		log.Debug().Err(err).Msg("Failed to send done message")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
