package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"signalstreamv1/internal/model"
	"signalstreamv1/internal/store/sqlite"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// PredictionSource exposes the engine state the REST API reads from.
type PredictionSource interface {
	LatestPrediction(symbol string) (model.Prediction, bool)
	Predictions() []model.Prediction
	IsMonitoring() bool
}

// SentimentSource exposes the latest aggregated sentiment snapshot.
type SentimentSource interface {
	Latest() (model.SentimentSnapshot, bool)
}

// HistorySource exposes the rolling price window per symbol.
type HistorySource interface {
	Get(symbol string) []float64
}

// SignalJournal exposes the persisted prediction history. The rolling price
// window only covers the current session; the journal is what survives a
// restart.
type SignalJournal interface {
	ReadPredictions(symbol string, afterTS int64, limit int) ([]sqlite.PredictionRow, error)
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RegisterRoutes registers all HTTP routes on the provided mux. journal may
// be nil when no SQLite journal is available.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, preds PredictionSource, sent SentimentSource, hist HistorySource, journal SignalJournal, processStart time.Time) {
	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		lastTS := r.URL.Query().Get("last_ts")
		hub.HandleWSRequest(conn, lastTS)
	})

	// REST: latest prediction for one symbol
	mux.HandleFunc("/api/v1/prediction", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
		if symbol == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol is required"})
			return
		}
		pred, ok := preds.LatestPrediction(symbol)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no prediction for " + symbol})
			return
		}
		writeJSON(w, http.StatusOK, pred)
	})

	// REST: latest prediction for every tracked symbol
	mux.HandleFunc("/api/v1/predictions", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"monitoring":  preds.IsMonitoring(),
			"predictions": preds.Predictions(),
			"ts":          time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// REST: latest aggregated sentiment
	mux.HandleFunc("/api/v1/sentiment", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		snap, ok := sent.Latest()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sentiment not yet available"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	// REST: rolling price history for a symbol
	mux.HandleFunc("/api/v1/history", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
		if symbol == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol is required"})
			return
		}
		prices := hist.Get(symbol)
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(prices) {
				prices = prices[len(prices)-l:]
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"symbol": symbol,
			"prices": prices,
			"count":  len(prices),
		})
	})

	// REST: journaled signal history for a symbol, oldest first.
	// GET /api/v1/signals?symbol=BTCUSDT&after=1717243200&limit=100
	mux.HandleFunc("/api/v1/signals", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if journal == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "signal journal not available"})
			return
		}
		symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
		if symbol == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol is required"})
			return
		}
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		rows, err := journal.ReadPredictions(symbol, after, limit)
		if err != nil {
			log.Printf("[gateway] journal read error for %s: %v", symbol, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal read failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"symbol":  symbol,
			"signals": rows,
			"count":   len(rows),
		})
	})

	// REST: latest payload per broadcast channel
	mux.HandleFunc("/api/v1/latest", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, hub.GetLatestAll())
	})

	// REST: replay buffered envelopes for client gap backfill.
	// GET /api/v1/missed?channel=signal:BTCUSDT&from=10&to=20
	mux.HandleFunc("/api/v1/missed", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channel is required"})
			return
		}
		from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
		to, err := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
		if err != nil || to <= 0 {
			to = hub.GetChannelSeq(channel)
		}

		envelopes := hub.GetReplayRange(channel, from, to)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"channel":`))
		cb, _ := json.Marshal(channel)
		w.Write(cb)
		w.Write([]byte(`,"envelopes":[`))
		for i, env := range envelopes {
			if i > 0 {
				w.Write([]byte{','})
			}
			w.Write(env)
		}
		w.Write([]byte(`],"current_seq":` + strconv.FormatInt(hub.GetChannelSeq(channel), 10) + `}`))
	})

	// Health endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		p50, p95, p99 := hub.Latency.Percentiles()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"monitoring": preds.IsMonitoring(),
			"ws_clients": hub.ClientCount(),
			"uptime_sec": int64(time.Since(processStart).Seconds()),
			"latency_ms": map[string]float64{"p50": p50, "p95": p95, "p99": p99},
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
