package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"signalstreamv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the signal journal.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// PredictionRow is one journaled prediction plus the price at broadcast time.
type PredictionRow struct {
	Prediction model.Prediction `json:"prediction"`
	Price      float64          `json:"price"`
}

// ReadPredictions returns journaled predictions for a symbol after afterTS
// (unix seconds), oldest first, capped at limit.
func (r *Reader) ReadPredictions(symbol string, afterTS int64, limit int) ([]PredictionRow, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Query(`
		SELECT symbol, ts, signal, bullish_prob, bearish_prob, neutral_prob, confidence, risk_score, price
		FROM predictions
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
		LIMIT ?
	`, symbol, afterTS, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query predictions: %w", err)
	}
	defer rows.Close()

	var out []PredictionRow
	for rows.Next() {
		var row PredictionRow
		var tsUnix int64
		p := &row.Prediction
		if err := rows.Scan(&p.Symbol, &tsUnix, &p.Signal,
			&p.BullishProb, &p.BearishProb, &p.NeutralProb,
			&p.Confidence, &p.RiskScore, &row.Price); err != nil {
			return nil, fmt.Errorf("sqlite scan predictions: %w", err)
		}
		p.TS = time.Unix(tsUnix, 0).UTC()
		out = append(out, row)
	}
	return out, rows.Err()
}

// ReadLatestSentiment returns the most recently journaled sentiment
// snapshot, or nil when the journal has none.
func (r *Reader) ReadLatestSentiment() (*model.SentimentSnapshot, error) {
	var tsUnix int64
	var snap model.SentimentSnapshot
	var components string
	err := r.db.QueryRow(`
		SELECT ts, score, trend, components FROM sentiment
		ORDER BY ts DESC
		LIMIT 1
	`).Scan(&tsUnix, &snap.OverallScore, &snap.Trend, &components)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read sentiment: %w", err)
	}

	snap.TS = time.Unix(tsUnix, 0).UTC()
	if err := json.Unmarshal([]byte(components), &snap.Components); err != nil {
		return nil, fmt.Errorf("unmarshal sentiment components: %w", err)
	}
	return &snap, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
