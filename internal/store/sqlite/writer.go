// Package sqlite journals broadcast updates to a local SQLite database so
// signal history survives restarts and can be inspected offline.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"signalstreamv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB

	// OnCommit receives the row count and duration of each committed batch.
	// Optional.
	OnCommit func(rows int, d time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS predictions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol       TEXT    NOT NULL,
			ts           INTEGER NOT NULL,
			signal       TEXT    NOT NULL,
			bullish_prob REAL    NOT NULL,
			bearish_prob REAL    NOT NULL,
			neutral_prob REAL    NOT NULL,
			confidence   REAL    NOT NULL,
			risk_score   REAL    NOT NULL,
			price        REAL    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_predictions_symbol_ts ON predictions (symbol, ts);

		CREATE TABLE IF NOT EXISTS sentiment (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			ts         INTEGER NOT NULL,
			score      REAL    NOT NULL,
			trend      TEXT    NOT NULL,
			components TEXT    NOT NULL
		);
	`)
	return err
}

// Run reads broadcast updates from updateCh and journals them in batched
// transactions. Flushes every batchSize updates OR every flushDelay,
// whichever comes first. Blocks until ctx is cancelled or updateCh is closed.
func (w *Writer) Run(ctx context.Context, updateCh <-chan model.Update) {
	batch := make([]model.Update, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			elapsed := time.Since(start)
			log.Printf("[sqlite] committed %d updates in %v", len(batch), elapsed)
			if w.OnCommit != nil {
				w.OnCommit(len(batch), elapsed)
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case u, ok := <-updateCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, u)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch journals a batch of updates in a single transaction.
func (w *Writer) insertBatch(updates []model.Update) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	predStmt, err := tx.Prepare(`
		INSERT INTO predictions (symbol, ts, signal, bullish_prob, bearish_prob, neutral_prob, confidence, risk_score, price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer predStmt.Close()

	sentStmt, err := tx.Prepare(`
		INSERT INTO sentiment (ts, score, trend, components)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer sentStmt.Close()

	for i := range updates {
		u := &updates[i]
		switch u.Kind {
		case model.UpdateSignal:
			if u.Prediction == nil {
				continue
			}
			p := u.Prediction
			if _, err := predStmt.Exec(p.Symbol, p.TS.Unix(), p.Signal,
				p.BullishProb, p.BearishProb, p.NeutralProb,
				p.Confidence, p.RiskScore, u.CurrentPrice); err != nil {
				tx.Rollback()
				return err
			}
		case model.UpdateSentiment:
			if u.Sentiment == nil {
				continue
			}
			s := u.Sentiment
			components, _ := json.Marshal(s.Components)
			if _, err := sentStmt.Exec(s.TS.Unix(), s.OverallScore, s.Trend, string(components)); err != nil {
				tx.Rollback()
				return err
			}
		}
	}

	return tx.Commit()
}

// LastPredictionTS returns the most recent journaled prediction timestamp
// for a symbol, or 0 when the journal has none.
func (w *Writer) LastPredictionTS(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM predictions WHERE symbol = ?`, symbol,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
