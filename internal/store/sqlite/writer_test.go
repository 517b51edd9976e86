package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"signalstreamv1/internal/model"
)

func newTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "signals.db")
	w, err := New(WriterConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, dbPath
}

func signalUpdate(symbol string, ts time.Time, price float64) model.Update {
	return model.Update{
		Kind:         model.UpdateSignal,
		Symbol:       symbol,
		CurrentPrice: price,
		Prediction: &model.Prediction{
			Symbol:      symbol,
			BullishProb: 55,
			BearishProb: 20,
			NeutralProb: 25,
			Confidence:  55,
			RiskScore:   45,
			Signal:      model.SignalHold,
			TS:          ts,
		},
		TS: ts,
	}
}

func TestWriter_JournalsAndReadsBack(t *testing.T) {
	w, dbPath := newTestWriter(t)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	updates := []model.Update{
		signalUpdate("BTCUSDT", base, 100),
		signalUpdate("BTCUSDT", base.Add(time.Second), 101),
		signalUpdate("ETHUSDT", base, 50),
		{
			Kind: model.UpdateSentiment,
			Sentiment: &model.SentimentSnapshot{
				Components:   map[string]float64{"fear_greed": 70, "social": 60, "news": 50},
				OverallScore: 61,
				Trend:        "greed",
				TS:           base,
			},
			TS: base,
		},
	}
	if err := w.insertBatch(updates); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	last, err := w.LastPredictionTS("BTCUSDT")
	if err != nil {
		t.Fatalf("last prediction ts: %v", err)
	}
	if last != base.Add(time.Second).Unix() {
		t.Errorf("last ts = %d, want %d", last, base.Add(time.Second).Unix())
	}

	r, err := NewReader(dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	rows, err := r.ReadPredictions("BTCUSDT", 0, 10)
	if err != nil {
		t.Fatalf("read predictions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d BTCUSDT rows, want 2", len(rows))
	}
	if rows[0].Price != 100 || rows[1].Price != 101 {
		t.Errorf("rows not in ts order: %+v", rows)
	}
	if rows[0].Prediction.Signal != model.SignalHold || rows[0].Prediction.BullishProb != 55 {
		t.Errorf("prediction fields lost in round trip: %+v", rows[0].Prediction)
	}

	snap, err := r.ReadLatestSentiment()
	if err != nil {
		t.Fatalf("read sentiment: %v", err)
	}
	if snap == nil || snap.OverallScore != 61 || snap.Trend != "greed" {
		t.Errorf("unexpected sentiment: %+v", snap)
	}
	if snap.Components["fear_greed"] != 70 {
		t.Errorf("components lost: %v", snap.Components)
	}
}

func TestWriter_RunFlushesOnClose(t *testing.T) {
	w, dbPath := newTestWriter(t)

	var committedRows int
	w.OnCommit = func(rows int, d time.Duration) { committedRows += rows }

	ch := make(chan model.Update, 8)
	ch <- signalUpdate("BTCUSDT", time.Now().UTC(), 99)
	ch <- signalUpdate("BTCUSDT", time.Now().UTC().Add(time.Second), 100)
	close(ch)

	// Run must drain and flush the partial batch before returning.
	w.Run(context.Background(), ch)

	if committedRows != 2 {
		t.Errorf("commit hook saw %d rows, want 2", committedRows)
	}

	r, err := NewReader(dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	rows, err := r.ReadPredictions("BTCUSDT", 0, 10)
	if err != nil {
		t.Fatalf("read predictions: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows after Run, want 2", len(rows))
	}
}

func TestReader_EmptyJournal(t *testing.T) {
	w, dbPath := newTestWriter(t)

	last, err := w.LastPredictionTS("BTCUSDT")
	if err != nil {
		t.Fatalf("last prediction ts: %v", err)
	}
	if last != 0 {
		t.Errorf("empty journal last ts = %d, want 0", last)
	}

	r, err := NewReader(dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	snap, err := r.ReadLatestSentiment()
	if err != nil {
		t.Fatalf("read sentiment: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil sentiment, got %+v", snap)
	}
}
