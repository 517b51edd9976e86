// Package notification delivers signal alerts to external channels
// (Telegram, generic webhooks) and to the process log.
package notification

import (
	"context"
	"fmt"
	"log"

	"signalstreamv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol,omitempty"`
	Signal  string     `json:"signal,omitempty"`
	Price   float64    `json:"price,omitempty"`
}

// SignalAlert builds an alert for a signal transition. BUY transitions are
// informational, SELL transitions are warnings.
func SignalAlert(pred model.Prediction, price float64) Alert {
	level := AlertInfo
	if pred.Signal == model.SignalSell {
		level = AlertWarning
	}
	return Alert{
		Level:  level,
		Title:  fmt.Sprintf("%s signal: %s", pred.Symbol, pred.Signal),
		Message: fmt.Sprintf("%s at %.2f, bullish %.0f%% / bearish %.0f%%, confidence %.0f%%",
			pred.Symbol, price, pred.BullishProb, pred.BearishProb, pred.Confidence),
		Symbol: pred.Symbol,
		Signal: pred.Signal,
		Price:  price,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them (useful for development
// and as the default when no webhook is configured).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// MultiNotifier fans a single alert out to several backends. Delivery
// failures are logged, not returned, so one dead backend cannot block the
// others.
type MultiNotifier struct {
	backends []Notifier
}

// NewMultiNotifier creates a notifier that forwards to every backend.
func NewMultiNotifier(backends ...Notifier) *MultiNotifier {
	return &MultiNotifier{backends: backends}
}

func (m *MultiNotifier) Send(ctx context.Context, alert Alert) error {
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend error: %v", err)
		}
	}
	return nil
}
