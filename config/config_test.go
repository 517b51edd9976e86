package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Symbols) == 0 {
		t.Fatal("expected default symbols")
	}
	if cfg.RateLimitCeiling != 100 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("rate limit defaults: %d per %v", cfg.RateLimitCeiling, cfg.RateLimitWindow)
	}
	if cfg.PriceInterval != time.Second {
		t.Errorf("price interval default = %v", cfg.PriceInterval)
	}
	if cfg.HistoryCapacity != 200 {
		t.Errorf("history capacity default = %d", cfg.HistoryCapacity)
	}
}

func TestLoad_SymbolNormalization(t *testing.T) {
	t.Setenv("SYMBOLS", " btcusdt , ,ETHusdt")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "BTCUSDT" || cfg.Symbols[1] != "ETHUSDT" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
}

func TestLoad_EmptySymbolsRejected(t *testing.T) {
	t.Setenv("SYMBOLS", " , ")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for empty symbol list")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RECONNECT_DELAY", "500ms")
	t.Setenv("SENTIMENT_INTERVAL", "30s")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("reconnect delay = %v", cfg.ReconnectDelay)
	}
	if cfg.SentimentInterval != 30*time.Second {
		t.Errorf("sentiment interval = %v", cfg.SentimentInterval)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("empty REDIS_ADDR should disable redis, got %q", cfg.RedisAddr)
	}
}
