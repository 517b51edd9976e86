// Package config loads application configuration from the environment,
// with optional .env file support for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Tracked symbols, comma-separated trading pairs
	Symbols []string `envconfig:"SYMBOLS" default:"BTCUSDT,ETHUSDT,SOLUSDT"`

	// Market feed
	RESTBaseURL    string        `envconfig:"REST_BASE_URL" default:"https://api.binance.com"`
	WSBaseURL      string        `envconfig:"WS_BASE_URL" default:"wss://stream.binance.com:9443"`
	ReconnectDelay time.Duration `envconfig:"RECONNECT_DELAY" default:"3s"`
	SeedInterval   string        `envconfig:"SEED_INTERVAL" default:"1m"`
	SeedLimit      int           `envconfig:"SEED_LIMIT" default:"200"`

	// REST rate limiting (fixed window)
	RateLimitCeiling int           `envconfig:"RATE_LIMIT_CEILING" default:"100"`
	RateLimitWindow  time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// Broadcast cadence
	PriceInterval     time.Duration `envconfig:"PRICE_INTERVAL" default:"1s"`
	SentimentInterval time.Duration `envconfig:"SENTIMENT_INTERVAL" default:"5m"`

	// Rolling price window per symbol
	HistoryCapacity int `envconfig:"HISTORY_CAPACITY" default:"200"`

	// Sentiment sources
	FearGreedURL string `envconfig:"FEAR_GREED_URL" default:"https://api.alternative.me/fng/"`
	MockSeed     int64  `envconfig:"SENTIMENT_MOCK_SEED" default:"0"`

	// Infrastructure (Redis and SQLite are optional: empty disables them)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/signals.db"`

	// HTTP surfaces
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	// Notifications (empty disables the backend)
	WebhookURL       string `envconfig:"WEBHOOK_URL" default:""`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID" default:""`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// .env is a local development convenience; absence is not an error
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cleaned := cfg.Symbols[:0]
	for _, s := range cfg.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	cfg.Symbols = cleaned
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("config: SYMBOLS must name at least one trading pair")
	}

	return &cfg, nil
}
