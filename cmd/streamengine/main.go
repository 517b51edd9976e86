package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"signalstreamv1/config"
	"signalstreamv1/internal/bus"
	"signalstreamv1/internal/engine"
	"signalstreamv1/internal/feed"
	"signalstreamv1/internal/gateway"
	"signalstreamv1/internal/history"
	"signalstreamv1/internal/logger"
	"signalstreamv1/internal/metrics"
	"signalstreamv1/internal/model"
	"signalstreamv1/internal/notification"
	"signalstreamv1/internal/ratelimit"
	"signalstreamv1/internal/sentiment"
	redisstore "signalstreamv1/internal/store/redis"
	sqlitestore "signalstreamv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[streamengine] starting...")

	// ---- Load config from env / .env ----
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[streamengine] %v", err)
	}
	logger.Init("streamengine", logger.ParseLevel(cfg.LogLevel))

	start := time.Now()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetSymbols(cfg.Symbols)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite journal (off hot path) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[streamengine] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	sqlWriter.OnCommit = func(rows int, d time.Duration) {
		prom.SQLiteCommitDur.Observe(d.Seconds())
	}
	health.SetSQLiteOK(true)
	log.Println("[streamengine] sqlite journal ready")

	journal, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[streamengine] sqlite reader init failed: %v", err)
	}
	defer journal.Close()

	for _, sym := range cfg.Symbols {
		if ts, err := sqlWriter.LastPredictionTS(sym); err == nil && ts > 0 {
			log.Printf("[streamengine] journal resumes %s after %s", sym, time.Unix(ts, 0).UTC().Format(time.RFC3339))
		}
	}

	// ---- Redis writer (optional) ----
	var redisWriter *redisstore.Writer
	if cfg.RedisAddr != "" {
		redisWriter, err = redisstore.New(redisstore.WriterConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("[streamengine] WARNING: redis init failed: %v (continuing without redis)", err)
			redisWriter = nil
		} else {
			redisWriter.OnPublish = func(d time.Duration) {
				prom.RedisPublishDur.Observe(d.Seconds())
			}
		}
	}
	health.SetRedisConnected(redisWriter != nil)

	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Market feed ----
	limiter := ratelimit.New(cfg.RateLimitCeiling, cfg.RateLimitWindow)
	marketFeed := feed.New(feed.Config{
		RESTBaseURL:    cfg.RESTBaseURL,
		WSBaseURL:      cfg.WSBaseURL,
		Symbols:        cfg.Symbols,
		ReconnectDelay: cfg.ReconnectDelay,
	}, limiter)
	marketFeed.OnReconnect = func() {
		prom.WSReconnects.Inc()
		health.SetFeedConnected(true)
	}
	marketFeed.OnRateLimited = func() { prom.RateLimitDenied.Inc() }
	marketFeed.OnMalformed = func() { prom.MalformedMsgs.Inc() }

	// ---- Sentiment aggregator ----
	seed := cfg.MockSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	agg := sentiment.New(
		sentiment.NewFearGreedSource(cfg.FearGreedURL),
		sentiment.NewMockSource("social", 55, 30).Seeded(seed),
		sentiment.NewMockSource("news", 50, 20).Seeded(seed+1),
	)

	// ---- Notifications ----
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}

	// ---- Broadcast engine ----
	hist := history.New(cfg.HistoryCapacity)
	eng := engine.New(engine.Config{
		Symbols:           cfg.Symbols,
		PriceInterval:     cfg.PriceInterval,
		SentimentInterval: cfg.SentimentInterval,
		SeedInterval:      cfg.SeedInterval,
		SeedLimit:         cfg.SeedLimit,
	}, marketFeed, hist, agg)
	eng.Notifier = notification.NewMultiNotifier(backends...)
	eng.OnTick = func(tick model.Tick) {
		prom.TicksTotal.Inc()
		health.SetLastTickTime(tick.TS)
	}
	eng.OnBroadcast = func(u model.Update) {
		prom.BroadcastsTotal.Inc()
		switch u.Kind {
		case model.UpdateSignal:
			if u.Prediction != nil {
				prom.SignalsTotal.WithLabelValues(u.Prediction.Signal).Inc()
			}
		case model.UpdateSentiment:
			prom.SentimentRefreshes.Inc()
		}
	}
	eng.OnDrop = func() { prom.DroppedTicks.Inc() }
	eng.OnLag = func(d time.Duration) { prom.BroadcastLag.Set(d.Seconds()) }
	eng.OnCompute = func(d time.Duration) { prom.IndicatorComputeDur.Observe(d.Seconds()) }

	// ---- Fan-out: engine -> gateway / redis / sqlite ----
	fanout := bus.New(1024)
	fanout.OnDrop = func(subscriberIdx int) {
		prom.FanoutDropsTotal.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}

	gatewayCh := fanout.Subscribe()
	sqliteCh := fanout.Subscribe()
	var redisCh <-chan model.Update
	if redisWriter != nil {
		redisCh = fanout.Subscribe()
	}

	go fanout.Run(ctx, eng.Updates())
	go sqlWriter.Run(ctx, sqliteCh)
	if redisWriter != nil {
		go redisWriter.Run(ctx, redisCh)
	}

	// Channel saturation gauge
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for i, s := range fanout.ChannelStats() {
					if s.Cap > 0 {
						pct := float64(s.Len) / float64(s.Cap) * 100
						prom.ChannelSaturationPct.WithLabelValues("fanout_" + strconv.Itoa(i)).Set(pct)
					}
				}
				prom.RateLimitRemaining.Set(float64(limiter.Remaining()))
				if redisWriter != nil {
					prom.RedisCircuitBreakerState.Set(float64(redisWriter.BreakerState()))
				}
			}
		}
	}()

	// ---- WS gateway + REST API ----
	hub := gateway.NewHub()
	hub.Broadcaster.OnLatency = func(ms float64) { prom.E2ELatency.Observe(ms / 1000) }

	// Warm the latest-payload cache from Redis so /api/v1/latest has data
	// right after a restart.
	if redisWriter != nil {
		channels := []string{"sentiment"}
		for _, sym := range cfg.Symbols {
			channels = append(channels, "signal:"+sym)
		}
		for _, ch := range channels {
			if data, err := redisWriter.LatestUpdate(ctx, ch); err == nil && data != nil {
				hub.Prime(ch, data)
			}
		}
	}

	go hub.Run(ctx, gatewayCh)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prom.WSClients.Set(float64(hub.ClientCount()))
			}
		}
	}()

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, eng, agg, hist, journal, start)
	apiSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("[streamengine] api listening on %s", cfg.ListenAddr)
		if err := apiSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[streamengine] api server error: %v", err)
		}
	}()

	// ---- Start monitoring ----
	if err := eng.StartMonitoring(ctx); err != nil {
		log.Fatalf("[streamengine] start monitoring: %v", err)
	}
	health.SetMonitoring(true)
	health.SetFeedConnected(true)

	log.Printf("[streamengine] monitoring %d symbols: %v", len(cfg.Symbols), cfg.Symbols)
	log.Printf("[streamengine] broadcast cadence: prices every %v, sentiment every %v", cfg.PriceInterval, cfg.SentimentInterval)
	log.Println("[streamengine] pipeline ready: [feed] -> [engine] -> [fanout] -> [ws/redis/sqlite]")

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[streamengine] shutdown signal received, cleaning up...")

	eng.StopMonitoring()
	health.SetMonitoring(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	if redisWriter != nil {
		redisWriter.Close()
	}

	log.Println("[streamengine] shutdown complete.")
}
