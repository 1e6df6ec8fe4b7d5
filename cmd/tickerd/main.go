package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tickerfeed/internal/cache"
	"tickerfeed/internal/config"
	"tickerfeed/internal/httpx"
	"tickerfeed/internal/quote"
	"tickerfeed/internal/quote/finnhub"
	"tickerfeed/internal/quote/ratelimit"
	"tickerfeed/internal/quote/yahoo"
	"tickerfeed/internal/scheduler"
	"tickerfeed/internal/ticker"
)

type tickerResponse struct {
	Entries map[string]ticker.Direction `json:"entries"`
}

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if len(cfg.Portfolio) == 0 {
		log.Fatal("no symbols configured; set portfolio in config.json or TICKER_SYMBOLS")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	c := cache.New(cfg.QuoteCacheFile, cfg.RefreshInterval(), buildSource(cfg), logger)
	sched := scheduler.New(c, cfg.APIKey, ticker.Symbols(cfg.Portfolio), logger)
	sched.Start()
	defer sched.Stop()

	requestTimeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/ticker", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		data, err := ticker.Data(ctx, c, cfg.APIKey, cfg.Portfolio)
		if err != nil {
			logger.Error().Err(err).Msg("ticker read failed")
			http.Error(w, "quote source unavailable", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tickerResponse{Entries: data})
	})
	mux.HandleFunc("/api/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		if err := ticker.RefreshNow(ctx, c, cfg.APIKey, cfg.Portfolio); err != nil {
			logger.Error().Err(err).Msg("forced refresh failed")
			http.Error(w, "refresh failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("tickerd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// unwind through the shutdown path so the scheduler stops
			logger.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildSource(cfg config.Config) quote.Source {
	var src quote.Source
	switch cfg.Source {
	case "yahoo":
		src = yahoo.New()
	default:
		hc := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
		src = finnhub.New(finnhub.Config{}, hc)
	}
	// Prefer token bucket with burst if RPM is set, otherwise use min-interval
	if cfg.MaxRequestsPerMinute > 0 {
		rate := float64(cfg.MaxRequestsPerMinute) / 60.0
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		src = &ratelimit.TokenBucketSource{S: src, TB: ratelimit.NewTokenBucket(rate, burst)}
	} else if cfg.MinRequestIntervalSec > 0 {
		interval := time.Duration(cfg.MinRequestIntervalSec) * time.Second
		src = &ratelimit.MinInterval{S: src, Interval: interval}
	}
	return src
}
