package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tickerfeed/internal/cache"
	"tickerfeed/internal/config"
	"tickerfeed/internal/httpx"
	"tickerfeed/internal/quote"
	"tickerfeed/internal/quote/finnhub"
	"tickerfeed/internal/quote/ratelimit"
	"tickerfeed/internal/quote/yahoo"
	"tickerfeed/internal/ticker"
)

func main() {
	var symbolsCSV string
	var formatStr string
	var configPath string
	var asJSON bool
	var refresh bool
	var timeout int

	flag.StringVar(&symbolsCSV, "symbols", getenv("TICKER_SYMBOLS", ""), "comma-separated symbols (overrides the configured portfolio)")
	flag.StringVar(&formatStr, "format", config.DefaultFormat, "format string used with -symbols")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.BoolVar(&asJSON, "json", false, "print raw quotes as JSON instead of rendered lines")
	flag.BoolVar(&refresh, "refresh", false, "force a cache refresh before reading")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "request timeout seconds")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	portfolio := cfg.Portfolio
	if symbolsCSV != "" {
		portfolio = map[string]string{}
		for _, s := range splitCSV(symbolsCSV) {
			portfolio[s] = formatStr
		}
	}
	if len(portfolio) == 0 {
		log.Fatal("no symbols configured; set portfolio in config.json or pass -symbols")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	c := cache.New(cfg.QuoteCacheFile, cfg.RefreshInterval(), buildSource(cfg), logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if refresh {
		if err := ticker.RefreshNow(ctx, c, cfg.APIKey, portfolio); err != nil {
			log.Fatalf("refresh: %v", err)
		}
	}

	if asJSON {
		quotes, err := c.GetOrRefresh(ctx, cfg.APIKey, ticker.Symbols(portfolio))
		if err != nil {
			log.Fatalf("quotes: %v", err)
		}
		b, _ := json.MarshalIndent(quotes, "", "  ")
		fmt.Println(string(b))
		return
	}

	data, err := ticker.Data(ctx, c, cfg.APIKey, portfolio)
	if err != nil {
		log.Fatalf("ticker: %v", err)
	}
	lines := make([]string, 0, len(data))
	for line := range data {
		lines = append(lines, line)
	}
	sort.Strings(lines)
	for _, line := range lines {
		marker := "-"
		if data[line] == ticker.Up {
			marker = "+"
		}
		fmt.Printf("%s %s\n", marker, line)
	}
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

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}
