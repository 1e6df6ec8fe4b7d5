package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultFormat renders symbol, price and two-digit percent change.
const DefaultFormat = "%t %c (%.2p%%)"

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Config struct {
	// APIKey is passed through opaquely to the quote source.
	APIKey string `json:"api_key"`
	// Source selects the quote backend: "finnhub" or "yahoo".
	Source                 string  `json:"source"`
	QuoteCacheFile         string  `json:"quote_cache_file"`
	RefreshIntervalMinutes float64 `json:"refresh_interval_minutes"`
	MaxRequestsPerMinute   int     `json:"max_requests_per_minute"`
	MinRequestIntervalSec  int     `json:"min_request_interval_sec"`
	Burst                  int     `json:"burst"`
	// Portfolio maps each tracked symbol to its format string.
	Portfolio map[string]string `json:"portfolio"`
	Server    Server            `json:"server"`
}

func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Source:                 "finnhub",
		QuoteCacheFile:         filepath.Join(home, ".config", "tickerfeed", "ticker_cache.json"),
		RefreshIntervalMinutes: 120,
		MaxRequestsPerMinute:   30,
		Burst:                  5,
		Portfolio:              map[string]string{},
		Server:                 Server{Port: "8080", RequestTimeoutSec: 10},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Validate checks the fields every cache operation depends on.
func (c Config) Validate() error {
	if c.QuoteCacheFile == "" {
		return fmt.Errorf("quote_cache_file is required")
	}
	if c.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("refresh_interval_minutes must be positive, got %g", c.RefreshIntervalMinutes)
	}
	switch c.Source {
	case "finnhub":
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for the finnhub source (set FINNHUB_API_KEY)")
		}
	case "yahoo":
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	return nil
}

// RefreshInterval converts the configured minutes (fractional allowed)
// to a duration.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes * float64(time.Minute))
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("TICKER_SOURCE"); v != "" {
		cfg.Source = strings.ToLower(v)
	}
	if v := os.Getenv("TICKER_CACHE_FILE"); v != "" {
		cfg.QuoteCacheFile = v
	}
	if v := os.Getenv("REFRESH_INTERVAL_MINUTES"); v != "" {
		var x float64
		fmt.Sscanf(v, "%g", &x)
		if x > 0 {
			cfg.RefreshIntervalMinutes = x
		}
	}
	if v := os.Getenv("TICKER_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("TICKER_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.MinRequestIntervalSec = x
		}
	}
	if v := os.Getenv("TICKER_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Burst = x
		}
	}
	if v := os.Getenv("TICKER_SYMBOLS"); v != "" {
		// CSV of symbols, each rendered with the default format.
		cfg.Portfolio = map[string]string{}
		for _, s := range splitCSV(v) {
			cfg.Portfolio[s] = DefaultFormat
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
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
