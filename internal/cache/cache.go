package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tickerfeed/internal/quote"
)

// DecodeError reports a cache file that could not be read or parsed. It
// is recovered locally: callers treat the cache as absent and refresh.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode cache %s: %v", e.Path, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// FetchError reports a source failure for one symbol during a refresh.
// The refresh aborts and nothing is persisted.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// Cache owns the on-disk quote snapshot and its freshness protocol. One
// mutex serializes the whole read-decide-fetch-write sequence so a
// demand-triggered and a scheduler-triggered refresh cannot race on the
// file.
type Cache struct {
	path     string
	interval time.Duration
	source   quote.Source
	log      zerolog.Logger

	mu sync.Mutex
}

func New(path string, interval time.Duration, src quote.Source, logger zerolog.Logger) *Cache {
	return &Cache{path: path, interval: interval, source: src, log: logger}
}

// Path returns the cache file location.
func (c *Cache) Path() string { return c.path }

// Interval returns the configured refresh interval.
func (c *Cache) Interval() time.Duration { return c.interval }

// GetOrRefresh returns quotes for symbols, serving the persisted
// snapshot when it is still fresh and stores exactly the given symbol
// set, and forcing a refresh otherwise. Decode failures are reported and
// treated the same as a missing snapshot. Served records get their
// Symbol re-stamped from the tracked key.
func (c *Cache) GetOrRefresh(ctx context.Context, apiKey string, symbols []string) (map[string]quote.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.read()
	switch {
	case err != nil:
		var de *DecodeError
		if errors.As(err, &de) {
			c.log.Warn().Err(de.Err).Str("path", c.path).Msg("discarding corrupt quote cache")
		}
	case snap.Fresh(time.Now()) && snap.covers(symbols):
		quotes := make(map[string]quote.Quote, len(symbols))
		for _, sym := range symbols {
			q := snap.Quotes[sym]
			q.Symbol = sym
			quotes[sym] = q
		}
		return quotes, nil
	}

	fresh, err := c.refresh(ctx, apiKey, symbols)
	if err != nil {
		return nil, err
	}
	return fresh.Quotes, nil
}

// ForceRefresh fetches every symbol and persists a new snapshot
// regardless of what is on disk. It returns the snapshot written.
func (c *Cache) ForceRefresh(ctx context.Context, apiKey string, symbols []string) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh(ctx, apiKey, symbols)
}

// NextUpdate returns the refresh deadline recorded on disk. A missing or
// corrupt cache yields the current time so callers refresh immediately.
func (c *Cache) NextUpdate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.read()
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			c.log.Warn().Err(de.Err).Str("path", c.path).Msg("discarding corrupt quote cache")
		}
		return time.Now()
	}
	return snap.NextUpdate
}

// refresh fetches all symbols in input order, then persists the snapshot
// as one atomic write. A single fetch failure aborts the whole refresh
// with nothing persisted: a half-populated cache would hide missing
// symbols from the freshness check on the next read.
func (c *Cache) refresh(ctx context.Context, apiKey string, symbols []string) (*Snapshot, error) {
	quotes := make(map[string]quote.Quote, len(symbols))
	for _, sym := range symbols {
		q, err := c.source.Fetch(ctx, apiKey, sym)
		if err != nil {
			return nil, &FetchError{Symbol: sym, Err: err}
		}
		q.Symbol = sym
		quotes[sym] = q
	}

	snap := &Snapshot{Quotes: quotes, NextUpdate: time.Now().Add(c.interval)}
	if err := c.write(snap); err != nil {
		return nil, err
	}
	c.log.Debug().Int("symbols", len(symbols)).Time("next_update", snap.NextUpdate).Msg("quote cache written")
	return snap, nil
}

// write persists the snapshot via a temp file in the target directory
// plus a rename, creating the directory if absent.
func (c *Cache) write(snap *Snapshot) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cache temp file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

// read loads the persisted snapshot. A missing file surfaces as
// os.ErrNotExist; anything unreadable or unparseable is a *DecodeError.
func (c *Cache) read() (*Snapshot, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, &DecodeError{Path: c.path, Err: err}
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, &DecodeError{Path: c.path, Err: err}
	}
	return &snap, nil
}
