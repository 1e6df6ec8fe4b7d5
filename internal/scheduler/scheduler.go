// Package scheduler runs the background refresh loop: sleep until the
// cache's persisted deadline, force a refresh, repeat.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tickerfeed/internal/cache"
)

// Scheduler is a caller-owned handle around one background goroutine.
// Start and Stop are idempotent; Stop blocks until the loop has exited.
// A refresh failure never stops the loop, it retries after the cache's
// configured interval.
type Scheduler struct {
	cache   *cache.Cache
	apiKey  string
	symbols []string
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func New(c *cache.Cache, apiKey string, symbols []string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{cache: c, apiKey: apiKey, symbols: symbols, log: logger}
}

// Start launches the refresh loop. A second Start while the loop is
// active is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

// Stop signals the loop and blocks until it has exited. Stopping an
// inactive scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(stop, done chan struct{}) {
	defer close(done)

	for {
		wait := time.Until(s.cache.NextUpdate())
		if wait <= 0 {
			// Cancellation is cooperative: an in-flight refresh is
			// never torn down mid-fetch.
			if _, err := s.cache.ForceRefresh(context.Background(), s.apiKey, s.symbols); err != nil {
				s.log.Error().Err(err).Msg("scheduled refresh failed")
				wait = s.cache.Interval()
			} else {
				s.log.Info().Int("symbols", len(s.symbols)).Msg("quote cache refreshed")
				continue
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
