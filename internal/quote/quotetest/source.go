package quotetest

import (
	"context"
	"sync"

	"tickerfeed/internal/quote"
)

// Source is an in-memory quote source for tests. Every fetch returns the
// per-symbol quote when one is set and Base otherwise, with the symbol
// stamped on. Err, when set, fails every fetch.
type Source struct {
	Base     quote.Quote
	BySymbol map[string]quote.Quote
	Err      error

	mu    sync.Mutex
	calls int
}

func (s *Source) Name() string { return "fake" }

func (s *Source) Fetch(_ context.Context, _, symbol string) (quote.Quote, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return quote.Quote{}, s.Err
	}
	q, ok := s.BySymbol[symbol]
	if !ok {
		q = s.Base
	}
	q.Symbol = symbol
	return q, nil
}

// Calls reports how many fetches have been made.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
