package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"tickerfeed/internal/quote"
)

// TimeLayout is the on-disk form of the next_update stamp: fixed-width
// month-day-year, local time, second precision, no zone marker.
const TimeLayout = "01-02-2006 15:04:05"

const nextUpdateKey = "next_update"

// Snapshot is one complete cache write: quotes for every tracked symbol
// plus the next scheduled refresh time. On disk it is a single flat JSON
// object keyed by symbol, with next_update as the one bookkeeping key.
type Snapshot struct {
	Quotes     map[string]quote.Quote
	NextUpdate time.Time
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Quotes)+1)
	out[nextUpdateKey] = s.NextUpdate.Format(TimeLayout)
	for sym, q := range s.Quotes {
		out[sym] = q
	}
	return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	// A snapshot without a deadline is corrupt, even when the JSON is
	// otherwise well formed.
	rawNext, ok := raw[nextUpdateKey]
	if !ok {
		return fmt.Errorf("missing %q key", nextUpdateKey)
	}
	var stamp string
	if err := json.Unmarshal(rawNext, &stamp); err != nil {
		return fmt.Errorf("%s: %w", nextUpdateKey, err)
	}
	next, err := time.ParseInLocation(TimeLayout, stamp, time.Local)
	if err != nil {
		return fmt.Errorf("%s: %w", nextUpdateKey, err)
	}

	quotes := make(map[string]quote.Quote, len(raw)-1)
	for sym, msg := range raw {
		if sym == nextUpdateKey {
			continue
		}
		var q quote.Quote
		if err := json.Unmarshal(msg, &q); err != nil {
			return fmt.Errorf("quote %s: %w", sym, err)
		}
		q.Symbol = sym
		quotes[sym] = q
	}
	s.Quotes = quotes
	s.NextUpdate = next
	return nil
}

// Fresh reports whether the snapshot's deadline is still in the future.
func (s *Snapshot) Fresh(now time.Time) bool { return now.Before(s.NextUpdate) }

// covers reports whether the stored symbol set equals symbols exactly,
// order irrelevant.
func (s *Snapshot) covers(symbols []string) bool {
	set := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		set[sym] = struct{}{}
	}
	if len(set) != len(s.Quotes) {
		return false
	}
	for sym := range set {
		if _, ok := s.Quotes[sym]; !ok {
			return false
		}
	}
	return true
}
