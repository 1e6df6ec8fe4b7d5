// Package ticker is the consumer-facing read API: it joins the quote
// cache and the format engine into rendered, classified portfolio
// entries.
package ticker

import (
	"context"
	"sort"

	"tickerfeed/internal/cache"
	"tickerfeed/internal/format"
)

// Direction classifies an entry by the sign of its percent change.
type Direction int

const (
	Down Direction = 0 // negative percent change
	Up   Direction = 1 // zero or positive percent change
)

// Symbols returns the portfolio's tracked symbols in sorted order, so
// refreshes hit the source in a deterministic sequence.
func Symbols(portfolio map[string]string) []string {
	symbols := make([]string, 0, len(portfolio))
	for sym := range portfolio {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// Data renders every portfolio entry through its format string. The
// result maps each display string to its up/down classification.
func Data(ctx context.Context, c *cache.Cache, apiKey string, portfolio map[string]string) (map[string]Direction, error) {
	quotes, err := c.GetOrRefresh(ctx, apiKey, Symbols(portfolio))
	if err != nil {
		return nil, err
	}

	res := make(map[string]Direction, len(quotes))
	for sym, q := range quotes {
		dir := Up
		if q.PercentChange < 0 {
			dir = Down
		}
		res[format.Render(q, portfolio[sym])] = dir
	}
	return res, nil
}

// RefreshNow forces a cache refresh for the portfolio's symbols.
func RefreshNow(ctx context.Context, c *cache.Cache, apiKey string, portfolio map[string]string) error {
	_, err := c.ForceRefresh(ctx, apiKey, Symbols(portfolio))
	return err
}
