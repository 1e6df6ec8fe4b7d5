package yahoo

import (
	"context"
	"fmt"

	yfquote "github.com/piquette/finance-go/quote"

	"tickerfeed/internal/quote"
)

// Source fetches quotes from Yahoo Finance. No credential is needed, so
// the api key argument is ignored.
type Source struct{}

func New() *Source { return &Source{} }

func (*Source) Name() string { return "Yahoo" }

// Fetch maps Yahoo's regular-market fields onto the wire quote shape.
// finance-go has no context support; ctx only bounds the caller's wait.
func (*Source) Fetch(_ context.Context, _ string, symbol string) (quote.Quote, error) {
	q, err := yfquote.Get(symbol)
	if err != nil {
		return quote.Quote{}, err
	}
	if q == nil {
		return quote.Quote{}, fmt.Errorf("yahoo: no quote for %q", symbol)
	}
	return quote.Quote{
		Current:       q.RegularMarketPrice,
		Change:        q.RegularMarketChange,
		PercentChange: q.RegularMarketChangePercent,
		High:          q.RegularMarketDayHigh,
		Low:           q.RegularMarketDayLow,
		Open:          q.RegularMarketOpen,
		PreviousClose: q.RegularMarketPreviousClose,
		Timestamp:     int64(q.RegularMarketTime),
		Symbol:        symbol,
	}, nil
}
