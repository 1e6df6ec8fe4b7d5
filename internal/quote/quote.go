package quote

import "context"

// Quote is the normalized shape returned by all sources. Field tags
// follow the finnhub /quote wire response; Symbol is not part of the
// wire payload and is stamped after a fetch or a cache decode.
type Quote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
	Symbol        string  `json:"-"`
}

// Source fetches one symbol's quote. The credential is an opaque string
// passed through to the backing service; sources that need none ignore it.
//
//go:generate mockgen -package=cache_test -destination=../cache/mock_source_test.go -source=quote.go Source
type Source interface {
	Name() string
	Fetch(ctx context.Context, apiKey, symbol string) (Quote, error)
}
