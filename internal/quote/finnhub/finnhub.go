package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"tickerfeed/internal/quote"
)

const defaultURL = "https://finnhub.io/api/v1/quote"

// HTTPClient describes the HTTP client the source talks through.
//
//go:generate mockgen -package=finnhub_test -destination=mock_http_client_test.go -source=finnhub.go HTTPClient
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type Config struct {
	Name string
	// URL is the quote endpoint. Defaults to the public finnhub API.
	URL string
}

// Source fetches quotes from the finnhub REST /quote endpoint. The API
// key is passed per call as the token query parameter.
type Source struct {
	cfg    Config
	client HTTPClient
}

func New(cfg Config, hc HTTPClient) *Source {
	if cfg.Name == "" {
		cfg.Name = "Finnhub"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) Fetch(ctx context.Context, apiKey, symbol string) (quote.Quote, error) {
	if apiKey == "" {
		return quote.Quote{}, fmt.Errorf("finnhub: api key required")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("token", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL+"?"+params.Encode(), nil)
	if err != nil {
		return quote.Quote{}, err
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return quote.Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Report the endpoint without the query string so the token
		// never ends up in logs.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return quote.Quote{}, fmt.Errorf("GET %s -> %d: %s", s.cfg.URL, resp.StatusCode, string(b))
	}

	var q quote.Quote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return quote.Quote{}, fmt.Errorf("decode: %w", err)
	}
	q.Symbol = symbol
	return q, nil
}
