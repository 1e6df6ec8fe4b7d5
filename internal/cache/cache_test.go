package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"tickerfeed/internal/cache"
	"tickerfeed/internal/quote"
	"tickerfeed/internal/quote/quotetest"
)

var sample = quote.Quote{
	Current:       47.08,
	Change:        1.32,
	PercentChange: 2.8846,
	High:          47.116,
	Low:           46.02,
	Open:          46.48,
	PreviousClose: 45.76,
	Timestamp:     1703192401,
}

func cachePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ticker", "ticker_cache.json")
}

// writeCacheFile persists a snapshot in the on-disk wire format without
// going through the cache.
func writeCacheFile(t *testing.T, path string, next time.Time, quotes map[string]quote.Quote) {
	t.Helper()
	payload := map[string]any{"next_update": next.Format(cache.TimeLayout)}
	for sym, q := range quotes {
		payload[sym] = q
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

func TestGetOrRefresh_FreshCacheServesWithoutFetch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl) // no EXPECT: any fetch fails the test

	path := cachePath(t)
	writeCacheFile(t, path, time.Now().Add(time.Hour), map[string]quote.Quote{
		"AAPL": sample,
		"MSFT": sample,
	})

	c := cache.New(path, time.Hour, src, zerolog.Nop())
	quotes, err := c.GetOrRefresh(context.Background(), "key", []string{"MSFT", "AAPL"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	// records come back unchanged except for symbol stamping
	for _, sym := range []string{"AAPL", "MSFT"} {
		q := quotes[sym]
		require.Equal(t, sym, q.Symbol)
		q.Symbol = ""
		require.Equal(t, sample, q)
	}
}

func TestGetOrRefresh_SymbolSetChangeForcesRefresh(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().
		Fetch(gomock.Any(), "key", "AAPL").
		Return(sample, nil).
		Times(1)

	path := cachePath(t)
	// fresh and unexpired, but tracking has dropped MSFT
	writeCacheFile(t, path, time.Now().Add(time.Hour), map[string]quote.Quote{
		"AAPL": sample,
		"MSFT": sample,
	})

	c := cache.New(path, time.Hour, src, zerolog.Nop())
	quotes, err := c.GetOrRefresh(context.Background(), "key", []string{"AAPL"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.Equal(t, "AAPL", quotes["AAPL"].Symbol)

	// the snapshot on disk now stores exactly the new symbol set
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap cache.Snapshot
	require.NoError(t, json.Unmarshal(b, &snap))
	require.Len(t, snap.Quotes, 1)
	require.Contains(t, snap.Quotes, "AAPL")
}

func TestGetOrRefresh_StaleCacheForcesRefresh(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().Fetch(gomock.Any(), "key", "AAPL").Return(sample, nil).Times(1)

	path := cachePath(t)
	writeCacheFile(t, path, time.Now().Add(-time.Minute), map[string]quote.Quote{
		"AAPL": sample,
	})

	c := cache.New(path, time.Hour, src, zerolog.Nop())
	_, err := c.GetOrRefresh(context.Background(), "key", []string{"AAPL"})
	require.NoError(t, err)
}

func TestGetOrRefresh_CorruptCacheForcesRefresh(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"malformed json":          `{"next_update": `,
		"missing next_update key": `{"AAPL": {"c": 47.08}}`,
	}
	for name, content := range cases {
		content := content
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			src := NewMockSource(ctrl)
			src.EXPECT().Fetch(gomock.Any(), "key", "AAPL").Return(sample, nil).Times(1)

			path := cachePath(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			c := cache.New(path, time.Hour, src, zerolog.Nop())
			quotes, err := c.GetOrRefresh(context.Background(), "key", []string{"AAPL"})
			require.NoError(t, err)
			require.Len(t, quotes, 1)
		})
	}
}

func TestGetOrRefresh_RoundTrip(t *testing.T) {
	t.Parallel()

	src := &quotetest.Source{Base: sample}
	c := cache.New(cachePath(t), time.Hour, src, zerolog.Nop())

	symbols := []string{"AAPL", "MSFT", "GOOG"}
	snap, err := c.ForceRefresh(context.Background(), "key", symbols)
	require.NoError(t, err)
	require.Len(t, snap.Quotes, 3)
	require.Equal(t, 3, src.Calls())

	// an immediate read with the same set serves the snapshot just
	// written, with no further fetches
	quotes, err := c.GetOrRefresh(context.Background(), "key", symbols)
	require.NoError(t, err)
	require.Equal(t, snap.Quotes, quotes)
	require.Equal(t, 3, src.Calls())
}

func TestForceRefresh_FetchFailureLeavesSnapshotUntouched(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().Fetch(gomock.Any(), "key", "AAPL").Return(sample, nil).Times(1)
	src.EXPECT().Fetch(gomock.Any(), "key", "MSFT").Return(quote.Quote{}, errors.New("boom")).Times(1)

	path := cachePath(t)
	writeCacheFile(t, path, time.Now().Add(-time.Minute), map[string]quote.Quote{
		"AAPL": sample,
	})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	c := cache.New(path, time.Hour, src, zerolog.Nop())
	_, err = c.ForceRefresh(context.Background(), "key", []string{"AAPL", "MSFT"})

	var fe *cache.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "MSFT", fe.Symbol)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after, "failed refresh must not persist a partial snapshot")
}

func TestForceRefresh_EmptySymbolSet(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl) // no fetches expected

	path := cachePath(t)
	c := cache.New(path, time.Hour, src, zerolog.Nop())

	snap, err := c.ForceRefresh(context.Background(), "key", nil)
	require.NoError(t, err)
	require.Empty(t, snap.Quotes)
	require.WithinDuration(t, time.Now().Add(time.Hour), snap.NextUpdate, 5*time.Second)

	quotes, err := c.GetOrRefresh(context.Background(), "key", nil)
	require.NoError(t, err)
	require.Empty(t, quotes)
}

func TestNextUpdate(t *testing.T) {
	t.Parallel()

	t.Run("recorded deadline", func(t *testing.T) {
		t.Parallel()
		next := time.Date(2026, 3, 1, 10, 30, 0, 0, time.Local)
		path := cachePath(t)
		writeCacheFile(t, path, next, nil)

		c := cache.New(path, time.Hour, &quotetest.Source{}, zerolog.Nop())
		require.True(t, c.NextUpdate().Equal(next))
	})

	t.Run("missing file means refresh now", func(t *testing.T) {
		t.Parallel()
		c := cache.New(cachePath(t), time.Hour, &quotetest.Source{}, zerolog.Nop())
		require.WithinDuration(t, time.Now(), c.NextUpdate(), time.Second)
	})
}
