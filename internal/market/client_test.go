package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(
		WithBaseURL(srv.URL),
		WithRateLimit(1000),
		WithBackoffs(time.Millisecond, time.Millisecond),
	)
}

func TestClient_RetriesOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"bitcoin":{"usd":50000,"usd_24h_change":1.5}}`))
	})

	got, err := c.simplePrices(context.Background(), []string{"bitcoin"}, "usd")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Contains(t, got, "bitcoin")
	assert.Equal(t, 50000.0, *got["bitcoin"].CurrentPrice)
	assert.Equal(t, 1.5, *got["bitcoin"].Change24hPercent)
}

func TestClient_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"coin not found"}`, http.StatusNotFound)
	})

	_, err := c.History(context.Background(), "nope", 7, "usd")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ServesStaleCacheOnFailure(t *testing.T) {
	var fail atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"bitcoin":{"usd":100}}`))
	})
	now := time.Now()
	c.cache.now = func() time.Time { return now }

	first, err := c.simplePrices(context.Background(), []string{"bitcoin"}, "usd")
	require.NoError(t, err)
	assert.Equal(t, 100.0, *first["bitcoin"].CurrentPrice)

	fail.Store(true)
	now = now.Add(DefaultCacheTTL + time.Second)

	second, err := c.simplePrices(context.Background(), []string{"bitcoin"}, "usd")
	require.NoError(t, err)
	assert.Equal(t, 100.0, *second["bitcoin"].CurrentPrice)
}

func TestClient_FreshCacheSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"bitcoin":{"usd":1}}`))
	})

	for i := 0; i < 3; i++ {
		_, err := c.simplePrices(context.Background(), []string{"bitcoin"}, "usd")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_SendsAPIKeyHeader(t *testing.T) {
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("x-cg-demo-api-key")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithAPIKey("demo-key"))
	_, err := c.simplePrices(context.Background(), []string{"bitcoin"}, "usd")
	require.NoError(t, err)
	assert.Equal(t, "demo-key", header)
}

func TestClient_HTMLBodyIsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>blocked</html>`))
	})
	_, err := c.simplePrices(context.Background(), []string{"bitcoin"}, "usd")
	assert.Error(t, err)
}

func TestQuotes_FallsBackToSimplePrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coins/markets":
			w.Write([]byte(`[{
				"id":"bitcoin","current_price":60000,
				"price_change_percentage_24h":2.0,
				"price_change_percentage_24h_in_currency":2.5,
				"price_change_percentage_7d_in_currency":-4,
				"sparkline_in_7d":{"price":[1,null,3]}
			}]`))
		case "/simple/price":
			assert.Equal(t, "tiny-coin,solana,ghost", r.URL.Query().Get("ids"))
			w.Write([]byte(`{"tiny-coin":{"usd":0.5,"usd_24h_change":-1}}`))
		case "/coins/solana":
			w.Write([]byte(`{"id":"solana","market_data":{"current_price":{"usd":150.25}}}`))
		default:
			http.NotFound(w, r)
		}
	})

	got, err := c.Quotes(context.Background(), []string{"bitcoin", "tiny-coin", "solana", "ghost"}, "USD")
	require.NoError(t, err)

	btc := got["bitcoin"]
	assert.Equal(t, 60000.0, *btc.CurrentPrice)
	assert.Equal(t, 2.5, *btc.Change24hPercent)
	assert.Equal(t, -4.0, *btc.Change7dPercent)
	assert.Equal(t, []float64{1, 3}, btc.RecentSeries)

	tiny := got["tiny-coin"]
	assert.Equal(t, 0.5, *tiny.CurrentPrice)
	assert.Nil(t, tiny.Change7dPercent)

	sol := got["solana"]
	require.NotNil(t, sol.CurrentPrice)
	assert.Equal(t, 150.25, *sol.CurrentPrice)
	assert.Nil(t, sol.Change24hPercent)

	assert.NotContains(t, got, "ghost")
}

func TestQuotes_Empty(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1"))
	got, err := c.Quotes(context.Background(), nil, "usd")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHistory_CleansSamples(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "30", r.URL.Query().Get("days"))
		w.Write([]byte(`{"prices":[[1000,10],[2000,null],[3000,-1],[4000,12],[5000]]}`))
	})

	got, err := c.History(context.Background(), "bitcoin", 30, "usd")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].Timestamp)
	assert.Equal(t, 12.0, got[1].Price)
}

func TestHistory_KeepsSustainedCrash(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	var body strings.Builder
	body.WriteString(`{"prices":[`)
	for i := 0; i < 720; i++ {
		price := 100.0 + float64(i%3)
		if i >= 672 {
			price = 40.0 + float64(i%3)
		}
		if i > 0 {
			body.WriteString(",")
		}
		fmt.Fprintf(&body, "[%d,%g]", start+int64(i)*3600000, price)
	}
	body.WriteString("]}")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body.String()))
	})

	got, err := c.History(context.Background(), "bitcoin", 30, "usd")
	require.NoError(t, err)
	require.Len(t, got, 720)
	crash := 0
	for _, s := range got {
		if s.Price < 50 {
			crash++
		}
	}
	assert.Equal(t, 48, crash)
}

func TestPriceAt_PicksNearestSample(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ethereum/market_chart/range", r.URL.Path)
		ms := at.UnixMilli()
		body := `{"prices":[[` + itoa(ms-3600000) + `,100],[` + itoa(ms+300000) + `,105],[` + itoa(ms+3600000) + `,110]]}`
		w.Write([]byte(body))
	})

	got, err := c.PriceAt(context.Background(), "ethereum", "usd", at)
	require.NoError(t, err)
	assert.Equal(t, 105.0, got)
}

func TestPriceAt_NoSamples(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[]}`))
	})
	_, err := c.PriceAt(context.Background(), "ethereum", "usd", time.Now())
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestCoinPrice_ReadsMarketData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"solana","market_data":{"current_price":{"usd":150.25}}}`))
	})
	got, err := c.CoinPrice(context.Background(), "solana", "usd")
	require.NoError(t, err)
	assert.Equal(t, 150.25, got)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func TestExchangeRate(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/exchange_rates", r.URL.Path)
		w.Write([]byte(`{"rates":{"usd":{"value":60000,"type":"fiat"},"eur":{"value":54000,"type":"fiat"}}}`))
	})

	got, err := c.ExchangeRate(context.Background(), "USD", "eur")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got, 1e-12)

	same, err := c.ExchangeRate(context.Background(), "usd", "usd")
	require.NoError(t, err)
	assert.Equal(t, 1.0, same)

	_, err = c.ExchangeRate(context.Background(), "usd", "xyz")
	assert.ErrorIs(t, err, ErrNoPrice)
	assert.Equal(t, int32(1), calls.Load())
}
