package mockserver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/metrics"
	"github.com/candlefeed/candles-feed/mockserver"
	"github.com/candlefeed/candles-feed/mockserver/plugin"
)

func startTestServer(t *testing.T, exchangeType plugin.ExchangeType, opts ...mockserver.Option) *mockserver.Server {
	t.Helper()
	pairs := []mockserver.TradingPairSeed{{Base: "BTC", Quote: "USDT", SeedPrice: 50000}}
	srv, err := mockserver.CreateMockServer(mockserver.DefaultRegistry(), exchangeType, "127.0.0.1", 0, 1, pairs, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv
}

func TestBinanceRESTRouteServesSynthesizedCandles(t *testing.T) {
	srv := startTestServer(t, plugin.Binance)

	url := fmt.Sprintf("%s/api/v3/klines?symbol=BTCUSDT&interval=1m&limit=5", srv.RESTBaseURL())
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var rows [][]interface{}
	require.NoError(t, json.Unmarshal(body, &rows))
	assert.Len(t, rows, 5)
}

func TestSeededCandlesWinOverSynthesized(t *testing.T) {
	srv := startTestServer(t, plugin.Binance, mockserver.WithClock(mockserver.FixedClock{At: time.Unix(1700000300, 0)}))

	seeded, err := candle.New(int64(1700000280), 1, 2, 0.5, 1.5, 10, 100, 3, 5, 50)
	require.NoError(t, err)
	srv.SeedCandles("BTC-USDT", "1m", []candle.Data{seeded})

	url := fmt.Sprintf("%s/api/v3/klines?symbol=BTCUSDT&interval=1m&startTime=%d&endTime=%d", srv.RESTBaseURL(), 1700000280000, 1700000280000)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var rows [][]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0][1])
}

func TestRESTRateLimitReturns429(t *testing.T) {
	srv := startTestServer(t, plugin.Binance, mockserver.WithRESTRateLimit(0.001, 1))

	url := fmt.Sprintf("%s/api/v3/klines?symbol=BTCUSDT&interval=1m&limit=1", srv.RESTBaseURL())
	first, err := http.Get(url)
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Get(url)
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestFaultInjection5xx(t *testing.T) {
	srv := startTestServer(t, plugin.Binance, mockserver.WithFault(mockserver.FaultConfig{Error5xxProbability: 1}))

	url := fmt.Sprintf("%s/api/v3/klines?symbol=BTCUSDT&interval=1m&limit=1", srv.RESTBaseURL())
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestCoinbaseHasNoWSRoute(t *testing.T) {
	srv := startTestServer(t, plugin.Coinbase)
	assert.Empty(t, srv.WSBaseURL())
}

func TestServerMetricsRecordRequests(t *testing.T) {
	m := metrics.NewServerMetrics()
	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))

	srv := startTestServer(t, plugin.Binance, mockserver.WithServerMetrics(m))

	url := fmt.Sprintf("%s/api/v3/klines?symbol=BTCUSDT&interval=1m&limit=1", srv.RESTBaseURL())
	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	count := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("binance_spot", "/api/v3/klines", "200"))
	assert.Equal(t, float64(1), count)
}
