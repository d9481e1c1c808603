package bybit_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/mockserver/plugin"
	"github.com/candlefeed/candles-feed/mockserver/plugin/bybit"
)

func TestNormalizeTradingPairSplitsConcatenatedSymbol(t *testing.T) {
	p := bybit.New()
	pair, err := p.NormalizeTradingPair("BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT", pair)
}

func TestNormalizeTradingPairRejectsUnknownQuote(t *testing.T) {
	p := bybit.New()
	_, err := p.NormalizeTradingPair("XYZZY")
	assert.Error(t, err)
}

func TestParseRESTCandlesParamsDecodesQuery(t *testing.T) {
	p := bybit.New()
	r := httptest.NewRequest("GET", "/v5/market/kline?category=spot&symbol=BTCUSDT&interval=1&limit=50&start=1700000000000&end=1700000600000", nil)
	req, err := p.ParseRESTCandlesParams(r)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", req.Symbol)
	assert.Equal(t, "1m", req.Interval)
	assert.Equal(t, 50, req.Limit)
	assert.Equal(t, int64(1700000000), req.StartTime)
	assert.Equal(t, int64(1700000600), req.EndTime)
}

func TestParseWSSubscriptionDecodesKlineTopic(t *testing.T) {
	p := bybit.New()
	subs, err := p.ParseWSSubscription(map[string]interface{}{
		"op":   "subscribe",
		"args": []interface{}{"kline.1.BTCUSDT"},
	})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "BTCUSDT", subs[0].Symbol)
	assert.Equal(t, "1m", subs[0].Interval)
}

func TestCreateWSSubscriptionKeyMatchesTopicShape(t *testing.T) {
	p := bybit.New()
	key := p.CreateWSSubscriptionKey("BTC-USDT", "1m")
	assert.Equal(t, "BTCUSDT_1", key)
}

func TestFormatRESTCandlesOrdersNewestFirst(t *testing.T) {
	p := bybit.New()
	c1, err := candle.New(int64(1700000000), 1, 2, 0.5, 1.5, 10, 100, 0, 0, 0)
	require.NoError(t, err)
	c2, err := candle.New(int64(1700000060), 2, 3, 1.5, 2.5, 20, 200, 0, 0, 0)
	require.NoError(t, err)

	out, err := p.FormatRESTCandles([]candle.Data{c1, c2}, "BTC-USDT", "1m")
	require.NoError(t, err)

	env, ok := out.(map[string]interface{})
	require.True(t, ok)
	result := env["result"].(map[string]interface{})
	list := result["list"].([][]string)
	require.Len(t, list, 2)
	assert.Equal(t, "1700000060000", list[0][0])
	assert.Equal(t, "1700000000000", list[1][0])
}

func TestWSRouteIsNonEmpty(t *testing.T) {
	p := bybit.New()
	assert.NotEmpty(t, p.WSRoute())
}

func TestExchangeType(t *testing.T) {
	p := bybit.New()
	assert.Equal(t, plugin.Bybit, p.ExchangeType())
}
