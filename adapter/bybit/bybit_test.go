package bybit_test

import (
	"context"
	"testing"

	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/adapter/bybit"
	"github.com/stretchr/testify/require"
)

func TestGetRESTParamsUsesNumericIntervalCode(t *testing.T) {
	b := bybit.New()
	params, err := b.GetRESTParams("BTC-USDT", "1h", nil, nil, 100)
	require.NoError(t, err)
	require.Equal(t, "BTCUSDT", params["symbol"])
	require.Equal(t, "60", params["interval"])
	require.Equal(t, "spot", params["category"])
}

func TestParseRESTResponseReversesAndParses(t *testing.T) {
	b := bybit.New()
	raw := map[string]interface{}{
		"retCode": float64(0),
		"retMsg":  "OK",
		"result": map[string]interface{}{
			"category": "spot",
			"symbol":   "BTCUSDT",
			"list": []interface{}{
				[]interface{}{"1700000120000", "101", "102", "100", "101.5", "10", "1010"},
				[]interface{}{"1700000060000", "100", "101", "99", "100.5", "12", "1200"},
			},
		},
	}
	candles, err := b.ParseRESTResponse(raw)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, int64(1700000060), candles[0].Timestamp)
	require.Equal(t, int64(1700000120), candles[1].Timestamp)
}

func TestParseRESTResponseInvalidSymbolError(t *testing.T) {
	b := bybit.New()
	raw := map[string]interface{}{
		"retCode": float64(10001),
		"retMsg":  "Not supported symbols",
		"result":  map[string]interface{}{},
	}
	_, err := b.ParseRESTResponse(raw)
	require.ErrorIs(t, err, adapter.ErrInvalidTradingPair)
}

func TestFetchRESTCandlesSynchronousRejected(t *testing.T) {
	b := bybit.New()
	_, err := b.FetchRESTCandlesSynchronous("BTC-USDT", "1h", nil, nil, 0)
	require.ErrorIs(t, err, adapter.ErrCapabilityUnsupported)
}

func TestFetchRESTCandlesHonorsContextCancellation(t *testing.T) {
	b := bybit.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.FetchRESTCandles(ctx, "BTC-USDT", "1h", nil, nil, 0)
	require.Error(t, err)
}

func TestGetWSSubscriptionPayload(t *testing.T) {
	b := bybit.New()
	payload, err := b.GetWSSubscriptionPayload("BTC-USDT", "1m")
	require.NoError(t, err)
	msg, ok := payload.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "subscribe", msg["op"])
}

func TestParseWSMessageKlinePush(t *testing.T) {
	b := bybit.New()
	raw := map[string]interface{}{
		"topic": "kline.1.BTCUSDT",
		"data": []interface{}{
			map[string]interface{}{
				"start": float64(1700000060000), "open": "100", "high": "101",
				"low": "99", "close": "100.5", "volume": "12", "turnover": "1200",
			},
		},
	}
	candles, err := b.ParseWSMessage(raw)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	require.Equal(t, int64(1700000060), candles[0].Timestamp)
}
