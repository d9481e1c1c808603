package coinbase_test

import (
	"context"
	"testing"

	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/adapter/coinbase"
	"github.com/stretchr/testify/require"
)

func TestGetRESTParamsGranularity(t *testing.T) {
	c := coinbase.New()
	params, err := c.GetRESTParams("BTC-USDT", "1h", nil, nil, 0)
	require.NoError(t, err)
	require.Equal(t, "3600", params["granularity"])
}

func TestGetRESTParamsRejectsUnsupportedInterval(t *testing.T) {
	c := coinbase.New()
	_, err := c.GetRESTParams("BTC-USDT", "3m", nil, nil, 0)
	require.Error(t, err)
}

func TestParseRESTResponseReversesDescendingOrder(t *testing.T) {
	c := coinbase.New()
	raw := []interface{}{
		[]interface{}{float64(1700000120), float64(100), float64(102), float64(101), float64(101.5), float64(10)},
		[]interface{}{float64(1700000060), float64(99), float64(101), float64(100), float64(100.5), float64(12)},
	}
	candles, err := c.ParseRESTResponse(raw)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, int64(1700000060), candles[0].Timestamp)
	require.Equal(t, int64(1700000120), candles[1].Timestamp)
	require.Equal(t, 100.0, candles[0].Open)
	require.Equal(t, 99.0, candles[0].Low)
	require.Equal(t, 101.0, candles[0].High)
}

func TestGetWSSubscriptionPayloadUnsupported(t *testing.T) {
	c := coinbase.New()
	_, err := c.GetWSSubscriptionPayload("BTC-USDT", "1m")
	require.ErrorIs(t, err, adapter.ErrCapabilityUnsupported)
}

func TestFetchRESTCandlesSynchronousRejectsUnsupportedInterval(t *testing.T) {
	c := coinbase.New()
	_, err := c.FetchRESTCandlesSynchronous("BTC-USDT", "30m", nil, nil, 0)
	require.Error(t, err)
}

func TestFetchRESTCandlesHonorsContextCancellation(t *testing.T) {
	c := coinbase.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchRESTCandles(ctx, "BTC-USDT", "1h", nil, nil, 0)
	require.Error(t, err)
}
