package kucoin_test

import (
	"context"
	"testing"

	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/adapter/kucoin"
	"github.com/stretchr/testify/require"
)

func TestGetRESTParamsUsesNativeType(t *testing.T) {
	k := kucoin.New()
	params, err := k.GetRESTParams("BTC-USDT", "1h", nil, nil, 0)
	require.NoError(t, err)
	require.Equal(t, "BTC-USDT", params["symbol"])
	require.Equal(t, "1hour", params["type"])
}

func TestParseRESTResponseHandlesCloseBeforeHighLowOrder(t *testing.T) {
	k := kucoin.New()
	raw := map[string]interface{}{
		"code": "200000",
		"data": []interface{}{
			[]interface{}{"1700000120", "101", "101.5", "102", "100", "10", "1010"},
			[]interface{}{"1700000060", "100", "100.5", "101", "99", "12", "1200"},
		},
	}
	candles, err := k.ParseRESTResponse(raw)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, int64(1700000060), candles[0].Timestamp)
	require.Equal(t, 100.0, candles[0].Open)
	require.Equal(t, 100.5, candles[0].Close)
	require.Equal(t, 101.0, candles[0].High)
	require.Equal(t, 99.0, candles[0].Low)
}

func TestParseRESTResponseInvalidPairError(t *testing.T) {
	k := kucoin.New()
	raw := map[string]interface{}{"code": "400100", "msg": "This pair is not provided at present", "data": []interface{}{}}
	_, err := k.ParseRESTResponse(raw)
	require.ErrorIs(t, err, adapter.ErrInvalidTradingPair)
}

func TestGetWSSubscriptionPayloadUnsupported(t *testing.T) {
	k := kucoin.New()
	_, err := k.GetWSSubscriptionPayload("BTC-USDT", "1m")
	require.ErrorIs(t, err, adapter.ErrCapabilityUnsupported)
}

func TestFetchRESTCandlesHonorsContextCancellation(t *testing.T) {
	k := kucoin.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := k.FetchRESTCandles(ctx, "BTC-USDT", "1h", nil, nil, 0)
	require.Error(t, err)
}
