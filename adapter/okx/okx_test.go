package okx_test

import (
	"testing"

	"github.com/candlefeed/candles-feed/adapter/okx"
	"github.com/stretchr/testify/require"
)

func TestGetRESTParamsBuildsInstIdAndBar(t *testing.T) {
	o := okx.New()
	params, err := o.GetRESTParams("BTC-USDT", "1h", nil, nil, 50)
	require.NoError(t, err)
	require.Equal(t, "BTC-USDT", params["instId"])
	require.Equal(t, "1H", params["bar"])
	require.Equal(t, "50", params["limit"])
}

func TestGetRESTParamsRejectsUnsupportedInterval(t *testing.T) {
	o := okx.New()
	_, err := o.GetRESTParams("BTC-USDT", "8h", nil, nil, 50)
	require.Error(t, err)
}

func TestParseRESTResponseReversesNewestFirstToAscending(t *testing.T) {
	o := okx.New()
	raw := map[string]interface{}{
		"code": "0",
		"msg":  "",
		"data": []interface{}{
			[]interface{}{"1700000120000", "101", "102", "100", "101.5", "10", "1010"},
			[]interface{}{"1700000060000", "100", "101", "99", "100.5", "12", "1200"},
		},
	}
	candles, err := o.ParseRESTResponse(raw)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, int64(1700000060), candles[0].Timestamp)
	require.Equal(t, int64(1700000120), candles[1].Timestamp)
}

func TestParseRESTResponseErrorCode(t *testing.T) {
	o := okx.New()
	raw := map[string]interface{}{"code": "51001", "msg": "Instrument ID does not exist", "data": []interface{}{}}
	_, err := o.ParseRESTResponse(raw)
	require.Error(t, err)
}

func TestGetWSSubscriptionPayload(t *testing.T) {
	o := okx.New()
	payload, err := o.GetWSSubscriptionPayload("BTC-USDT", "1m")
	require.NoError(t, err)
	msg, ok := payload.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "subscribe", msg["op"])
}

func TestParseWSMessageCandlePush(t *testing.T) {
	o := okx.New()
	raw := map[string]interface{}{
		"arg":  map[string]interface{}{"channel": "candle1m", "instId": "BTC-USDT"},
		"data": []interface{}{[]interface{}{"1700000060000", "100", "101", "99", "100.5", "12", "1200"}},
	}
	candles, err := o.ParseWSMessage(raw)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	require.Equal(t, int64(1700000060), candles[0].Timestamp)
}

func TestParseWSMessageIgnoresNonCandle(t *testing.T) {
	o := okx.New()
	candles, err := o.ParseWSMessage(map[string]interface{}{"event": "subscribe"})
	require.NoError(t, err)
	require.Nil(t, candles)
}

func TestRateLimit(t *testing.T) {
	o := okx.New()
	n, window := o.RateLimit()
	require.Equal(t, okx.RateLimitRequestsPerWindow, n)
	require.Equal(t, okx.RateLimitWindowDuration, window)
}
