package candlefactory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlefeed/candles-feed/mockserver/candlefactory"
)

func TestCandleIsDeterministicAcrossCalls(t *testing.T) {
	f := candlefactory.New(42)

	a, err := f.Candle("BTC-USDT", "1m", 1700000000, 50000)
	require.NoError(t, err)
	b, err := f.Candle("BTC-USDT", "1m", 1700000000, 50000)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestCandleDiffersAcrossTimestampsAndPairs(t *testing.T) {
	f := candlefactory.New(42)

	a, err := f.Candle("BTC-USDT", "1m", 1700000000, 50000)
	require.NoError(t, err)
	b, err := f.Candle("BTC-USDT", "1m", 1700000060, 50000)
	require.NoError(t, err)
	c, err := f.Candle("ETH-USDT", "1m", 1700000000, 50000)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCandleSatisfiesOHLCInvariant(t *testing.T) {
	f := candlefactory.New(7)
	for ts := int64(1700000000); ts < 1700000000+3600; ts += 60 {
		d, err := f.Candle("BTC-USDT", "1m", ts, 50000)
		require.NoError(t, err)
		assert.LessOrEqual(t, d.Low, d.Open)
		assert.LessOrEqual(t, d.Low, d.Close)
		assert.GreaterOrEqual(t, d.High, d.Open)
		assert.GreaterOrEqual(t, d.High, d.Close)
	}
}

func TestWindowAlignsToIntervalBoundariesAndIsAscending(t *testing.T) {
	f := candlefactory.New(1)

	window, err := f.Window("BTC-USDT", "1m", 1700000005, 1700000185, 50000)
	require.NoError(t, err)
	require.NotEmpty(t, window)

	for _, d := range window {
		assert.Equal(t, int64(0), d.Timestamp%60)
	}
	for i := 1; i < len(window); i++ {
		assert.Greater(t, window[i].Timestamp, window[i-1].Timestamp)
	}
	assert.Equal(t, int64(1700000040), window[0].Timestamp)
}

func TestWindowIsConsistentAcrossRepeatedCalls(t *testing.T) {
	f := candlefactory.New(99)

	first, err := f.Window("ETH-USDT", "5m", 1700000000, 1700003600, 3000)
	require.NoError(t, err)
	second, err := f.Window("ETH-USDT", "5m", 1700000000, 1700003600, 3000)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
