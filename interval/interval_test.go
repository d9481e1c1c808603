package interval_test

import (
	"testing"
	"time"

	"github.com/candlefeed/candles-feed/interval"
	"github.com/stretchr/testify/require"
)

func TestSeconds(t *testing.T) {
	tests := map[string]int64{
		"1s": 1, "1m": 60, "3m": 180, "5m": 300, "15m": 900, "30m": 1800,
		"1h": 3600, "2h": 7200, "4h": 14400, "6h": 21600, "8h": 28800, "12h": 43200,
		"1d": 86400, "3d": 259200, "1w": 604800, "1M": 2592000,
	}
	for token, want := range tests {
		got, err := interval.Seconds(token)
		require.NoError(t, err)
		require.Equal(t, want, got, token)
	}
}

func TestSecondsUnknownToken(t *testing.T) {
	_, err := interval.Seconds("7x")
	require.Error(t, err)
	_, err = interval.Seconds("")
	require.Error(t, err)
}

func TestDuration(t *testing.T) {
	d, err := interval.Duration("1m")
	require.NoError(t, err)
	require.Equal(t, time.Minute, d)
}

func TestIsCanonical(t *testing.T) {
	require.True(t, interval.IsCanonical("1m"))
	require.False(t, interval.IsCanonical("7x"))
}
