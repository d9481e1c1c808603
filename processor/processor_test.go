package processor_test

import (
	"testing"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/processor"
	"github.com/stretchr/testify/require"
)

func mustCandle(t *testing.T, ts int64, close float64) candle.Data {
	t.Helper()
	d, err := candle.New(ts, close, close, close, close, 1, 0, 0, 0, 0)
	require.NoError(t, err)
	return d
}

func TestSanitizeDropsInvalid(t *testing.T) {
	xs := []int{1, 2, 3, 4}
	out := processor.Sanitize(xs, func(x int) bool { return x%2 == 0 })
	require.Equal(t, []int{2, 4}, out)
}

func TestMergeSortsDedupesLastWriterWins(t *testing.T) {
	existing := []candle.Data{mustCandle(t, 60, 1), mustCandle(t, 120, 1)}
	incoming := []candle.Data{mustCandle(t, 180, 1), mustCandle(t, 60, 2), mustCandle(t, 0, 1)}

	out := processor.Merge(existing, incoming)

	require.Len(t, out, 4)
	require.Equal(t, []int64{0, 60, 120, 180}, keys(out))
	require.Equal(t, 2.0, out[1].Close, "incoming ts=60 must win over existing ts=60")
}

func TestMergeOutOfOrderBatchS3(t *testing.T) {
	incoming := []candle.Data{
		mustCandle(t, 120, 1), mustCandle(t, 60, 1), mustCandle(t, 180, 1), mustCandle(t, 60, 2),
	}
	out := processor.Merge(nil, incoming)
	require.Equal(t, []int64{60, 120, 180}, keys(out))
	require.Equal(t, 2.0, out[0].Close)
}

func TestMergeIdempotence(t *testing.T) {
	xs := []candle.Data{mustCandle(t, 60, 1), mustCandle(t, 120, 1)}
	once := processor.Merge(nil, xs)
	twice := processor.Merge(once, xs)
	require.Equal(t, once, twice)
}

func TestDetectGaps(t *testing.T) {
	xs := []candle.Data{mustCandle(t, 60, 1), mustCandle(t, 120, 1), mustCandle(t, 300, 1), mustCandle(t, 360, 1)}
	gaps := processor.DetectGaps(xs, 60)
	require.Equal(t, []processor.Gap{{PrevTimestamp: 120, NextTimestamp: 300}}, gaps)
}

func TestDetectGapsNoneWhenContiguous(t *testing.T) {
	xs := []candle.Data{mustCandle(t, 60, 1), mustCandle(t, 120, 1), mustCandle(t, 180, 1)}
	require.Empty(t, processor.DetectGaps(xs, 60))
}

func keys(xs []candle.Data) []int64 {
	out := make([]int64, len(xs))
	for i, x := range xs {
		out[i] = x.Key()
	}
	return out
}
