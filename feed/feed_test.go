package feed_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/feed"
	"github.com/candlefeed/candles-feed/metrics"
	"github.com/candlefeed/candles-feed/network"
)

// fakeAdapter is a minimal adapter.Adapter double for feed tests.
type fakeAdapter struct {
	name        string
	capability  adapter.Capability
	wsIntervals []string
	intervals   map[string]time.Duration

	mu          sync.Mutex
	fetchCalls  int
	fetchResult [][]candle.Data
	fetchErr    error
}

func (f *fakeAdapter) Name() string                  { return f.name }
func (f *fakeAdapter) Capability() adapter.Capability { return f.capability }
func (f *fakeAdapter) GetIntervals() map[string]time.Duration {
	if f.intervals != nil {
		return f.intervals
	}
	return map[string]time.Duration{"1m": time.Minute}
}
func (f *fakeAdapter) GetWSIntervals() []string                        { return f.wsIntervals }
func (f *fakeAdapter) GetTradingPairFormat(pair string) (string, error) { return pair, nil }
func (f *fakeAdapter) GetRESTURL(kind network.EndpointKind) string      { return "http://fake" }
func (f *fakeAdapter) GetWSURL() string                                 { return "ws://fake" }
func (f *fakeAdapter) GetRESTParams(pair, interval string, start, end *time.Time, limit int) (map[string]string, error) {
	return map[string]string{}, nil
}
func (f *fakeAdapter) ParseRESTResponse(raw interface{}) ([]candle.Data, error) { return nil, nil }
func (f *fakeAdapter) GetWSSubscriptionPayload(pair, interval string) (interface{}, error) {
	return map[string]string{"op": "subscribe"}, nil
}
func (f *fakeAdapter) ParseWSMessage(raw interface{}) ([]candle.Data, error) { return nil, nil }
func (f *fakeAdapter) FetchRESTCandles(ctx context.Context, pair, interval string, start, end *time.Time, limit int) ([]candle.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	idx := f.fetchCalls
	if idx >= len(f.fetchResult) {
		idx = len(f.fetchResult) - 1
	}
	f.fetchCalls++
	if idx < 0 {
		return nil, nil
	}
	return f.fetchResult[idx], nil
}
func (f *fakeAdapter) FetchRESTCandlesSynchronous(pair, interval string, start, end *time.Time, limit int) ([]candle.Data, error) {
	return f.FetchRESTCandles(context.Background(), pair, interval, start, end, limit)
}
func (f *fakeAdapter) RateLimit() (int, time.Duration) { return 10, time.Second }

func mustCandle(t *testing.T, ts int64) candle.Data {
	t.Helper()
	d, err := candle.New(ts, 1, 2, 0.5, 1.5, 10, 0, 0, 0, 0)
	require.NoError(t, err)
	return d
}

func TestResolveModeAutoPrefersWebSocketWhenEligible(t *testing.T) {
	fa := &fakeAdapter{
		name:        "fake",
		capability:  adapter.Hybrid,
		wsIntervals: []string{"1m"},
		fetchResult: [][]candle.Data{{mustCandle(t, 1700000000)}},
	}
	f := feed.New(fa, "BTC-USDT", "1m")

	require.NoError(t, f.Start(context.Background(), "auto"))
	defer f.Stop()
	require.Equal(t, feed.Running, f.State())
}

func TestResolveModeExplicitWebSocketFailsWhenIncompatible(t *testing.T) {
	fa := &fakeAdapter{name: "fake", capability: adapter.SyncOnly, wsIntervals: nil}
	f := feed.New(fa, "BTC-USDT", "1m")

	err := f.Start(context.Background(), "websocket")
	require.ErrorIs(t, err, feed.ErrIncompatibleStrategy)
}

func TestResolveModeRestAlwaysAllowed(t *testing.T) {
	fa := &fakeAdapter{name: "fake", capability: adapter.SyncOnly, fetchResult: [][]candle.Data{{mustCandle(t, 1700000000)}}}
	f := feed.New(fa, "BTC-USDT", "1m")

	require.NoError(t, f.Start(context.Background(), "rest"))
	defer f.Stop()
}

func TestStartIsIdempotent(t *testing.T) {
	fa := &fakeAdapter{name: "fake", capability: adapter.SyncOnly, fetchResult: [][]candle.Data{{mustCandle(t, 1700000000)}}}
	f := feed.New(fa, "BTC-USDT", "1m")

	require.NoError(t, f.Start(context.Background(), "rest"))
	require.NoError(t, f.Start(context.Background(), "rest"))
	f.Stop()
}

func TestIngestMergesAndEvictsBeyondMaxRecords(t *testing.T) {
	fa := &fakeAdapter{name: "fake", capability: adapter.SyncOnly}
	f := feed.New(fa, "BTC-USDT", "1m", feed.WithMaxRecords(2))

	f.Ingest([]candle.Data{mustCandle(t, 1700000000), mustCandle(t, 1700000060)})
	f.Ingest([]candle.Data{mustCandle(t, 1700000120)})

	got := f.GetCandles()
	require.Len(t, got, 2)
	require.Equal(t, int64(1700000060), got[0].Timestamp)
	require.Equal(t, int64(1700000120), got[1].Timestamp)
	require.True(t, f.Ready())
	require.Equal(t, int64(1700000060), f.FirstTimestamp())
	require.Equal(t, int64(1700000120), f.LastTimestamp())
}

func TestIngestRecordsMetricsWhenAttached(t *testing.T) {
	fa := &fakeAdapter{name: "fake", capability: adapter.SyncOnly}
	m := metrics.NewFeedMetrics()
	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))

	f := feed.New(fa, "BTC-USDT", "1m", feed.WithMetrics(m))
	f.Ingest([]candle.Data{mustCandle(t, 1700000000), mustCandle(t, 1700000060)})

	ingested := testutil.ToFloat64(m.CandlesIngested.WithLabelValues("fake", "BTC-USDT", "1m"))
	require.Equal(t, float64(2), ingested)

	size := testutil.ToFloat64(m.StoreSize.WithLabelValues("fake", "BTC-USDT", "1m"))
	require.Equal(t, float64(2), size)
}

func TestCheckNetworkReportsConnectedOnSuccess(t *testing.T) {
	fa := &fakeAdapter{name: "fake", capability: adapter.SyncOnly, fetchResult: [][]candle.Data{{mustCandle(t, 1700000000)}}}
	f := feed.New(fa, "BTC-USDT", "1m")

	require.Equal(t, feed.Connected, f.CheckNetwork(context.Background()))
}

func TestCheckNetworkReportsNotConnectedOnError(t *testing.T) {
	fa := &fakeAdapter{name: "fake", capability: adapter.SyncOnly, fetchErr: context.DeadlineExceeded}
	f := feed.New(fa, "BTC-USDT", "1m")

	require.Equal(t, feed.NotConnected, f.CheckNetwork(context.Background()))
}

func TestIngestErrorDoesNotPanic(t *testing.T) {
	fa := &fakeAdapter{name: "fake", capability: adapter.SyncOnly}
	f := feed.New(fa, "BTC-USDT", "1m")

	require.NotPanics(t, func() { f.IngestError(context.DeadlineExceeded) })
}

func TestStopThenGetCandlesPreservesStore(t *testing.T) {
	fa := &fakeAdapter{name: "fake", capability: adapter.SyncOnly, fetchResult: [][]candle.Data{{mustCandle(t, 1700000000)}}}
	f := feed.New(fa, "BTC-USDT", "1m", feed.WithMaxRecords(10))

	require.NoError(t, f.Start(context.Background(), "rest"))
	time.Sleep(20 * time.Millisecond)
	f.Stop()
	require.Equal(t, feed.Stopped, f.State())
	require.Len(t, f.GetCandles(), 1)
	require.NoError(t, f.Start(context.Background(), "rest"))
	f.Stop()
}
