package strategy_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/network"
	"github.com/candlefeed/candles-feed/strategy"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is a minimal adapter.Adapter double for strategy tests.
type fakeAdapter struct {
	name        string
	capability  adapter.Capability
	wsIntervals []string

	mu          sync.Mutex
	fetchCalls  int
	fetchResult [][]candle.Data
	fetchErr    error
}

func (f *fakeAdapter) Name() string                     { return f.name }
func (f *fakeAdapter) Capability() adapter.Capability    { return f.capability }
func (f *fakeAdapter) GetIntervals() map[string]time.Duration {
	return map[string]time.Duration{"1m": time.Minute}
}
func (f *fakeAdapter) GetWSIntervals() []string { return f.wsIntervals }
func (f *fakeAdapter) GetTradingPairFormat(pair string) (string, error) { return pair, nil }
func (f *fakeAdapter) GetRESTURL(kind network.EndpointKind) string     { return "http://fake" }
func (f *fakeAdapter) GetWSURL() string                                { return "ws://fake" }
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

// fakeSink records ingested candles and errors.
type fakeSink struct {
	mu      sync.Mutex
	batches [][]candle.Data
	errs    []error
}

func (s *fakeSink) Ingest(candles []candle.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, candles)
}
func (s *fakeSink) IngestError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}
func (s *fakeSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func mustCandle(t *testing.T, ts int64) candle.Data {
	t.Helper()
	d, err := candle.New(ts, 1, 2, 0.5, 1.5, 10, 0, 0, 0, 0)
	require.NoError(t, err)
	return d
}

func TestRESTPollingStrategyPollOnceIngests(t *testing.T) {
	fa := &fakeAdapter{name: "fake", fetchResult: [][]candle.Data{{mustCandle(t, 1700000000)}}}
	sink := &fakeSink{}
	s := &strategy.RESTPollingStrategy{Adapter: fa, Pair: "BTC-USDT", IntervalToken: "1m", Sink: sink}

	require.NoError(t, s.PollOnce(context.Background()))
	require.Equal(t, 1, sink.batchCount())
}

func TestRESTPollingStrategyPollOnceError(t *testing.T) {
	fa := &fakeAdapter{name: "fake", fetchErr: context.DeadlineExceeded}
	sink := &fakeSink{}
	s := &strategy.RESTPollingStrategy{Adapter: fa, Pair: "BTC-USDT", IntervalToken: "1m", Sink: sink}

	err := s.PollOnce(context.Background())
	require.Error(t, err)
	require.Len(t, sink.errs, 1)
}

func TestRESTPollingStrategyStartStop(t *testing.T) {
	fa := &fakeAdapter{name: "fake", fetchResult: [][]candle.Data{{mustCandle(t, 1700000000)}}}
	sink := &fakeSink{}
	s := &strategy.RESTPollingStrategy{Adapter: fa, Pair: "BTC-USDT", IntervalToken: "1m", PollPeriod: 10 * time.Millisecond, Sink: sink}

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), strategy.ErrAlreadyStarted)
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	require.GreaterOrEqual(t, sink.batchCount(), 1)
}
