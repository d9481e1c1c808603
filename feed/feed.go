// Package feed implements CandlesFeed: the per-market, per-interval store that a collection
// strategy keeps current (spec §4.5). Grounded on the teacher library's candles/candles.go
// Market type for its lifecycle shape (construct, start, iterate) and candles/iterator for the
// cache-then-exchange-then-gap-patch flow, generalized here into an explicit strategy +
// processor pipeline instead of a pull-driven iterator.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/feed/backfillcache"
	"github.com/candlefeed/candles-feed/interval"
	"github.com/candlefeed/candles-feed/metrics"
	"github.com/candlefeed/candles-feed/processor"
	"github.com/candlefeed/candles-feed/strategy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// backfillCacheBuckets is how many 500-candle buckets a feed's backfill cache keeps, matching the
// teacher's default cache sizing order of magnitude (candles/candles.go's NewMemoryCache calls).
const backfillCacheBuckets = 16

// DefaultMaxRecords is the feed store's default capacity (spec §3 "bounded by max_records
// (default 150)").
const DefaultMaxRecords = 150

// NetworkStatus is check_network()'s result (spec §4.5).
type NetworkStatus int

const (
	NotConnected NetworkStatus = iota
	Connected
)

func (s NetworkStatus) String() string {
	if s == Connected {
		return "connected"
	}
	return "not_connected"
}

// State is a feed's lifecycle state (spec §4.5 start/stop RUNNING/STOPPED).
type State int

const (
	Stopped State = iota
	Running
)

// ErrIncompatibleStrategy means an explicit strategy request ("websocket") cannot be honored by
// this adapter/interval combination (spec §4.4.2 "fails with a clear error if incompatible").
var ErrIncompatibleStrategy = errors.New("feed: requested strategy incompatible with adapter")

// Option configures a CandlesFeed at construction time.
type Option func(*CandlesFeed)

// WithMaxRecords overrides the default store capacity.
func WithMaxRecords(n int) Option {
	return func(f *CandlesFeed) { f.maxRecords = n }
}

// WithLogger overrides the feed's logger (defaults to the zerolog global logger, spec §1a).
func WithLogger(logger zerolog.Logger) Option {
	return func(f *CandlesFeed) { f.logger = logger }
}

// WithBackfillRetryBudget overrides how many fetch attempts in total a detected gap gets before
// being abandoned for the current cycle (spec §4.4.1 "bounded retry budget").
func WithBackfillRetryBudget(n int) Option {
	return func(f *CandlesFeed) { f.backfillRetryBudget = n }
}

// WithMetrics attaches a FeedMetrics instance the feed updates as it runs. Unset by default: a
// feed with no metrics attached runs with zero prometheus overhead.
func WithMetrics(m *metrics.FeedMetrics) Option {
	return func(f *CandlesFeed) { f.metrics = m }
}

// CandlesFeed owns one adapter instance, one collection strategy at a time, and the bounded
// ordered candle store for a single (exchange, pair, interval) tuple.
type CandlesFeed struct {
	adapter       adapter.Adapter
	pair          string
	intervalToken string
	maxRecords    int
	backfillRetryBudget int
	logger        zerolog.Logger

	backfillCache *backfillcache.Cache
	metrics       *metrics.FeedMetrics

	mu           sync.RWMutex
	store        []candle.Data
	state        State
	activeStrat  strategy.CollectionStrategy
	activeMode   string
	ctx          context.Context
	cancel       context.CancelFunc
}

// New constructs a CandlesFeed. It owns a, which callers must not share across feeds concurrently
// (spec §4.3 "the client is passed into adapters and strategies explicitly" — the adapter itself
// is still feed-exclusive).
func New(a adapter.Adapter, pair, intervalToken string, opts ...Option) *CandlesFeed {
	f := &CandlesFeed{
		adapter:             a,
		pair:                pair,
		intervalToken:       intervalToken,
		maxRecords:          DefaultMaxRecords,
		backfillRetryBudget: 3,
		logger:              log.Logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	if secs, err := interval.Seconds(intervalToken); err == nil {
		f.backfillCache = backfillcache.New(secs, backfillCacheBuckets)
	}
	return f
}

// Start selects and launches a collection strategy, idempotently. mode is "auto", "rest" or
// "websocket" (spec §4.4 tie-break rule).
func (f *CandlesFeed) Start(ctx context.Context, mode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Running {
		return nil
	}

	resolvedMode, err := f.resolveMode(mode)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.ctx = runCtx
	f.cancel = cancel

	strat := f.buildStrategy(resolvedMode)
	if err := strat.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("starting %s strategy: %w", resolvedMode, err)
	}

	f.activeStrat = strat
	f.activeMode = resolvedMode
	f.state = Running
	return nil
}

// resolveMode applies spec §4.4's tie-break: "auto" prefers WebSocket when the adapter supports
// async I/O and streams this interval; an explicit mode fails clearly if incompatible.
func (f *CandlesFeed) resolveMode(mode string) (string, error) {
	wsEligible := f.adapter.Capability().SupportsAsync() && streamsInterval(f.adapter, f.intervalToken)

	switch mode {
	case "", "auto":
		if wsEligible {
			return "websocket", nil
		}
		return "rest", nil
	case "websocket":
		if !wsEligible {
			return "", fmt.Errorf("%w: %s cannot stream %s over websocket", ErrIncompatibleStrategy, f.adapter.Name(), f.intervalToken)
		}
		return "websocket", nil
	case "rest":
		return "rest", nil
	default:
		return "", fmt.Errorf("%w: unknown strategy mode %q", ErrIncompatibleStrategy, mode)
	}
}

func streamsInterval(a adapter.Adapter, token string) bool {
	for _, t := range a.GetWSIntervals() {
		if t == token {
			return true
		}
	}
	return false
}

func (f *CandlesFeed) buildStrategy(mode string) strategy.CollectionStrategy {
	if mode == "websocket" {
		return &strategy.WebSocketStrategy{
			Adapter:       f.adapter,
			Pair:          f.pair,
			IntervalToken: f.intervalToken,
			BackfillLimit: f.maxRecords,
			Sink:          f,
			Logger:        f.logger,
			Metrics:       f.metrics,
		}
	}
	return &strategy.RESTPollingStrategy{
		Adapter:       f.adapter,
		Pair:          f.pair,
		IntervalToken: f.intervalToken,
		Sink:          f,
		Logger:        f.logger,
	}
}

// Stop cancels the active strategy and transitions to STOPPED. The store is preserved and the
// feed may be Start-ed again. Idempotent.
func (f *CandlesFeed) Stop() {
	f.mu.Lock()
	if f.state != Running {
		f.mu.Unlock()
		return
	}
	strat := f.activeStrat
	cancel := f.cancel
	f.mu.Unlock()

	cancel()
	strat.Stop()

	f.mu.Lock()
	f.state = Stopped
	f.activeStrat = nil
	f.mu.Unlock()
}

// GetCandles returns a snapshot copy of the store, safe against concurrent mutation.
func (f *CandlesFeed) GetCandles() []candle.Data {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]candle.Data, len(f.store))
	copy(out, f.store)
	return out
}

// FirstTimestamp returns the store's oldest candle timestamp, or 0 if the store is empty.
func (f *CandlesFeed) FirstTimestamp() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.store) == 0 {
		return 0
	}
	return f.store[0].Timestamp
}

// LastTimestamp returns the store's newest candle timestamp, or 0 if the store is empty.
func (f *CandlesFeed) LastTimestamp() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.store) == 0 {
		return 0
	}
	return f.store[len(f.store)-1].Timestamp
}

// Ready reports whether the store has reached capacity (spec §3 "ready predicate").
func (f *CandlesFeed) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.store) >= f.maxRecords
}

// State reports the feed's current lifecycle state.
func (f *CandlesFeed) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// CheckNetwork issues a lightweight REST call and reports connectivity. Never returns an error:
// any transport failure is reported as NotConnected (spec §4.5).
func (f *CandlesFeed) CheckNetwork(ctx context.Context) NetworkStatus {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	status := Connected
	if _, err := f.adapter.FetchRESTCandles(checkCtx, f.pair, f.intervalToken, nil, nil, 1); err != nil {
		status = NotConnected
	}
	if f.metrics != nil {
		f.metrics.NetworkChecks.WithLabelValues(f.adapter.Name(), f.pair, status.String()).Inc()
	}
	return status
}

// Ingest implements strategy.Sink: sanitizes, merges incoming candles into the store, evicts
// down to maxRecords, detects gaps, and issues targeted backfill for each one (spec §4.4.1,
// §4.5's catch-up reads).
func (f *CandlesFeed) Ingest(candles []candle.Data) {
	valid := processor.Sanitize(candles, func(candle.Data) bool { return true })
	if len(valid) == 0 {
		return
	}

	f.mu.Lock()
	f.store = processor.Merge(f.store, valid)
	if len(f.store) > f.maxRecords {
		f.store = f.store[len(f.store)-f.maxRecords:]
	}
	if f.backfillCache != nil {
		f.backfillCache.Put(valid)
	}
	intervalSecs, _ := interval.Seconds(f.intervalToken)
	gaps := processor.DetectGaps(f.store, intervalSecs)
	storeSize := len(f.store)
	ctx := f.ctx
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.CandlesIngested.WithLabelValues(f.adapter.Name(), f.pair, f.intervalToken).Add(float64(len(valid)))
		f.metrics.GapsDetected.WithLabelValues(f.adapter.Name(), f.pair, f.intervalToken).Add(float64(len(gaps)))
		f.metrics.StoreSize.WithLabelValues(f.adapter.Name(), f.pair, f.intervalToken).Set(float64(storeSize))
	}

	if ctx == nil || len(gaps) == 0 {
		return
	}
	for _, g := range gaps {
		f.backfillGap(ctx, g)
	}
}

// IngestError implements strategy.Sink: logs a transport/protocol error surfaced by the active
// strategy. It never propagates to the caller (spec §4.5 "does not raise to the caller").
func (f *CandlesFeed) IngestError(err error) {
	f.logger.Warn().Err(err).Str("adapter", f.adapter.Name()).Str("pair", f.pair).Msg("feed ingest error")
}

func (f *CandlesFeed) backfillGap(ctx context.Context, g processor.Gap) {
	if f.backfillCache != nil {
		if cached, err := f.backfillCache.Get(g.PrevTimestamp); err == nil && cached[len(cached)-1].Timestamp >= g.NextTimestamp {
			f.applyBackfill(cached)
			return
		}
	}

	start := time.UnixMilli(g.PrevTimestamp * 1000)
	end := time.UnixMilli(g.NextTimestamp * 1000)

	var lastErr error
	for attempt := 0; attempt < f.backfillRetryBudget; attempt++ {
		if f.metrics != nil {
			f.metrics.BackfillAttempts.WithLabelValues(f.adapter.Name(), f.pair, f.intervalToken).Inc()
		}
		candles, err := f.adapter.FetchRESTCandles(ctx, f.pair, f.intervalToken, &start, &end, 0)
		if err == nil {
			if f.backfillCache != nil {
				f.backfillCache.Put(candles)
			}
			f.applyBackfill(candles)
			return
		}
		lastErr = err
	}
	if f.metrics != nil {
		f.metrics.BackfillFailures.WithLabelValues(f.adapter.Name(), f.pair, f.intervalToken).Inc()
	}
	f.logger.Warn().Err(lastErr).Int64("gap_start", g.PrevTimestamp).Int64("gap_end", g.NextTimestamp).Msg("gap backfill exhausted retry budget")
}

func (f *CandlesFeed) applyBackfill(candles []candle.Data) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store = processor.Merge(f.store, candles)
	if len(f.store) > f.maxRecords {
		f.store = f.store[len(f.store)-f.maxRecords:]
	}
}

var _ strategy.Sink = (*CandlesFeed)(nil)
