package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/metrics"
	"github.com/candlefeed/candles-feed/network"
	"github.com/rs/zerolog"
)

// ErrWSIntervalNotStreamed means the requested interval is not in the adapter's
// GetWSIntervals(), the selection guard from spec §5/§8 property 8.
var ErrWSIntervalNotStreamed = errors.New("strategy: interval not streamed over websocket")

// WSState is a WebSocketStrategy's connection lifecycle state (spec §5's state machine).
type WSState int

const (
	Disconnected WSState = iota
	Connecting
	Subscribing
	Streaming
)

func (s WSState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Subscribing:
		return "subscribing"
	case Streaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

const (
	defaultMinWSBackoff = time.Second
	defaultMaxWSBackoff = 60 * time.Second

	// minLivenessTimeout is the floor of "max(3×interval, 30s)" (spec §4.4/§5 "heartbeat /
	// liveness") when the interval itself is shorter than 10s.
	minLivenessTimeout = 30 * time.Second

	// cleanStreamingResetThreshold is how long a stream must run without error before the
	// reconnect backoff resets to its minimum (spec §4.4 "reset on a clean streaming interval of
	// >= 60s").
	cleanStreamingResetThreshold = 60 * time.Second

	// jitterFraction is the +/-20% reconnect jitter spec §4.4 specifies.
	jitterFraction = 0.2
)

// WebSocketStrategy streams candles over an adapter's WebSocket channel, seeded by one REST
// backfill call. Grounded on yitech-candles/adapter/binance/ws.go's dial-reconnect-with-backoff
// loop, generalized across adapters via the adapter.Adapter contract instead of being hardcoded
// per exchange.
type WebSocketStrategy struct {
	Adapter       adapter.Adapter
	Pair          string
	IntervalToken string
	BackfillLimit int
	Sink          Sink
	Logger        zerolog.Logger
	TimeNowFunc   func() time.Time
	Metrics       *metrics.FeedMetrics

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	state   WSState
}

// State reports the current connection lifecycle state.
func (s *WebSocketStrategy) State() WSState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *WebSocketStrategy) setState(st WSState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start validates the requested interval is WS-streamable, then begins streaming in a background
// goroutine. Each connect and reconnect re-seeds via PollOnce before the WebSocket dial.
func (s *WebSocketStrategy) Start(ctx context.Context) error {
	if !streamsInterval(s.Adapter, s.IntervalToken) {
		return fmt.Errorf("%w: %s does not stream %s over websocket", ErrWSIntervalNotStreamed, s.Adapter.Name(), s.IntervalToken)
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

// Stop halts streaming and waits for the background goroutine to exit.
func (s *WebSocketStrategy) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.doneCh
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.setState(Disconnected)
}

// PollOnce performs one REST backfill call (the WS seed, and the manual catch-up path).
func (s *WebSocketStrategy) PollOnce(ctx context.Context) error {
	candles, err := s.Adapter.FetchRESTCandles(ctx, s.Pair, s.IntervalToken, nil, nil, s.BackfillLimit)
	if err != nil {
		s.Sink.IngestError(err)
		return err
	}
	if len(candles) > 0 {
		s.Sink.Ingest(candles)
	}
	return nil
}

func (s *WebSocketStrategy) run(ctx context.Context) {
	defer close(s.doneCh)

	b := newBackoff(defaultMinWSBackoff, defaultMaxWSBackoff)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.PollOnce(ctx); err != nil {
			s.Logger.Warn().Err(err).Msg("websocket strategy: backfill seed failed, streaming anyway")
		}
		streamed, err := s.streamOnceRecovered(ctx)
		if streamed >= cleanStreamingResetThreshold {
			b.reset()
		}
		if err != nil && ctx.Err() == nil {
			s.Logger.Warn().Err(err).Str("adapter", s.Adapter.Name()).Msg("websocket stream ended, reconnecting")
			s.recordRestart()
			delay := b.next()
			jittered := applyJitter(delay)
			select {
			case <-time.After(jittered):
			case <-ctx.Done():
				return
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// recordRestart increments the StrategyRestarts counter when metrics are attached.
func (s *WebSocketStrategy) recordRestart() {
	if s.Metrics == nil {
		return
	}
	s.Metrics.StrategyRestarts.WithLabelValues(s.Adapter.Name(), s.Pair, s.IntervalToken, "websocket").Inc()
}

// applyJitter returns d scaled by a uniformly random factor in [1-jitterFraction, 1+jitterFraction].
func applyJitter(d time.Duration) time.Duration {
	spread := int64(float64(d) * jitterFraction)
	if spread <= 0 {
		return d
	}
	return d - time.Duration(spread) + time.Duration(rand.Int63n(2*spread+1))
}

func (s *WebSocketStrategy) livenessTimeout() time.Duration {
	if width, ok := s.Adapter.GetIntervals()[s.IntervalToken]; ok {
		if t := 3 * width; t > minLivenessTimeout {
			return t
		}
	}
	return minLivenessTimeout
}

// streamOnceRecovered runs streamOnce with panic recovery, so a misbehaving adapter cannot
// silently kill the streaming goroutine (spec §4.5 "a strategy crash is logged and the feed
// auto-restarts").
func (s *WebSocketStrategy) streamOnceRecovered(ctx context.Context) (streamed time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("websocket strategy panicked: %v", r)
		}
	}()
	return s.streamOnce(ctx)
}

// streamOnce runs one WebSocket session and returns how long it stayed in the Streaming state
// before ending, plus any error that ended it (nil on clean shutdown).
func (s *WebSocketStrategy) streamOnce(ctx context.Context) (time.Duration, error) {
	s.setState(Connecting)
	client := clientFor(s.Adapter)
	conn, err := client.EstablishWSConnection(ctx, s.Adapter.GetWSURL())
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.Disconnect()

	s.setState(Subscribing)
	payload, err := s.Adapter.GetWSSubscriptionPayload(s.Pair, s.IntervalToken)
	if err != nil {
		return 0, fmt.Errorf("build subscription: %w", err)
	}
	if err := conn.Send(ctx, payload); err != nil {
		return 0, fmt.Errorf("subscribe: %w", err)
	}

	s.setState(Streaming)
	streamStart := s.timeNow()
	liveness := s.livenessTimeout()
	for {
		select {
		case <-ctx.Done():
			return s.timeNow().Sub(streamStart), nil
		case <-time.After(liveness):
			return s.timeNow().Sub(streamStart), fmt.Errorf("%w: no messages within %v", network.ErrTransport, liveness)
		case msg, ok := <-conn.Messages():
			if !ok {
				return s.timeNow().Sub(streamStart), errors.New("websocket: message channel closed")
			}
			if msg.Err != nil {
				return s.timeNow().Sub(streamStart), msg.Err
			}
			candles, err := s.Adapter.ParseWSMessage(msg.Data)
			if err != nil {
				s.Sink.IngestError(err)
				continue
			}
			if len(candles) > 0 {
				s.Sink.Ingest(candles)
			}
		}
	}
}

func (s *WebSocketStrategy) timeNow() time.Time {
	if s.TimeNowFunc != nil {
		return s.TimeNowFunc()
	}
	return time.Now()
}

func streamsInterval(a adapter.Adapter, token string) bool {
	for _, t := range a.GetWSIntervals() {
		if t == token {
			return true
		}
	}
	return false
}

// clientFor returns the NetworkClient an adapter uses to dial its WebSocket, via the
// URLPatchable-adjacent accessor every Base-embedding adapter exposes.
func clientFor(a adapter.Adapter) *network.Client {
	type networkClientHolder interface{ NetworkClient() *network.Client }
	if h, ok := a.(networkClientHolder); ok {
		return h.NetworkClient()
	}
	return network.New()
}
