package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/interval"
	"github.com/rs/zerolog"
)

// defaultMinBackoff/defaultMaxBackoff bound the retry delay after a failed poll (spec §5,
// "exponential backoff 1s to 60s").
const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 60 * time.Second
)

// RESTPollingStrategy periodically calls an adapter's FetchRESTCandles and forwards results to a
// Sink. Grounded on the teacher library's candles/iterator.Impl.Next poll loop, generalized from
// pull-on-demand into a self-driving ticker loop with its own backoff.
type RESTPollingStrategy struct {
	Adapter       adapter.Adapter
	Pair          string
	IntervalToken string
	PollPeriod    time.Duration
	Sink          Sink
	Logger        zerolog.Logger

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
	lastSeen time.Time
}

// Start begins polling in a background goroutine.
func (s *RESTPollingStrategy) Start(ctx context.Context) error {
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

// Stop halts polling and waits for the background goroutine to exit.
func (s *RESTPollingStrategy) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.doneCh
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *RESTPollingStrategy) run(ctx context.Context) {
	defer close(s.doneCh)

	period := s.PollPeriod
	if period <= 0 {
		period = time.Minute
		if secs, err := interval.Seconds(s.IntervalToken); err == nil {
			period = time.Duration(secs) * time.Second
		}
		// Clamp to [1s, 60s] to bound tail latency on long intervals (spec §4.4.1).
		if period < time.Second {
			period = time.Second
		}
		if period > 60*time.Second {
			period = 60 * time.Second
		}
	}

	b := newBackoff(defaultMinBackoff, defaultMaxBackoff)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if err := s.pollOnceRecovered(ctx); err != nil {
			s.Logger.Warn().Err(err).Str("adapter", s.Adapter.Name()).Str("pair", s.Pair).Msg("poll failed, backing off")
			delay := b.next()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}
		b.reset()

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// pollOnceRecovered runs PollOnce with panic recovery, so a misbehaving adapter cannot silently
// kill the polling goroutine (spec §4.5 "a strategy crash is logged and the feed auto-restarts").
func (s *RESTPollingStrategy) pollOnceRecovered(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rest polling strategy panicked: %v", r)
		}
	}()
	return s.PollOnce(ctx)
}

// PollOnce fetches one batch of REST candles since the last-seen timestamp and forwards it.
func (s *RESTPollingStrategy) PollOnce(ctx context.Context) error {
	var start *time.Time
	s.mu.Lock()
	if !s.lastSeen.IsZero() {
		t := s.lastSeen
		start = &t
	}
	s.mu.Unlock()

	candles, err := s.Adapter.FetchRESTCandles(ctx, s.Pair, s.IntervalToken, start, nil, 0)
	if err != nil {
		s.Sink.IngestError(err)
		return err
	}
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	last := candles[len(candles)-1]
	s.lastSeen = time.UnixMilli(last.TimestampMs())
	s.mu.Unlock()

	s.Sink.Ingest(candles)
	return nil
}
