// Package strategy implements the two ways a CandlesFeed keeps its candle store current: polling
// REST on a timer, or streaming over WebSocket with a REST-backfill seed. Both are generalized
// from the teacher library's candles/iterator package (poll-cache-then-exchange, spec §5) and
// from the yitech-candles adapter/binance/ws.go dial-with-backoff pattern for the WS half, which
// the teacher library never had.
package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/candlefeed/candles-feed/candle"
)

// ErrAlreadyStarted means Start was called twice on the same strategy instance.
var ErrAlreadyStarted = errors.New("strategy: already started")

// Sink receives candles as a collection strategy produces them. A CandlesFeed implements Sink to
// merge incoming candles into its bounded ordered store (spec §5's "processor" hookup).
type Sink interface {
	Ingest(candles []candle.Data)
	IngestError(err error)
}

// CollectionStrategy is the common contract both RESTPollingStrategy and WebSocketStrategy
// satisfy (spec §5 "start/stop/poll_once").
type CollectionStrategy interface {
	// Start begins collection in a background goroutine and returns immediately. Calling Start
	// twice on the same instance returns ErrAlreadyStarted.
	Start(ctx context.Context) error

	// Stop halts collection and blocks until the background goroutine has exited.
	Stop()

	// PollOnce performs a single collection cycle synchronously, for tests and for manual
	// catch-up polling (spec §5).
	PollOnce(ctx context.Context) error
}

// backoff tracks an exponential retry delay bounded to [min, max], the shape used by both
// strategies (grounded on yitech-candles/adapter/binance/ws.go's reconnect loop and the teacher
// library's common.RetryStrategy).
type backoff struct {
	current time.Duration
	min     time.Duration
	max     time.Duration
}

func newBackoff(min, max time.Duration) *backoff {
	return &backoff{current: min, min: min, max: max}
}

func (b *backoff) reset() { b.current = b.min }

func (b *backoff) next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}
