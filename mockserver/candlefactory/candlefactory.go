// Package candlefactory generates deterministic OHLCV candles for the mock exchange server
// (spec §4.6.1: "synthesizes missing candles on demand ... deterministic from a seed +
// (pair, interval, timestamp)"). Grounded on FOTONPHOTOS-PULSEINTEL's
// analytics.CandleBuilder field set (Open, High, Low, Close, Volume, QuoteVolume, TradeCount,
// TakerBuyVolume, TakerBuyQuoteVolume) for what a synthesized candle carries, generalized from a
// stateful streaming builder into a pure function of its key so repeated requests for the same
// window are byte-for-byte identical across calls and server restarts within one test.
package candlefactory

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/interval"
)

// Factory deterministically synthesizes candles from a seed, so a mock server backed by it never
// needs to persist generated history: any (pair, interval, timestamp, seedPrice) always produces
// the same candle.
type Factory struct {
	seed int64
}

// New constructs a Factory. The same seed always produces the same candle for a given
// (pair, interval, timestamp, seedPrice).
func New(seed int64) *Factory {
	return &Factory{seed: seed}
}

// Candle synthesizes the candle for pair/intervalToken at timestampSec, anchored at seedPrice.
// Deterministic and side-effect-free: no RNG state is carried between calls.
func (f *Factory) Candle(pair, intervalToken string, timestampSec int64, seedPrice float64) (candle.Data, error) {
	intervalWidth, err := interval.Seconds(intervalToken)
	if err != nil {
		return candle.Data{}, err
	}
	if seedPrice <= 0 {
		seedPrice = 1
	}

	h := f.hash(pair, intervalToken, timestampSec)

	// A slow sinusoidal trend plus a hash-derived per-candle drift gives a price series that
	// looks organic but needs no state from neighbouring candles.
	step := float64(timestampSec) / float64(intervalWidth)
	trendFrac := math.Sin(step*0.07) * 0.01
	driftFrac := (float64(h%2001) - 1000) / 100000 // +/- 1%
	wickFrac := float64((h>>16)%500) / 100000       // up to 0.5%

	open := seedPrice * (1 + trendFrac)
	closePx := open * (1 + driftFrac)
	high := math.Max(open, closePx) * (1 + wickFrac)
	low := math.Min(open, closePx) * (1 - wickFrac)

	volume := 1 + float64((h>>32)%100000)/1000.0
	quoteVolume := volume * closePx
	trades := 10 + int64(h%500)
	takerBaseVolume := volume * 0.5
	takerQuoteVolume := takerBaseVolume * closePx

	return candle.New(timestampSec, open, high, low, closePx, volume, quoteVolume, trades, takerBaseVolume, takerQuoteVolume)
}

// Window synthesizes every candle on the interval boundary in [startSec, endSec], inclusive,
// ascending. Used by the mock server to fill a requested historical range on demand.
func (f *Factory) Window(pair, intervalToken string, startSec, endSec int64, seedPrice float64) ([]candle.Data, error) {
	intervalWidth, err := interval.Seconds(intervalToken)
	if err != nil {
		return nil, err
	}
	if intervalWidth <= 0 {
		return nil, fmt.Errorf("candlefactory: non-positive interval width for %s", intervalToken)
	}

	first := (startSec / intervalWidth) * intervalWidth
	if first < startSec {
		first += intervalWidth
	}

	out := make([]candle.Data, 0)
	for ts := first; ts <= endSec; ts += intervalWidth {
		d, err := f.Candle(pair, intervalToken, ts, seedPrice)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *Factory) hash(pair, intervalToken string, timestampSec int64) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%s|%d", f.seed, pair, intervalToken, timestampSec)
	return h.Sum64()
}
