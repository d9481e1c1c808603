// Package candle implements CandleData, the immutable OHLCV record that
// flows from adapters into a feed's bounded store.
package candle

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidTimestamp means the raw timestamp supplied to New could not be normalized.
	ErrInvalidTimestamp = errors.New("candle: invalid timestamp")

	// ErrInvariant means one of CandleData's price/volume invariants was violated.
	ErrInvariant = errors.New("candle: invariant violated")
)

// millisThreshold is the boundary above which a raw integer/float timestamp is assumed to be
// milliseconds rather than seconds, per spec: values >= 10^12 are milliseconds.
const millisThreshold = 1_000_000_000_000

// Data is one immutable OHLCV record for one interval bucket. Two Data values for the same
// interval bucket are considered the same entity (equality and hashing key on Timestamp only);
// later arrivals supersede earlier ones.
type Data struct {
	Timestamp               int64
	Open                    float64
	High                    float64
	Low                     float64
	Close                   float64
	Volume                  float64
	QuoteAssetVolume        float64
	NTrades                 int64
	TakerBuyBaseVolume      float64
	TakerBuyQuoteVolume     float64
}

// TimestampMs returns the candle's timestamp in milliseconds, derived from Timestamp.
func (d Data) TimestampMs() int64 { return d.Timestamp * 1000 }

// Key returns the entity key used for equality, hashing and store de-duplication: the timestamp.
func (d Data) Key() int64 { return d.Timestamp }

// RawTimestamp is anything New accepts as a timestamp: an integer (seconds or millis), a float
// (seconds, floored), or an ISO-8601 UTC string.
type RawTimestamp interface{}

// New constructs a validated Data from raw adapter-parsed fields. raw may be an int, int64,
// float64 or string (ISO-8601 UTC); see normalizeTimestamp.
//
// Fails with ErrInvalidTimestamp if raw cannot be normalized, or ErrInvariant if
// low <= open,close <= high and low <= high do not hold, or if any price/volume field is
// negative, infinite or NaN.
func New(raw RawTimestamp, open, high, low, close, volume, quoteAssetVolume float64, nTrades int64, takerBuyBaseVolume, takerBuyQuoteVolume float64) (Data, error) {
	ts, err := normalizeTimestamp(raw)
	if err != nil {
		return Data{}, err
	}

	d := Data{
		Timestamp:           ts,
		Open:                open,
		High:                high,
		Low:                 low,
		Close:               close,
		Volume:              volume,
		QuoteAssetVolume:     quoteAssetVolume,
		NTrades:              nTrades,
		TakerBuyBaseVolume:   takerBuyBaseVolume,
		TakerBuyQuoteVolume:  takerBuyQuoteVolume,
	}
	if err := d.validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}

func (d Data) validate() error {
	for _, f := range []float64{d.Open, d.High, d.Low, d.Close, d.Volume, d.QuoteAssetVolume, d.TakerBuyBaseVolume, d.TakerBuyQuoteVolume} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite price/volume field", ErrInvariant)
		}
		if f < 0 {
			return fmt.Errorf("%w: negative price/volume field", ErrInvariant)
		}
	}
	if d.NTrades < 0 {
		return fmt.Errorf("%w: negative n_trades", ErrInvariant)
	}
	if d.Low > d.High {
		return fmt.Errorf("%w: low %v > high %v", ErrInvariant, d.Low, d.High)
	}
	if d.Low > d.Open || d.Open > d.High {
		return fmt.Errorf("%w: open %v out of [low %v, high %v]", ErrInvariant, d.Open, d.Low, d.High)
	}
	if d.Low > d.Close || d.Close > d.High {
		return fmt.Errorf("%w: close %v out of [low %v, high %v]", ErrInvariant, d.Close, d.Low, d.High)
	}
	return nil
}

// normalizeTimestamp applies the raw-timestamp normalization rule from spec §3: values >= 10^12
// are milliseconds and divided by 1000; floats are floored to integer seconds; ISO-8601 UTC
// strings are parsed.
func normalizeTimestamp(raw RawTimestamp) (int64, error) {
	switch v := raw.(type) {
	case int:
		return normalizeIntTimestamp(int64(v)), nil
	case int64:
		return normalizeIntTimestamp(v), nil
	case int32:
		return normalizeIntTimestamp(int64(v)), nil
	case float64:
		return normalizeIntTimestamp(int64(math.Floor(v))), nil
	case float32:
		return normalizeIntTimestamp(int64(math.Floor(float64(v)))), nil
	case string:
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		return tm.UTC().Unix(), nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidTimestamp, raw)
	}
}

func normalizeIntTimestamp(n int64) int64 {
	if n >= millisThreshold {
		return n / 1000
	}
	return n
}
