// Package processor implements the three pure, deterministic operations over candle sequences
// that form the only path by which candles enter a feed's store: sanitize, merge and gap
// detection. Grounded on the teacher library's candles/common.PatchCandlestickHoles, generalized
// from hole-patching (clone the neighbour) to gap *reporting* (schedule a targeted backfill)
// per spec §4.1.
package processor

import "sort"

// Gap is a (prevTimestamp, nextTimestamp) pair where the delta between consecutive store entries
// exceeds one interval width.
type Gap struct {
	PrevTimestamp int64
	NextTimestamp int64
}

// Validator is satisfied by candle.Data; kept as a narrow interface so this package never imports
// candle and stays a leaf. validate() is the invariant check the candle package already performs
// at construction time, so Sanitize here re-checks via the caller-supplied predicate instead of
// duplicating candle's validation rules.
type Validator[T any] func(T) bool

// Keyed is satisfied by any candle-like type that exposes its de-duplication key (timestamp).
type Keyed interface {
	Key() int64
}

// Sanitize discards elements of xs for which valid returns false, preserving order. Candles built
// via candle.New are already invariant-checked, so in practice valid is used to apply feed-local
// policy (e.g. reject timestamps outside an expected window) rather than re-validate OHLC
// invariants.
func Sanitize[T any](xs []T, valid func(T) bool) []T {
	out := make([]T, 0, len(xs))
	for _, x := range xs {
		if valid(x) {
			out = append(out, x)
		}
	}
	return out
}

// Merge returns the union of existing and incoming keyed by Key(), with incoming winning on
// collisions ("last writer wins"), sorted ascending by key. Merge is idempotent: merging the same
// incoming slice twice yields the same result as merging it once.
func Merge[T Keyed](existing, incoming []T) []T {
	byKey := make(map[int64]T, len(existing)+len(incoming))
	for _, x := range existing {
		byKey[x.Key()] = x
	}
	for _, x := range incoming {
		byKey[x.Key()] = x
	}

	out := make([]T, 0, len(byKey))
	for _, v := range byKey {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// DetectGaps returns the list of (prevTs, nextTs) pairs in a strictly-ascending sequence of keyed
// elements for which nextTs-prevTs exceeds intervalSeconds. Used by collection strategies to
// schedule targeted backfill reads.
func DetectGaps[T Keyed](xs []T, intervalSeconds int64) []Gap {
	gaps := make([]Gap, 0)
	for i := 1; i < len(xs); i++ {
		prev, next := xs[i-1].Key(), xs[i].Key()
		if next-prev > intervalSeconds {
			gaps = append(gaps, Gap{PrevTimestamp: prev, NextTimestamp: next})
		}
	}
	return gaps
}
