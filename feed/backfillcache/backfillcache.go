// Package backfillcache is a bucketed LRU cache of recently-fetched candle windows, sitting
// between a CandlesFeed and its adapter's FetchRESTCandles so that retried backfill reads for a
// timestamp range the feed has already seen don't re-issue a network call (spec §2a: "feed's
// REST catch-up/backfill response cache, generalized from the teacher's per-(metric,interval)
// LRU"). Adapted directly from the teacher library's candles/cache.MemoryCache, narrowed from a
// multi-interval cache keyed by an arbitrary metric name to a single-(pair,interval) cache since
// one CandlesFeed instance only ever backfills its own pair and interval.
package backfillcache

import (
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/candlefeed/candles-feed/candle"
)

// bucketSize is how many consecutive candles one LRU entry holds, matching the teacher's magic
// 500-candlestick bucket.
const bucketSize = 500

// ErrCacheMiss means the cache has no entry covering the requested timestamp.
var ErrCacheMiss = errors.New("backfillcache: cache miss")

// Cache buckets candle.Data into fixed-size, interval-aligned windows so a feed's backfill path
// can check for a previously-fetched window before issuing FetchRESTCandles again.
type Cache struct {
	intervalSeconds int64
	lru             *lru.Cache
}

// New constructs a Cache for one (pair, interval) with room for size buckets (size*bucketSize
// candles of effective capacity). size<=0 is treated as 1, matching the teacher's guard.
func New(intervalSeconds int64, size int) *Cache {
	if size <= 0 {
		size = 1
	}
	l, _ := lru.New(size)
	return &Cache{intervalSeconds: intervalSeconds, lru: l}
}

// Put inserts candles into their buckets. candles need not be contiguous or bucket-aligned;
// each is placed into the bucket its own timestamp falls into.
func (c *Cache) Put(candles []candle.Data) {
	for _, d := range candles {
		key, index := c.bucketFor(d.Timestamp)
		raw, ok := c.lru.Get(key)
		var bucket [bucketSize]candle.Data
		if ok {
			bucket = raw.([bucketSize]candle.Data)
		}
		bucket[index] = d
		c.lru.Add(key, bucket)
	}
}

// Get returns every contiguous candle starting exactly at startTimestamp up to the end of its
// bucket, stopping at the first unset slot. ErrCacheMiss if the bucket isn't cached or its first
// requested slot is empty.
func (c *Cache) Get(startTimestamp int64) ([]candle.Data, error) {
	key, index := c.bucketFor(startTimestamp)
	raw, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	bucket := raw.([bucketSize]candle.Data)
	if bucket[index].Timestamp == 0 && index != 0 {
		// A zero-value candle.Data at a non-zero bucket slot means nothing was ever stored there.
		return nil, ErrCacheMiss
	}

	out := make([]candle.Data, 0, bucketSize-index)
	for i := index; i < bucketSize; i++ {
		if bucket[i] == (candle.Data{}) {
			break
		}
		out = append(out, bucket[i])
	}
	if len(out) == 0 {
		return nil, ErrCacheMiss
	}
	return out, nil
}

func (c *Cache) bucketFor(timestamp int64) (time.Time, int) {
	t := time.Unix(timestamp, 0).UTC()
	bucketWidth := time.Duration(c.intervalSeconds) * time.Second * bucketSize
	truncated := t.Truncate(bucketWidth)
	index := int(t.Sub(truncated) / (time.Duration(c.intervalSeconds) * time.Second))
	return truncated, index
}
