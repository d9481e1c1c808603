// Package interval parses the canonical interval tokens (spec §3) shared by adapters, strategies
// and the mock server, generalized from the teacher library's inline switch statement in
// candles/binance/api_klines.go (which mapped a fixed set of time.Duration values to Binance's
// own interval strings) into a suffix-table parser covering the full canonical set. It maps
// tokens to seconds only; there is no mapping from seconds back to a token.
package interval

import (
	"fmt"
	"time"
)

// Canonical is the fixed set of interval tokens the core understands (spec §3).
var Canonical = []string{
	"1s", "1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1M",
}

// suffixSeconds is the suffix table from spec §3: s=1, m=60, h=3600, d=86400, w=604800, M=2592000.
var suffixSeconds = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 604800,
	'M': 2592000,
}

// ErrUnknownToken means the supplied string is not a recognized interval token.
type ErrUnknownToken struct{ Token string }

func (e ErrUnknownToken) Error() string { return fmt.Sprintf("interval: unknown token %q", e.Token) }

// Seconds parses an interval token (e.g. "15m", "1d") into its width in seconds, using the
// suffix table from spec §3.
func Seconds(token string) (int64, error) {
	if len(token) < 2 {
		return 0, ErrUnknownToken{Token: token}
	}
	suffix := token[len(token)-1]
	unitSeconds, ok := suffixSeconds[suffix]
	if !ok {
		return 0, ErrUnknownToken{Token: token}
	}
	var n int64
	if _, err := fmt.Sscanf(token[:len(token)-1], "%d", &n); err != nil || n <= 0 {
		return 0, ErrUnknownToken{Token: token}
	}
	return n * unitSeconds, nil
}

// Duration parses an interval token into a time.Duration.
func Duration(token string) (time.Duration, error) {
	secs, err := Seconds(token)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// IsCanonical reports whether token is one of the fixed canonical tokens.
func IsCanonical(token string) bool {
	for _, t := range Canonical {
		if t == token {
			return true
		}
	}
	return false
}
