// Package symbol implements the canonical trading-pair format (spec §6): ASCII uppercase
// <BASE>-<QUOTE>, hyphen-delimited. Adapters translate to/from exchange-native forms from this
// shared representation rather than each re-implementing the split/validate logic, generalizing
// the teacher library's common.MarketSource{BaseAsset, QuoteAsset} fields into a parsed type.
package symbol

import (
	"errors"
	"strings"
)

// ErrInvalidPair means the supplied string is not in canonical "BASE-QUOTE" form.
var ErrInvalidPair = errors.New("symbol: invalid trading pair")

// Pair is a canonical "BASE-QUOTE" trading pair, e.g. BTC-USDT.
type Pair struct {
	Base  string
	Quote string
}

// Parse validates and splits a canonical pair string into its Base/Quote components.
func Parse(s string) (Pair, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, ErrInvalidPair
	}
	base, quote := strings.ToUpper(parts[0]), strings.ToUpper(parts[1])
	if !isASCIIUpper(base) || !isASCIIUpper(quote) {
		return Pair{}, ErrInvalidPair
	}
	return Pair{Base: base, Quote: quote}, nil
}

// String renders the pair back into canonical "BASE-QUOTE" form.
func (p Pair) String() string { return p.Base + "-" + p.Quote }

func isASCIIUpper(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
