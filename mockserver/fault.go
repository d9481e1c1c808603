package mockserver

import "math/rand"

// FaultConfig is the set of independently-rollable faults a route can simulate (spec §4.6.1,
// supplemented feature #3: per-route, not just global, scoping). Zero value injects nothing.
type FaultConfig struct {
	// DropProbability is the chance the handler closes the connection without writing a
	// response at all.
	DropProbability float64
	// MalformedJSONProbability is the chance a syntactically broken JSON body is written instead
	// of the plugin's well-formed payload.
	MalformedJSONProbability float64
	// Error5xxProbability is the chance a transient 502 is returned instead of the real payload.
	Error5xxProbability float64
}

// faultOutcome names which fault (if any) a roll selected.
type faultOutcome int

const (
	faultNone faultOutcome = iota
	faultDrop
	faultMalformedJSON
	fault5xx
)

// roll draws one outcome from cfg using rng, checking drop, then malformed, then 5xx in that
// order so a test asserting "drop probability 1.0" never also risks tripping the others.
func (cfg FaultConfig) roll(rng *rand.Rand) faultOutcome {
	if cfg.DropProbability > 0 && rng.Float64() < cfg.DropProbability {
		return faultDrop
	}
	if cfg.MalformedJSONProbability > 0 && rng.Float64() < cfg.MalformedJSONProbability {
		return faultMalformedJSON
	}
	if cfg.Error5xxProbability > 0 && rng.Float64() < cfg.Error5xxProbability {
		return fault5xx
	}
	return faultNone
}
