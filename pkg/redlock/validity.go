package redlock

import (
	"math"
	"time"
)

// Validity is the time a lease can still be trusted after elapsed of its ttl went by.
// drift = round(ttl * driftFactor) + driftMargin covers clock rate differences
// between the stores. Zero or negative means the lease must not be used.
func Validity(ttl, elapsed time.Duration, driftFactor float64, driftMargin time.Duration) time.Duration {
	return ttl - elapsed - Drift(ttl, driftFactor, driftMargin)
}

func Drift(ttl time.Duration, driftFactor float64, driftMargin time.Duration) time.Duration {
	return time.Duration(math.Round(float64(ttl)*driftFactor)) + driftMargin
}
