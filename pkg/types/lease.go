package types

import "time"

// a lease request is created by the caller and consumed by one acquisition attempt
// the token is opaque and unique per attempt, it is what the stores hold as the key value
type LeaseRequest struct {
	Resource string
	TTL      time.Duration
	Token    string
}

// a lease grant is a successful acquisition
// invariant: len(Acknowledged) >= quorum and Validity > 0 when handed to the caller
type LeaseGrant struct {
	Resource     string
	Token        string
	Acknowledged []string      //identities of stores that accepted the set
	Validity     time.Duration //remaining safe validity at grant time
	FencingToken uint64
	CreatedAt    time.Time
}

// remaining validity as of now, never negative
func (g *LeaseGrant) Remaining(now time.Time) time.Duration {
	if left := g.Validity - now.Sub(g.CreatedAt); left > 0 {
		return left
	}
	return 0
}

// whole milliseconds covering ttl, rounded up so a store never holds a key for less than asked
func CeilMillis(ttl time.Duration) int64 {
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}

// true once the validity window computed at grant time has passed
func (g *LeaseGrant) Expired(now time.Time) bool {
	return g.Remaining(now) <= 0
}

// per-store result of one operation, discarded after aggregation
type AcquisitionOutcome struct {
	Store   string
	Success bool
	Elapsed time.Duration
	Err     error
}
