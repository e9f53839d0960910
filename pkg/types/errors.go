package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// Store errors
	ErrStoreUnreachable = errors.New("lock store unreachable")
	ErrKeyNotFound      = errors.New("key not found")
	ErrInvalidTTL       = errors.New("invalid lease TTL")

	// Acquisition errors
	ErrQuorumNotMet            = errors.New("quorum not met")
	ErrValidityExpired         = errors.New("lease validity expired before grant")
	ErrFencingTokenUnavailable = errors.New("fencing token unavailable")

	// Release errors
	ErrReleaseIncomplete = errors.New("release incomplete")

	// Configuration errors
	ErrNoStores      = errors.New("no lock stores configured")
	ErrInvalidQuorum = errors.New("invalid quorum size")

	// Fencing errors
	ErrStaleToken = errors.New("fencing token is stale")
)

// reason strings reported with a failed acquisition
const (
	ReasonQuorumNotMet     = "quorum_not_met"
	ReasonValidityExpired  = "validity_expired"
	ReasonFencingTokenFail = "fencing_token_unavailable"
)

// AcquireError describes why an acquisition attempt failed.
// It carries enough detail for the caller to decide whether to retry and with what TTL.
type AcquireError struct {
	Resource     string
	Reason       string
	Acknowledged int
	Quorum       int
	Elapsed      time.Duration
	TTL          time.Duration
	Validity     time.Duration
	Err          error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire %q: %s (acknowledged %d/%d, elapsed %s of ttl %s, validity %s)",
		e.Resource, e.Reason, e.Acknowledged, e.Quorum, e.Elapsed, e.TTL, e.Validity)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// quorum and validity failures are worth retrying, a missing fencing token is not
// something backoff fixes on its own but still recoverable by the caller
func (e *AcquireError) Retryable() bool {
	return errors.Is(e.Err, ErrQuorumNotMet) || errors.Is(e.Err, ErrValidityExpired)
}

// ReleaseError lists the stores that could not confirm a delete.
// TTL expiry on those stores still frees the resource eventually.
type ReleaseError struct {
	Resource string
	Failed   []string
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release %q: %d store(s) did not confirm: %s",
		e.Resource, len(e.Failed), strings.Join(e.Failed, ", "))
}

func (e *ReleaseError) Unwrap() error { return ErrReleaseIncomplete }
