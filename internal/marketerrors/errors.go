package marketerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying marketplace failures. Handlers map these to
// HTTP status codes; services wrap them with context via fmt.Errorf and %w.
var (
	// ErrValidation marks rule-violating input: non-positive amounts, bids at
	// or below the current highest, exhausted stock. Recoverable by the
	// caller correcting input.
	ErrValidation = errors.New("validation failed")

	// ErrNotAuthorized marks an actor lacking permission for the target
	// mutation, e.g. a non-owner accepting a bid.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrConflict marks a concurrent mutation detected at commit time. Safe
	// to retry once after re-reading state.
	ErrConflict = errors.New("conflicting concurrent update")

	// ErrNotFound marks a missing listing or bid.
	ErrNotFound = errors.New("record not found")
)

// RateLimitedError reports a blocked attempt and how long until the oldest
// blocking record expires, so clients can show a countdown.
type RateLimitedError struct {
	RemainingSeconds int64
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry in %d seconds", e.RemainingSeconds)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitedError and
// returns it when so.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
