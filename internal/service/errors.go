package service

import (
	"errors"
	"fmt"
)

// Expected domain failures. Handlers translate these into client-facing
// status codes; none of them indicate a bug.
var (
	// ErrAlreadyClaimed means another provider won the accept race. The job
	// is no longer available to the caller.
	ErrAlreadyClaimed = errors.New("job no longer available")

	// ErrOfferExpired means the offer's TTL elapsed before the provider
	// acted on it.
	ErrOfferExpired = errors.New("offer expired")

	// ErrInvalidTransition means the requested action is not legal from the
	// job's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotJobOwner means the caller does not own the job they are acting
	// on.
	ErrNotJobOwner = errors.New("job does not belong to caller")

	// ErrUnknownCategory means the requested category is not one the
	// platform prices.
	ErrUnknownCategory = errors.New("unknown job category")
)

// CounterRangeError reports a counter-offer outside the acceptable band,
// carrying the violated bounds.
type CounterRangeError struct {
	MinNetCents int64
	MaxNetCents int64
}

func (e *CounterRangeError) Error() string {
	return fmt.Sprintf("counter offer outside acceptable range [%d, %d]", e.MinNetCents, e.MaxNetCents)
}
