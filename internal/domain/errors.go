package domain

import "errors"

// Error taxonomy surfaced to clients. Domain services and the hub return
// these (possibly wrapped); the transport maps them to protocol error codes.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTooManyRequests = errors.New("too many requests")
	ErrValidation      = errors.New("validation failed")
	ErrInternal        = errors.New("internal error")
)

// IsKnown reports whether err belongs to the taxonomy. Anything else is an
// unexpected failure and must be logged and surfaced as ErrInternal.
func IsKnown(err error) bool {
	for _, known := range []error{
		ErrNotFound,
		ErrForbidden,
		ErrUnauthorized,
		ErrTooManyRequests,
		ErrValidation,
		ErrInternal,
	} {
		if errors.Is(err, known) {
			return true
		}
	}

	return false
}
