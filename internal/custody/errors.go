package custody

import "errors"

var (
	// ErrIdentityUnavailable is returned when the acting user or device cannot
	// be resolved. The ledger never fabricates identity data.
	ErrIdentityUnavailable = errors.New("custody: identity unavailable")

	// ErrEmptyChain is returned when appending to a chain with no genesis event.
	ErrEmptyChain = errors.New("custody: chain has no created event")

	// ErrInvalidTransition is returned for actions not allowed from the current state.
	ErrInvalidTransition = errors.New("custody: invalid transition")

	// ErrUnknownAction is returned for actions outside the known set.
	ErrUnknownAction = errors.New("custody: unknown action")

	// ErrOutOfOrder is returned by Validate when timestamps decrease.
	ErrOutOfOrder = errors.New("custody: events out of order")
)
