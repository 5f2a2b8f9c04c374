package market

import "errors"

var (
	// ErrAlreadyInitialized is returned when initialize is attempted on a
	// marketplace that already holds a configuration.
	ErrAlreadyInitialized = errors.New("market: already initialized")
	// ErrNotInitialized is returned by mutating operations invoked before
	// the one-shot configuration has been written.
	ErrNotInitialized = errors.New("market: not initialized")
	// ErrInvalidPrice rejects listings with a non-positive price in either
	// settlement currency.
	ErrInvalidPrice = errors.New("market: price must be positive")
	// ErrInvalidSwap rejects offers to swap a token with itself.
	ErrInvalidSwap = errors.New("market: cannot swap a token with itself")
	// ErrListingNotFound is returned for an unknown listing identifier.
	ErrListingNotFound = errors.New("market: listing does not exist")
	// ErrSwapNotFound is returned for an unknown swap offer identifier.
	ErrSwapNotFound = errors.New("market: swap offer does not exist")
	// ErrListingInactive rejects actions against a listing that has already
	// reached a terminal state.
	ErrListingInactive = errors.New("market: listing is not active")
	// ErrSwapInactive rejects actions against a swap offer that has already
	// reached a terminal state.
	ErrSwapInactive = errors.New("market: swap offer is not active")
	// ErrUnauthorized is returned when the caller does not match the
	// record's controlling address or failed the call authorization check.
	ErrUnauthorized = errors.New("market: caller is not authorized")
)
