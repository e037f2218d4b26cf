package domain

import "errors"

var (
	// ErrInvalidInput is returned for an empty or missing search term.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCatalogUnavailable is returned when the upstream catalog is unreachable or fails.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrStoreUnavailable is returned when the persistence layer cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)
