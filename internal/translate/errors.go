package translate

import "errors"

var (
	// ErrInvalidDate is returned when a calendar date cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidGeometry is returned when geometry conversion fails.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrInvalidDateTime is returned when a scene timestamp cannot be parsed.
	ErrInvalidDateTime = errors.New("invalid datetime format")

	// ErrUnknownProduct is returned when a catalog item cannot be mapped to a
	// compute asset id.
	ErrUnknownProduct = errors.New("unrecognized product identifier")
)
