package advisory

import "errors"

var (
	// ErrNotFound is returned when a place name cannot be resolved to a coordinate.
	ErrNotFound = errors.New("location not found")

	// ErrInvalidCoordinate is returned for coordinates outside [-90,90] x [-180,180].
	ErrInvalidCoordinate = errors.New("coordinate out of range")

	// ErrInvalidRequest is returned when a request carries neither a place name
	// nor a complete coordinate pair.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnreadableImage is returned when an uploaded image cannot be decoded.
	ErrUnreadableImage = errors.New("unreadable image")
)
