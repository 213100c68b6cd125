package rand

import "errors"

var (
	// ErrInvalidLength is returned when requested length is invalid
	ErrInvalidLength = errors.New("invalid length: must be positive")

	// ErrShortRead is returned when the entropy source returns fewer bytes than requested
	ErrShortRead = errors.New("entropy source returned short read")
)
