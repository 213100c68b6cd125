package shamir

import "errors"

var (
	// ErrShareTooLarge is returned when an encoded share exceeds MaxShareSize
	ErrShareTooLarge = errors.New("share exceeds maximum encoded size")

	// ErrShareTooShort is returned when an encoded share has no room for marker, index and payload
	ErrShareTooShort = errors.New("share too short")

	// ErrUnknownMarker is returned when the share mode marker is not recognized
	ErrUnknownMarker = errors.New("unknown share mode marker")

	// ErrZeroIndex is returned when a share index is zero (x = 0 is the secret itself)
	ErrZeroIndex = errors.New("share index must be non-zero")

	// ErrDuplicateIndex is returned when two shares have the same index
	ErrDuplicateIndex = errors.New("shares must have distinct indices")

	// ErrLengthMismatch is returned when share payloads differ in length
	ErrLengthMismatch = errors.New("share payloads must have equal length")

	// ErrEmptyPayload is returned when a share carries no payload bytes
	ErrEmptyPayload = errors.New("share payload cannot be empty")

	// ErrInsufficientShares is returned when fewer shares than required are supplied
	ErrInsufficientShares = errors.New("insufficient shares for reconstruction")

	// ErrInvalidThreshold is returned when split parameters are invalid
	ErrInvalidThreshold = errors.New("invalid threshold: must satisfy 2 <= t <= n <= 255")

	// ErrEmptySecret is returned when splitting an empty secret
	ErrEmptySecret = errors.New("secret cannot be empty")
)
