package security

import "errors"

var (
	// ErrInputTooLarge is returned when input exceeds the permitted size
	ErrInputTooLarge = errors.New("input exceeds maximum length")

	// ErrInvalidLength is returned when input does not have the exact expected length
	ErrInvalidLength = errors.New("input has invalid length")
)

// ValidateMaxLength rejects data longer than max before anything else touches it
func ValidateMaxLength(data []byte, max int) error {
	if len(data) > max {
		return ErrInputTooLarge
	}
	return nil
}

// ValidateExactLength checks len(data) == n
func ValidateExactLength(data []byte, n int) error {
	if len(data) != n {
		return ErrInvalidLength
	}
	return nil
}
