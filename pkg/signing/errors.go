package signing

import "errors"

var (
	// ErrInvalidSeed is returned when a seed is not exactly 32 bytes
	ErrInvalidSeed = errors.New("seed must be 32 bytes")

	// ErrInvalidPublicKey is returned when a public key cannot be decoded
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrSigningFailed is returned when the Ed25519 primitive fails
	ErrSigningFailed = errors.New("signing failed")
)
