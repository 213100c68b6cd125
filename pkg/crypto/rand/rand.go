// Package rand provides cryptographically secure random byte generation
package rand

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// NonceSize is the AES-GCM standard nonce length
	NonceSize = 12

	// SaltSize is the length of freshly generated KDF salts
	SaltSize = 32

	// SeedSize is the length of an Ed25519 seed
	SeedSize = 32
)

// Reader is the default cryptographically secure random number generator.
// Tests may swap it for a deterministic or failing source.
var Reader io.Reader = rand.Reader

// GenerateRandomBytes generates n cryptographically secure random bytes
func GenerateRandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrInvalidLength
	}

	bytes := make([]byte, n)
	if _, err := io.ReadFull(Reader, bytes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShortRead, err)
	}

	return bytes, nil
}

// GenerateNonce generates a fresh AES-GCM nonce
func GenerateNonce() ([]byte, error) {
	return GenerateRandomBytes(NonceSize)
}

// GenerateSalt generates a fresh KDF salt
func GenerateSalt() ([]byte, error) {
	return GenerateRandomBytes(SaltSize)
}

// GenerateSeed generates a fresh Ed25519 seed. The caller owns the result
// and must zero it.
func GenerateSeed() ([]byte, error) {
	return GenerateRandomBytes(SeedSize)
}
