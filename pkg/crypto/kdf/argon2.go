// Package kdf derives the 32-byte AES-256 keys that protect the server-held
// share. Password, PIN and API-key credentials go through Argon2id; passkey
// PRF outputs go through HKDF-SHA256.
package kdf

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KeySize is the length of every derived key
const KeySize = 32

const (
	// MinArgon2SaltLength is the minimum accepted salt length in bytes
	MinArgon2SaltLength = 16

	// MinArgon2Memory is the minimum memory cost in KiB
	MinArgon2Memory = 8 * 1024

	// MaxArgon2Memory caps the memory a single stored record can demand (KiB)
	MaxArgon2Memory = 1 << 20

	// MinArgon2Time is the minimum number of passes
	MinArgon2Time = 1

	// MaxArgon2Time caps the passes a single stored record can demand
	MaxArgon2Time = 16
)

// Argon2Params are the cost parameters stored alongside a record's salt
type Argon2Params struct {
	// Memory is the memory cost in KiB
	Memory uint32 `json:"memory_cost"`

	// Time is the number of passes
	Time uint32 `json:"time_cost"`

	// Parallelism is the number of lanes
	Parallelism uint8 `json:"parallelism"`
}

// DefaultArgon2Params returns the cost used for new enrollments
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024, // 64 MiB
		Time:        3,
		Parallelism: 4,
	}
}

// Validate checks the parameters against the accepted bounds
func (p Argon2Params) Validate() error {
	if p.Memory < MinArgon2Memory || p.Memory > MaxArgon2Memory {
		return fmt.Errorf("%w: %d KiB", ErrInvalidMemory, p.Memory)
	}
	if p.Time < MinArgon2Time || p.Time > MaxArgon2Time {
		return fmt.Errorf("%w: %d", ErrInvalidTime, p.Time)
	}
	if p.Parallelism < 1 {
		return ErrInvalidThreads
	}
	return nil
}

// Argon2id derives KeySize bytes from secret and salt. It is CPU and memory
// heavy; request paths should go through Pool instead of calling it inline.
func Argon2id(secret, salt []byte, params Argon2Params) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrInvalidIKM
	}
	if len(salt) < MinArgon2SaltLength {
		return nil, ErrInvalidSalt
	}

	return argon2.IDKey(secret, salt, params.Time, params.Memory, params.Parallelism, KeySize), nil
}
