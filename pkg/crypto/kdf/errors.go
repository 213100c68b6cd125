package kdf

import "errors"

var (
	// ErrInvalidSalt is returned when a salt is missing or too short
	ErrInvalidSalt = errors.New("invalid salt")

	// ErrInvalidIKM is returned when the input keying material is empty
	ErrInvalidIKM = errors.New("input keying material cannot be empty")

	// ErrInvalidMemory is returned when the argon2 memory cost is out of range
	ErrInvalidMemory = errors.New("argon2 memory cost out of range")

	// ErrInvalidTime is returned when the argon2 time cost is out of range
	ErrInvalidTime = errors.New("argon2 time cost out of range")

	// ErrInvalidThreads is returned when the argon2 parallelism is zero
	ErrInvalidThreads = errors.New("argon2 parallelism must be at least 1")

	// ErrInvalidKeyLength is returned when a requested output length is not positive
	ErrInvalidKeyLength = errors.New("invalid key length")
)
