// Package security provides utilities for handling secret material in memory
package security

import (
	"crypto/subtle"
	"runtime"
)

// SecureZero overwrites data with zeros in a way the compiler cannot elide
func SecureZero(data []byte) {
	if len(data) == 0 {
		return
	}

	clear(data)

	// Keep data reachable until the write above has happened
	runtime.KeepAlive(data)
}

// ConstantTimeCompare compares two byte slices in constant time
// Returns true if they are equal, false otherwise
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
