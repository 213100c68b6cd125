package security

import "sync"

// SecretBuffer owns a byte slice holding secret material and zeros it on
// Destroy. Acquire one and defer Destroy on the next line:
//
//	key := security.NewSecretBuffer(32)
//	defer key.Destroy()
//
// Destroy is idempotent and safe to call concurrently with itself.
// A nil *SecretBuffer behaves as an already destroyed, empty buffer.
type SecretBuffer struct {
	mu        sync.Mutex
	data      []byte
	destroyed bool
}

// NewSecretBuffer allocates a zero-filled buffer of n bytes
func NewSecretBuffer(n int) *SecretBuffer {
	return &SecretBuffer{data: make([]byte, n)}
}

// TakeSecret wraps b without copying. The caller must not retain b.
func TakeSecret(b []byte) *SecretBuffer {
	return &SecretBuffer{data: b}
}

// CopySecret copies b into a new buffer. The caller still owns b.
func CopySecret(b []byte) *SecretBuffer {
	s := NewSecretBuffer(len(b))
	copy(s.data, b)
	return s
}

// Bytes returns the underlying slice. The slice is only valid until Destroy.
func (s *SecretBuffer) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.data
}

// Len returns the buffer length, 0 once destroyed
func (s *SecretBuffer) Len() int {
	if s == nil {
		return 0
	}
	return len(s.data)
}

// Destroyed reports whether Destroy has run
func (s *SecretBuffer) Destroyed() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy zeros the buffer and drops the reference to it
func (s *SecretBuffer) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	SecureZero(s.data)
	s.data = nil
	s.destroyed = true
}

// Use runs fn with the buffer contents and destroys the buffer afterwards,
// including when fn panics.
func (s *SecretBuffer) Use(fn func([]byte) error) error {
	defer s.Destroy()
	return fn(s.Bytes())
}
