// Package aead seals and opens the server-held share with AES-256-GCM
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/Caqil/solana-share-signer/pkg/crypto/rand"
)

const (
	// KeySize is the AES-256 key length
	KeySize = 32

	// NonceSize is the GCM nonce length
	NonceSize = rand.NonceSize
)

var (
	// ErrAuthenticationFailed is the only error Open reports for a ciphertext
	// that does not verify. A wrong key and a tampered ciphertext look the same.
	ErrAuthenticationFailed = errors.New("message authentication failed")

	// ErrInvalidKeySize is returned when the key is not 32 bytes
	ErrInvalidKeySize = errors.New("key must be 32 bytes")

	// ErrInvalidNonceSize is returned when the nonce is not 12 bytes
	ErrInvalidNonceSize = errors.New("nonce must be 12 bytes")

	// ErrCipherSetup is returned when the block cipher or GCM mode cannot be built
	ErrCipherSetup = errors.New("cipher setup failed")
)

// Sealed is the output of Seal
type Sealed struct {
	Nonce      []byte
	Ciphertext []byte
}

// Seal encrypts plaintext under key with a nonce drawn fresh from the CSPRNG.
// There is no way to pass a nonce in.
func Seal(key, plaintext []byte) (*Sealed, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := rand.GenerateNonce()
	if err != nil {
		return nil, err
	}

	return &Sealed{
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Open decrypts ciphertext. The returned plaintext is owned by the caller,
// who must zero it.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != gcm.NonceSize() {
		return nil, ErrInvalidNonceSize
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrCipherSetup
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrCipherSetup
	}
	return gcm, nil
}
