// Package signing turns a reconstructed 32-byte seed into Solana signatures,
// public keys and exportable keypairs.
//
// Every function that expands the seed into a 64-byte Ed25519 private key
// zeros that expansion before returning. The seed itself is owned by the
// caller.
package signing

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"

	"github.com/Caqil/solana-share-signer/internal/security"
)

const (
	// SeedSize is the Ed25519 seed length
	SeedSize = ed25519.SeedSize

	// KeypairSize is the length of seed || public key
	KeypairSize = ed25519.PrivateKeySize

	// SignatureSize is the Ed25519 signature length
	SignatureSize = ed25519.SignatureSize
)

func expand(seed []byte) (ed25519.PrivateKey, error) {
	if err := security.ValidateExactLength(seed, SeedSize); err != nil {
		return nil, ErrInvalidSeed
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// Sign signs message with the key defined by seed. Ed25519 is deterministic,
// so the same seed and message always give the same signature.
func Sign(seed, message []byte) (solana.Signature, error) {
	priv, err := expand(seed)
	if err != nil {
		return solana.Signature{}, err
	}
	defer security.SecureZero(priv)

	sig, err := solana.PrivateKey(priv).Sign(message)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	return sig, nil
}

// PublicKey returns the Solana public key for seed
func PublicKey(seed []byte) (solana.PublicKey, error) {
	priv, err := expand(seed)
	if err != nil {
		return solana.PublicKey{}, err
	}
	defer security.SecureZero(priv)

	return solana.PrivateKey(priv).PublicKey(), nil
}

// Keypair returns the 64-byte seed || public key layout Solana tooling
// expects, inside a buffer the caller must Destroy.
func Keypair(seed []byte) (*security.SecretBuffer, error) {
	priv, err := expand(seed)
	if err != nil {
		return nil, err
	}
	return security.TakeSecret(priv), nil
}

// ParsePublicKey decodes a base58 Solana address and checks that it is a
// point on the Ed25519 curve. Wallet addresses always are; program-derived
// addresses never are.
func ParsePublicKey(address string) (solana.PublicKey, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	if _, err := new(edwards25519.Point).SetBytes(pub.Bytes()); err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: not on curve", ErrInvalidPublicKey)
	}
	return pub, nil
}
