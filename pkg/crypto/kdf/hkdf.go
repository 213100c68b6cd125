package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// PasskeyInfo is the HKDF context for keys derived from passkey PRF outputs.
// Changing it orphans every passkey-protected share, so it carries a version.
const PasskeyInfo = "solana-share-signer/share-a/prf/v1"

// HKDF derives length bytes with HKDF-SHA256 (extract with salt, expand with info)
func HKDF(ikm, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 {
		return nil, ErrInvalidKeyLength
	}
	if len(ikm) == 0 {
		return nil, ErrInvalidIKM
	}

	reader := hkdf.New(sha256.New, ikm, salt, info)

	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// PasskeyKey derives the share key from a passkey PRF output and the record's
// PRF salt. Cheap enough to run inline.
func PasskeyKey(prfOutput, prfSalt []byte) ([]byte, error) {
	if len(prfSalt) == 0 {
		return nil, ErrInvalidSalt
	}
	return HKDF(prfOutput, prfSalt, []byte(PasskeyInfo), KeySize)
}
