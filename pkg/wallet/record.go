package wallet

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/Caqil/solana-share-signer/pkg/crypto/aead"
	"github.com/Caqil/solana-share-signer/pkg/crypto/kdf"
	"github.com/Caqil/solana-share-signer/pkg/shamir"
	"github.com/Caqil/solana-share-signer/pkg/signing"
)

// SchemeVersion is the only record layout this package understands:
// Share A encrypted under a credential, Share B in the clear, and an
// external recovery share held by the user.
const SchemeVersion = 2

// Share indices fixed at enrollment
const (
	IndexShareA   byte = 1
	IndexShareB   byte = 2
	IndexRecovery byte = 3
)

// WalletRecord is one wallet as persisted by the record store.
//
// Signer methods take it by value and never write to it, so a call always
// sees Share A and Share B from the same version of the record.
type WalletRecord struct {
	ID       uuid.UUID  `json:"id"`
	UserID   uuid.UUID  `json:"user_id"`
	APIKeyID *uuid.UUID `json:"api_key_id,omitempty"`

	SolanaPubkey  string `json:"solana_pubkey"`
	SchemeVersion int    `json:"scheme_version"`

	ShareAAuthMethod AuthMethod        `json:"share_a_auth_method"`
	ShareACiphertext []byte            `json:"share_a_ciphertext"`
	ShareANonce      []byte            `json:"share_a_nonce"`
	ShareAKDFSalt    []byte            `json:"share_a_kdf_salt,omitempty"`
	ShareAKDFParams  *kdf.Argon2Params `json:"share_a_kdf_params,omitempty"`
	PRFSalt          []byte            `json:"prf_salt,omitempty"`

	// ShareB is the canonical wire form of the plaintext server share
	ShareB []byte `json:"share_b"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDefault reports whether this is the user's default wallet rather than
// one scoped to an API key
func (r WalletRecord) IsDefault() bool {
	return r.APIKeyID == nil
}

// Clone returns a deep copy
func (r WalletRecord) Clone() WalletRecord {
	out := r
	if r.APIKeyID != nil {
		id := *r.APIKeyID
		out.APIKeyID = &id
	}
	if r.ShareAKDFParams != nil {
		p := *r.ShareAKDFParams
		out.ShareAKDFParams = &p
	}
	out.ShareACiphertext = cloneBytes(r.ShareACiphertext)
	out.ShareANonce = cloneBytes(r.ShareANonce)
	out.ShareAKDFSalt = cloneBytes(r.ShareAKDFSalt)
	out.PRFSalt = cloneBytes(r.PRFSalt)
	out.ShareB = cloneBytes(r.ShareB)
	return out
}

// Validate checks the record's structure. It does not need any credential.
func (r WalletRecord) Validate() error {
	if r.SchemeVersion != SchemeVersion {
		return validationError(fmt.Errorf("%w: %d", ErrUnsupportedScheme, r.SchemeVersion))
	}

	switch {
	case r.ShareAAuthMethod.UsesArgon2():
		if r.ShareAKDFParams == nil || len(r.ShareAKDFSalt) < kdf.MinArgon2SaltLength {
			return validationError(fmt.Errorf("%w: %s requires kdf salt and params", ErrKDFFields, r.ShareAAuthMethod))
		}
		if len(r.PRFSalt) != 0 {
			return validationError(fmt.Errorf("%w: %s record carries a prf salt", ErrKDFFields, r.ShareAAuthMethod))
		}
		if err := r.ShareAKDFParams.Validate(); err != nil {
			return validationError(err)
		}
	case r.ShareAAuthMethod == AuthMethodPasskey:
		if len(r.PRFSalt) == 0 {
			return validationError(ErrMissingPRFSalt)
		}
		if r.ShareAKDFParams != nil || len(r.ShareAKDFSalt) != 0 {
			return validationError(fmt.Errorf("%w: passkey record carries kdf salt or params", ErrKDFFields))
		}
	default:
		return validationError(fmt.Errorf("%w: %d", ErrUnknownAuthMethod, uint8(r.ShareAAuthMethod)))
	}

	if len(r.ShareANonce) != aead.NonceSize {
		return validationError(ErrInvalidNonce)
	}
	if len(r.ShareACiphertext) == 0 {
		return validationError(ErrEmptyCiphertext)
	}

	shareB, err := shamir.Decode(r.ShareB)
	if err != nil {
		return validationError(fmt.Errorf("%w: %w", ErrInvalidShareB, err))
	}
	shareB.Wipe()

	if _, err := r.publicKey(); err != nil {
		return err
	}
	return nil
}

func (r WalletRecord) publicKey() (solana.PublicKey, error) {
	pub, err := signing.ParsePublicKey(r.SolanaPubkey)
	if err != nil {
		return solana.PublicKey{}, validationError(fmt.Errorf("%w: %w", ErrInvalidPubkey, err))
	}
	return pub, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
