package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Caqil/solana-share-signer/internal/security"
	"github.com/Caqil/solana-share-signer/pkg/crypto/aead"
	"github.com/Caqil/solana-share-signer/pkg/crypto/kdf"
	"github.com/Caqil/solana-share-signer/pkg/crypto/rand"
	"github.com/Caqil/solana-share-signer/pkg/shamir"
	"github.com/Caqil/solana-share-signer/pkg/signing"
)

// KeyOptions control how a new Share A key is derived
type KeyOptions struct {
	// Argon2 is the cost for password, PIN and API key credentials.
	// The zero value selects kdf.DefaultArgon2Params.
	Argon2 kdf.Argon2Params

	// PRFSalt is the salt the passkey PRF was evaluated with. Required for
	// passkey credentials, ignored otherwise.
	PRFSalt []byte
}

// EnrollRequest describes a new wallet
type EnrollRequest struct {
	UserID uuid.UUID

	// APIKeyID scopes the wallet to one API key; nil makes it the user's default wallet
	APIKeyID *uuid.UUID

	// Credential protects Share A; its kind becomes the record's auth method
	Credential Credential

	KeyOptions
}

// Enrollment is the result of Enroll
type Enrollment struct {
	// Record is ready to persist
	Record WalletRecord

	// RecoveryShare is the raw 32-byte external share. It exists nowhere else:
	// hand it to the user once, then Destroy it.
	RecoveryShare *security.SecretBuffer
}

// RotationResult is the new Share A protection produced by RotateCredential.
// The three fields must be persisted together.
type RotationResult struct {
	Ciphertext []byte
	Nonce      []byte
	Salt       []byte
}

// Apply returns a copy of rec carrying the rotated fields
func (r RotationResult) Apply(rec WalletRecord) WalletRecord {
	out := rec.Clone()
	out.ShareACiphertext = cloneBytes(r.Ciphertext)
	out.ShareANonce = cloneBytes(r.Nonce)
	out.ShareAKDFSalt = cloneBytes(r.Salt)
	out.UpdatedAt = time.Now().UTC()
	return out
}

// AuthUpdate is the new Share A protection produced by ChangeAuthMethod
type AuthUpdate struct {
	Method     AuthMethod
	Ciphertext []byte
	Nonce      []byte
	KDFSalt    []byte
	KDFParams  *kdf.Argon2Params
	PRFSalt    []byte
}

// Apply returns a copy of rec protected by the new method
func (u AuthUpdate) Apply(rec WalletRecord) WalletRecord {
	out := rec.Clone()
	out.ShareAAuthMethod = u.Method
	out.ShareACiphertext = cloneBytes(u.Ciphertext)
	out.ShareANonce = cloneBytes(u.Nonce)
	out.ShareAKDFSalt = cloneBytes(u.KDFSalt)
	out.PRFSalt = cloneBytes(u.PRFSalt)
	out.ShareAKDFParams = nil
	if u.KDFParams != nil {
		p := *u.KDFParams
		out.ShareAKDFParams = &p
	}
	out.UpdatedAt = time.Now().UTC()
	return out
}

// Enroll creates a wallet: a fresh seed split 2-of-3 into Share A (index 1,
// encrypted under req.Credential), Share B (index 2, stored in the clear)
// and the recovery share (index 3, returned once). Nothing is persisted.
func (s *Signer) Enroll(ctx context.Context, req EnrollRequest) (enr *Enrollment, err error) {
	rec := WalletRecord{UserID: req.UserID, APIKeyID: req.APIKeyID}
	defer s.track(OpEnroll, &rec, nil)(&err)

	if req.UserID == uuid.Nil {
		return nil, validationError(ErrMissingUserID)
	}
	if req.Credential == nil || len(req.Credential.secret()) == 0 {
		return nil, validationError(ErrEmptyCredential)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := rand.GenerateSeed()
	if err != nil {
		return nil, internalError(err)
	}
	seed := security.TakeSecret(raw)
	defer seed.Destroy()

	pub, err := signing.PublicKey(seed.Bytes())
	if err != nil {
		return nil, internalError(err)
	}

	shares, err := shamir.Split(seed.Bytes(), 2, []byte{IndexShareA, IndexShareB, IndexRecovery})
	if err != nil {
		return nil, internalError(err)
	}
	defer func() {
		for _, share := range shares {
			share.Wipe()
		}
	}()

	encodedA, err := shares[0].Encode()
	if err != nil {
		return nil, internalError(err)
	}
	shareA := security.TakeSecret(encodedA)
	defer shareA.Destroy()

	shareB, err := shares[1].Encode()
	if err != nil {
		return nil, internalError(err)
	}

	fresh, err := s.freshKey(ctx, req.Credential, req.KeyOptions)
	if err != nil {
		return nil, err
	}
	defer fresh.key.Destroy()

	sealed, err := aead.Seal(fresh.key.Bytes(), shareA.Bytes())
	if err != nil {
		return nil, internalError(err)
	}

	now := time.Now().UTC()
	rec = WalletRecord{
		ID:               uuid.New(),
		UserID:           req.UserID,
		APIKeyID:         req.APIKeyID,
		SolanaPubkey:     pub.String(),
		SchemeVersion:    SchemeVersion,
		ShareAAuthMethod: req.Credential.Method(),
		ShareACiphertext: sealed.Ciphertext,
		ShareANonce:      sealed.Nonce,
		ShareAKDFSalt:    fresh.kdfSalt,
		ShareAKDFParams:  fresh.kdfParams,
		PRFSalt:          fresh.prfSalt,
		ShareB:           shareB,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	return &Enrollment{
		Record:        rec,
		RecoveryShare: security.CopySecret(shares[2].Data),
	}, nil
}

// RotateCredential re-encrypts Share A under newCred, which must be of the
// same kind as oldCred and the record's method. Only Argon2-backed methods
// can rotate; the record's cost parameters are kept and a fresh salt and
// nonce are drawn. rec is not modified.
func (s *Signer) RotateCredential(ctx context.Context, rec WalletRecord, oldCred, newCred Credential) (res *RotationResult, err error) {
	defer s.track(OpRotate, &rec, nil)(&err)

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if !rec.ShareAAuthMethod.UsesArgon2() {
		return nil, validationError(ErrRotationUnsupported)
	}
	if err := checkPairing(rec.ShareAAuthMethod, newCred); err != nil {
		return nil, err
	}

	plaintext, err := s.unlockShareA(ctx, rec, oldCred)
	if err != nil {
		return nil, err
	}
	defer plaintext.Destroy()

	fresh, err := s.freshKey(ctx, newCred, KeyOptions{Argon2: *rec.ShareAKDFParams})
	if err != nil {
		return nil, err
	}
	defer fresh.key.Destroy()

	sealed, err := aead.Seal(fresh.key.Bytes(), plaintext.Bytes())
	if err != nil {
		return nil, internalError(err)
	}

	return &RotationResult{
		Ciphertext: sealed.Ciphertext,
		Nonce:      sealed.Nonce,
		Salt:       fresh.kdfSalt,
	}, nil
}

// ChangeAuthMethod re-encrypts Share A under a credential of any kind,
// including a different one from the record's current method. opts supplies
// the new Argon2 cost or the passkey PRF salt. rec is not modified.
func (s *Signer) ChangeAuthMethod(ctx context.Context, rec WalletRecord, oldCred, newCred Credential, opts KeyOptions) (upd *AuthUpdate, err error) {
	defer s.track(OpChangeMethod, &rec, nil)(&err)

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	plaintext, err := s.unlockShareA(ctx, rec, oldCred)
	if err != nil {
		return nil, err
	}
	defer plaintext.Destroy()

	fresh, err := s.freshKey(ctx, newCred, opts)
	if err != nil {
		return nil, err
	}
	defer fresh.key.Destroy()

	sealed, err := aead.Seal(fresh.key.Bytes(), plaintext.Bytes())
	if err != nil {
		return nil, internalError(err)
	}

	return &AuthUpdate{
		Method:     newCred.Method(),
		Ciphertext: sealed.Ciphertext,
		Nonce:      sealed.Nonce,
		KDFSalt:    fresh.kdfSalt,
		KDFParams:  fresh.kdfParams,
		PRFSalt:    fresh.prfSalt,
	}, nil
}

// unlockShareA derives the current key from cred and decrypts Share A,
// confirming the plaintext is a well-formed share before anyone re-wraps it
func (s *Signer) unlockShareA(ctx context.Context, rec WalletRecord, cred Credential) (*security.SecretBuffer, error) {
	key, err := s.deriveKey(ctx, rec, cred)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	plaintext, err := openShareA(rec, key.Bytes())
	if err != nil {
		return nil, err
	}

	share, err := shamir.Decode(plaintext.Bytes())
	if err != nil {
		plaintext.Destroy()
		return nil, validationError(err)
	}
	share.Wipe()

	return plaintext, nil
}

type shareKey struct {
	key       *security.SecretBuffer
	kdfSalt   []byte
	kdfParams *kdf.Argon2Params
	prfSalt   []byte
}

// freshKey derives a key for a new ciphertext. Argon2 methods always get a
// new random salt.
func (s *Signer) freshKey(ctx context.Context, cred Credential, opts KeyOptions) (*shareKey, error) {
	if cred == nil || len(cred.secret()) == 0 {
		return nil, validationError(ErrEmptyCredential)
	}
	method := cred.Method()
	start := time.Now()

	if !method.UsesArgon2() {
		if len(opts.PRFSalt) == 0 {
			return nil, validationError(ErrMissingPRFSalt)
		}
		raw, err := kdf.PasskeyKey(cred.secret(), opts.PRFSalt)
		if err != nil {
			return nil, validationError(err)
		}
		s.metrics.ObserveKDF(method.String(), time.Since(start))
		return &shareKey{key: security.TakeSecret(raw), prfSalt: cloneBytes(opts.PRFSalt)}, nil
	}

	params := opts.Argon2
	if params == (kdf.Argon2Params{}) {
		params = kdf.DefaultArgon2Params()
	}
	if err := params.Validate(); err != nil {
		return nil, validationError(err)
	}

	salt, err := rand.GenerateSalt()
	if err != nil {
		return nil, internalError(err)
	}

	key, err := s.pool.Argon2id(ctx, cred.secret(), salt, params)
	if err != nil {
		if isContextError(err) {
			return nil, err
		}
		return nil, validationError(fmt.Errorf("derive %s key: %w", method, err))
	}
	s.metrics.ObserveKDF(method.String(), time.Since(start))

	return &shareKey{key: key, kdfSalt: salt, kdfParams: &params}, nil
}
