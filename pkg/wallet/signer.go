// Package wallet reconstructs split Solana keys and signs with them.
//
// A wallet's 32-byte Ed25519 seed is split 2-of-3 at enrollment. Share A is
// stored encrypted under a key derived from the user's credential, Share B
// is stored in the clear, and the third share goes to the user for
// recovery. Signing decrypts Share A, combines it with Share B, signs and
// wipes everything it touched before returning, on every path.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Caqil/solana-share-signer/internal/gf256"
	"github.com/Caqil/solana-share-signer/internal/security"
	"github.com/Caqil/solana-share-signer/pkg/crypto/aead"
	"github.com/Caqil/solana-share-signer/pkg/crypto/kdf"
	"github.com/Caqil/solana-share-signer/pkg/logger"
	"github.com/Caqil/solana-share-signer/pkg/metrics"
	"github.com/Caqil/solana-share-signer/pkg/shamir"
	"github.com/Caqil/solana-share-signer/pkg/signing"
)

// Operation names used in logs and metrics
const (
	OpDeriveKey      = "derive_key"
	OpSign           = "sign"
	OpSignCached     = "sign_cached"
	OpDerivePubkey   = "derive_pubkey"
	OpReconstruct    = "reconstruct"
	OpRotate         = "rotate"
	OpChangeMethod   = "change_method"
	OpVerifyRecovery = "verify_recovery"
	OpEnroll         = "enroll"
)

// Signer performs every operation that touches key material. It keeps no
// per-wallet state and is safe for concurrent use.
type Signer struct {
	pool    *kdf.Pool
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Option configures a Signer
type Option func(*Signer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(s *Signer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Signer) {
		s.metrics = m
	}
}

// WithRegisterer registers the signer collectors and the gauge of the
// signer's Argon2 pool on reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Signer) {
		s.metrics = metrics.New(reg)
		metrics.RegisterPoolGauge(reg, s.pool.InFlight)
	}
}

// NewSigner creates a Signer that runs Argon2 on pool.
// A nil pool gets one worker per CPU.
func NewSigner(pool *kdf.Pool, opts ...Option) *Signer {
	if pool == nil {
		pool = kdf.NewPool(0)
	}
	s := &Signer{
		pool: pool,
		log:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeriveKey derives the key protecting rec's Share A from cred. The caller
// owns the returned buffer and must Destroy it; it can be held for a session
// and passed to SignWithCachedKey.
func (s *Signer) DeriveKey(ctx context.Context, rec WalletRecord, cred Credential) (key *security.SecretBuffer, err error) {
	defer s.track(OpDeriveKey, &rec, nil)(&err)

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return s.deriveKey(ctx, rec, cred)
}

// SignWithCredential signs message with the wallet's master key, unlocking
// Share A with cred.
func (s *Signer) SignWithCredential(ctx context.Context, rec WalletRecord, cred Credential, message []byte) (sig solana.Signature, err error) {
	defer s.track(OpSign, &rec, nil)(&err)

	if err := rec.Validate(); err != nil {
		return solana.Signature{}, err
	}

	key, err := s.deriveKey(ctx, rec, cred)
	if err != nil {
		return solana.Signature{}, err
	}
	defer key.Destroy()

	return s.signWithKey(ctx, rec, key.Bytes(), message, 0)
}

// SignWithCachedKey signs message with the wallet at index, using a key
// previously returned by DeriveKey. Index 0 is the master wallet.
func (s *Signer) SignWithCachedKey(ctx context.Context, rec WalletRecord, key, message []byte, index uint32) (sig solana.Signature, err error) {
	defer s.track(OpSignCached, &rec, &index)(&err)

	if err := rec.Validate(); err != nil {
		return solana.Signature{}, err
	}
	return s.signWithKey(ctx, rec, key, message, index)
}

func (s *Signer) signWithKey(ctx context.Context, rec WalletRecord, key, message []byte, index uint32) (solana.Signature, error) {
	child, err := s.childSeed(ctx, rec, key, index)
	if err != nil {
		return solana.Signature{}, err
	}
	defer child.Destroy()

	sig, err := signing.Sign(child.Bytes(), message)
	if err != nil {
		return solana.Signature{}, internalError(err)
	}
	return sig, nil
}

// DerivePubkeyForIndex returns the public key of the wallet at index.
// Index 0 returns the record's own public key.
func (s *Signer) DerivePubkeyForIndex(ctx context.Context, rec WalletRecord, key []byte, index uint32) (pub solana.PublicKey, err error) {
	defer s.track(OpDerivePubkey, &rec, &index)(&err)

	if err := rec.Validate(); err != nil {
		return solana.PublicKey{}, err
	}

	child, err := s.childSeed(ctx, rec, key, index)
	if err != nil {
		return solana.PublicKey{}, err
	}
	defer child.Destroy()

	pub, err = signing.PublicKey(child.Bytes())
	if err != nil {
		return solana.PublicKey{}, internalError(err)
	}
	return pub, nil
}

// ReconstructPrivateKeyMaterial hands the 64-byte Solana keypair
// (seed || public key) to fn. The keypair is zeroed when fn returns, so fn
// must not retain the slice.
func (s *Signer) ReconstructPrivateKeyMaterial(ctx context.Context, rec WalletRecord, key []byte, fn func(keypair []byte) error) (err error) {
	defer s.track(OpReconstruct, &rec, nil)(&err)

	if err := rec.Validate(); err != nil {
		return err
	}

	seed, err := s.reconstruct(ctx, rec, key)
	if err != nil {
		return err
	}
	defer seed.Destroy()

	keypair, err := signing.Keypair(seed.Bytes())
	if err != nil {
		return internalError(err)
	}
	return keypair.Use(fn)
}

// VerifyRecoveryShare reports whether external, the raw 32-byte recovery
// share, combines with Share B into the record's key. A share that does not
// match is a false result, not an error.
func (s *Signer) VerifyRecoveryShare(ctx context.Context, rec WalletRecord, external []byte) (ok bool, err error) {
	defer s.track(OpVerifyRecovery, &rec, nil)(&err)

	if err := rec.Validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	encoded, err := shamir.Encode(IndexRecovery, external)
	if err != nil {
		return false, validationError(err)
	}
	defer security.SecureZero(encoded)

	recovery, err := shamir.Decode(encoded)
	if err != nil {
		return false, validationError(err)
	}
	defer recovery.Wipe()

	shareB, err := shamir.Decode(rec.ShareB)
	if err != nil {
		return false, validationError(fmt.Errorf("%w: %w", ErrInvalidShareB, err))
	}
	defer shareB.Wipe()

	seed, err := combine(shareB, recovery)
	if err != nil {
		return false, err
	}
	defer seed.Destroy()

	candidate, err := signing.PublicKey(seed.Bytes())
	if err != nil {
		return false, internalError(err)
	}
	want, err := rec.publicKey()
	if err != nil {
		return false, err
	}
	return security.ConstantTimeCompare(candidate.Bytes(), want.Bytes()), nil
}

// deriveKey runs the derivation selected by the record's auth method
func (s *Signer) deriveKey(ctx context.Context, rec WalletRecord, cred Credential) (*security.SecretBuffer, error) {
	if err := checkPairing(rec.ShareAAuthMethod, cred); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		key *security.SecretBuffer
		err error
	)
	if rec.ShareAAuthMethod.UsesArgon2() {
		key, err = s.pool.Argon2id(ctx, cred.secret(), rec.ShareAKDFSalt, *rec.ShareAKDFParams)
	} else {
		var raw []byte
		raw, err = kdf.PasskeyKey(cred.secret(), rec.PRFSalt)
		key = security.TakeSecret(raw)
	}
	if err != nil {
		if isContextError(err) {
			return nil, err
		}
		return nil, validationError(err)
	}

	s.metrics.ObserveKDF(rec.ShareAAuthMethod.String(), time.Since(start))
	return key, nil
}

// openShareA decrypts Share A. The plaintext is the share's wire form.
func openShareA(rec WalletRecord, key []byte) (*security.SecretBuffer, error) {
	if len(key) != aead.KeySize {
		return nil, validationError(ErrInvalidKeySize)
	}

	plaintext, err := aead.Open(key, rec.ShareANonce, rec.ShareACiphertext)
	switch {
	case err == nil:
		return security.TakeSecret(plaintext), nil
	case errors.Is(err, aead.ErrAuthenticationFailed):
		return nil, ErrInvalidCredential
	case errors.Is(err, aead.ErrCipherSetup):
		return nil, internalError(err)
	default:
		return nil, validationError(err)
	}
}

// reconstruct recovers the master seed from Share A and Share B and checks
// it against the record's public key
func (s *Signer) reconstruct(ctx context.Context, rec WalletRecord, key []byte) (*security.SecretBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plaintext, err := openShareA(rec, key)
	if err != nil {
		return nil, err
	}
	defer plaintext.Destroy()

	shareA, err := shamir.Decode(plaintext.Bytes())
	if err != nil {
		return nil, validationError(err)
	}
	defer shareA.Wipe()

	shareB, err := shamir.Decode(rec.ShareB)
	if err != nil {
		return nil, validationError(fmt.Errorf("%w: %w", ErrInvalidShareB, err))
	}
	defer shareB.Wipe()

	seed, err := combine(shareA, shareB)
	if err != nil {
		return nil, err
	}

	pub, err := signing.PublicKey(seed.Bytes())
	if err != nil {
		seed.Destroy()
		return nil, internalError(err)
	}
	want, err := rec.publicKey()
	if err != nil {
		seed.Destroy()
		return nil, err
	}
	if !security.ConstantTimeCompare(pub.Bytes(), want.Bytes()) {
		seed.Destroy()
		return nil, internalError(ErrPubkeyMismatch)
	}

	if err := ctx.Err(); err != nil {
		seed.Destroy()
		return nil, err
	}
	return seed, nil
}

// childSeed reconstructs the master seed and derives the seed for index
func (s *Signer) childSeed(ctx context.Context, rec WalletRecord, key []byte, index uint32) (*security.SecretBuffer, error) {
	master, err := s.reconstruct(ctx, rec, key)
	if err != nil {
		return nil, err
	}
	defer master.Destroy()

	child, err := signing.DeriveChildSeed(master.Bytes(), index)
	if err != nil {
		return nil, internalError(err)
	}
	return child, nil
}

// combine interpolates two shares into a 32-byte seed
func combine(a, b shamir.Share) (*security.SecretBuffer, error) {
	raw, err := shamir.Combine(a, b)
	if err != nil {
		if errors.Is(err, gf256.ErrDivideByZero) || errors.Is(err, gf256.ErrZeroInverse) {
			return nil, internalError(err)
		}
		return nil, validationError(err)
	}

	seed := security.TakeSecret(raw)
	if seed.Len() != signing.SeedSize {
		seed.Destroy()
		return nil, internalError(fmt.Errorf("%w: %d bytes", ErrSeedLength, len(raw)))
	}
	return seed, nil
}

// track starts timing op and returns the func that reports it. rec and
// index are read when the operation finishes.
func (s *Signer) track(op string, rec *WalletRecord, index *uint32) func(*error) {
	start := time.Now()
	return func(errp *error) {
		s.report(op, *rec, index, time.Since(start), *errp)
	}
}

// report logs and counts one finished operation. Only identifiers are logged.
func (s *Signer) report(op string, rec WalletRecord, index *uint32, took time.Duration, err error) {
	s.metrics.RecordOperation(op, outcome(err))

	fields := s.log.Op(op).With().
		Stringer(logger.FieldRecordID, rec.ID).
		Stringer(logger.FieldUserID, rec.UserID).
		Str(logger.FieldPubkey, rec.SolanaPubkey).
		Stringer(logger.FieldAuthMethod, rec.ShareAAuthMethod)
	if rec.APIKeyID != nil {
		fields = fields.Str(logger.FieldAPIKeyID, logger.Redact(rec.APIKeyID.String()))
	}
	if index != nil {
		fields = fields.Uint32(logger.FieldIndex, *index)
	}
	log := fields.Logger()

	if err != nil {
		log.WarnEvent().Err(err).Dur(logger.FieldDuration, took).Msg("wallet operation failed")
		return
	}
	log.DebugEvent().Dur(logger.FieldDuration, took).Msg("wallet operation completed")
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case isContextError(err):
		return metrics.OutcomeCanceled
	case errors.Is(err, ErrInvalidCredential):
		return metrics.OutcomeInvalidCredential
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeValidation
	default:
		return metrics.OutcomeInternal
	}
}
