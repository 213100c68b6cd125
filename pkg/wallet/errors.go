package wallet

import (
	"context"
	"errors"
	"fmt"
)

// Error categories. Every error returned by a Signer method matches exactly
// one of these with errors.Is, unless it is a context error.
var (
	// ErrInvalidCredential means Share A did not decrypt. A wrong credential
	// and a tampered ciphertext are deliberately reported the same way.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrValidation means the inputs were malformed or inconsistent
	ErrValidation = errors.New("validation failed")

	// ErrInternal means a primitive failed or an invariant broke
	ErrInternal = errors.New("internal error")
)

var (
	// ErrMethodMismatch is returned when a credential's kind does not match the record's auth method
	ErrMethodMismatch = errors.New("credential does not match auth method")

	// ErrUnknownAuthMethod is returned for an auth method outside the known set
	ErrUnknownAuthMethod = errors.New("unknown auth method")

	// ErrUnsupportedScheme is returned for records with a scheme version other than SchemeVersion
	ErrUnsupportedScheme = errors.New("unsupported scheme version")

	// ErrKDFFields is returned when KDF salt/params and PRF salt are not exclusive per auth method
	ErrKDFFields = errors.New("key derivation fields do not match auth method")

	// ErrInvalidNonce is returned when the stored nonce is not 12 bytes
	ErrInvalidNonce = errors.New("share A nonce must be 12 bytes")

	// ErrEmptyCiphertext is returned when a record carries no Share A ciphertext
	ErrEmptyCiphertext = errors.New("share A ciphertext is empty")

	// ErrInvalidShareB is returned when Share B cannot be decoded
	ErrInvalidShareB = errors.New("invalid share B")

	// ErrInvalidPubkey is returned when the stored public key is malformed or off-curve
	ErrInvalidPubkey = errors.New("invalid solana public key")

	// ErrEmptyCredential is returned when a credential carries no bytes
	ErrEmptyCredential = errors.New("credential is empty")

	// ErrInvalidKeySize is returned when a cached key is not 32 bytes
	ErrInvalidKeySize = errors.New("share key must be 32 bytes")

	// ErrRotationUnsupported is returned when RotateCredential is asked to
	// rotate a passkey record or to change the auth method
	ErrRotationUnsupported = errors.New("rotation requires a password, pin or api key credential of the record's method")

	// ErrMissingPRFSalt is returned when a passkey key is requested without a PRF salt
	ErrMissingPRFSalt = errors.New("passkey requires a PRF salt")

	// ErrSeedLength is returned when reconstruction yields anything but 32 bytes
	ErrSeedLength = errors.New("reconstructed seed has wrong length")

	// ErrPubkeyMismatch is returned when the reconstructed seed does not
	// belong to the record's public key
	ErrPubkeyMismatch = errors.New("reconstructed key does not match record")
)

func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func internalError(err error) error {
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ErrMissingUserID is returned when enrolling without a user id
var ErrMissingUserID = errors.New("user id is required")
