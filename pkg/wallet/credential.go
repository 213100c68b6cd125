package wallet

import (
	"fmt"
	"strings"
)

// AuthMethod selects how the key protecting Share A is derived
type AuthMethod uint8

const (
	// AuthMethodUnknown is the zero value and never valid on a record
	AuthMethodUnknown AuthMethod = iota

	// AuthMethodPassword derives the key with Argon2id from a password
	AuthMethodPassword

	// AuthMethodPin derives the key with Argon2id from a PIN
	AuthMethodPin

	// AuthMethodPasskey derives the key with HKDF from a passkey PRF output
	AuthMethodPasskey

	// AuthMethodAPIKey derives the key with Argon2id from a raw API key
	AuthMethodAPIKey
)

var authMethodNames = map[AuthMethod]string{
	AuthMethodPassword: "password",
	AuthMethodPin:      "pin",
	AuthMethodPasskey:  "passkey",
	AuthMethodAPIKey:   "api_key",
}

func (m AuthMethod) String() string {
	if name, ok := authMethodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(m))
}

// UsesArgon2 reports whether keys for m come from the memory-hard KDF
func (m AuthMethod) UsesArgon2() bool {
	switch m {
	case AuthMethodPassword, AuthMethodPin, AuthMethodAPIKey:
		return true
	default:
		return false
	}
}

// ParseAuthMethod parses the text form produced by String
func ParseAuthMethod(s string) (AuthMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range authMethodNames {
		if name == s {
			return m, nil
		}
	}
	return AuthMethodUnknown, fmt.Errorf("%w: %q", ErrUnknownAuthMethod, s)
}

// MarshalText implements encoding.TextMarshaler
func (m AuthMethod) MarshalText() ([]byte, error) {
	name, ok := authMethodNames[m]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAuthMethod, uint8(m))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *AuthMethod) UnmarshalText(text []byte) error {
	parsed, err := ParseAuthMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Credential unlocks Share A. The set of implementations is closed:
// Password, Pin, PrfOutput and APIKey.
//
// The credential bytes belong to the caller, who should zero them with Wipe
// once the call that consumed them returns.
type Credential interface {
	// Method is the auth method this credential can unlock
	Method() AuthMethod

	// Wipe zeros the credential bytes
	Wipe()

	secret() []byte
}

// Password is a user password
type Password []byte

// Pin is a numeric or short PIN
type Pin []byte

// PrfOutput is the output of a passkey authenticator's PRF extension
type PrfOutput []byte

// APIKey is a raw API key secret
type APIKey []byte

func (Password) Method() AuthMethod  { return AuthMethodPassword }
func (Pin) Method() AuthMethod       { return AuthMethodPin }
func (PrfOutput) Method() AuthMethod { return AuthMethodPasskey }
func (APIKey) Method() AuthMethod    { return AuthMethodAPIKey }

func (c Password) Wipe()  { clear(c) }
func (c Pin) Wipe()       { clear(c) }
func (c PrfOutput) Wipe() { clear(c) }
func (c APIKey) Wipe()    { clear(c) }

func (c Password) secret() []byte  { return c }
func (c Pin) secret() []byte       { return c }
func (c PrfOutput) secret() []byte { return c }
func (c APIKey) secret() []byte    { return c }

// NewCredential wraps raw bytes as the credential kind for method
func NewCredential(method AuthMethod, raw []byte) (Credential, error) {
	switch method {
	case AuthMethodPassword:
		return Password(raw), nil
	case AuthMethodPin:
		return Pin(raw), nil
	case AuthMethodPasskey:
		return PrfOutput(raw), nil
	case AuthMethodAPIKey:
		return APIKey(raw), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAuthMethod, uint8(method))
	}
}

// checkPairing confirms cred may unlock a record protected by method
func checkPairing(method AuthMethod, cred Credential) error {
	if cred == nil {
		return validationError(ErrEmptyCredential)
	}

	var ok bool
	switch cred.(type) {
	case Password:
		ok = method == AuthMethodPassword
	case Pin:
		ok = method == AuthMethodPin
	case PrfOutput:
		ok = method == AuthMethodPasskey
	case APIKey:
		ok = method == AuthMethodAPIKey
	}
	if !ok {
		return validationError(fmt.Errorf("%w: record uses %s, got %s", ErrMethodMismatch, method, cred.Method()))
	}

	if len(cred.secret()) == 0 {
		return validationError(ErrEmptyCredential)
	}
	return nil
}
