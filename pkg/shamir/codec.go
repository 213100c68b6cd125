package shamir

import (
	"github.com/Caqil/solana-share-signer/internal/security"
)

// Wire format, shared with the browser-side secret sharing library:
//
//	canonical: 0x80 | index | payload...
//	legacy:    0x08 | 0x0? (index in low nibble) | payload...
//
// Only the canonical form is ever produced.
const (
	// MarkerCanonical marks an 8-bit share with a full index byte
	MarkerCanonical byte = 0x80

	// MarkerLegacy marks the zero-padded variant with the index in the low nibble
	MarkerLegacy byte = 0x08

	// MaxShareSize bounds the encoded size accepted from any source
	MaxShareSize = 128

	headerSize   = 2
	minShareSize = headerSize + 1
)

// Share is one decoded point (Index, Data) of the sharing polynomial.
// Data is owned by the Share; call Wipe when done with it.
type Share struct {
	// Index is the x-coordinate, 1..255
	Index byte

	// Data holds f(Index) for every byte of the secret
	Data []byte
}

// Decode parses an encoded share. The returned Share owns a copy of the
// payload, so the input may be immutable storage.
func Decode(encoded []byte) (Share, error) {
	if err := security.ValidateMaxLength(encoded, MaxShareSize); err != nil {
		return Share{}, ErrShareTooLarge
	}
	if len(encoded) < minShareSize {
		return Share{}, ErrShareTooShort
	}

	var index byte
	switch encoded[0] {
	case MarkerCanonical:
		index = encoded[1]
	case MarkerLegacy:
		index = encoded[1] & 0x0F
	default:
		return Share{}, ErrUnknownMarker
	}

	if index == 0 {
		return Share{}, ErrZeroIndex
	}

	data := make([]byte, len(encoded)-headerSize)
	copy(data, encoded[headerSize:])

	return Share{Index: index, Data: data}, nil
}

// Encode produces the canonical wire form of a share
func Encode(index byte, payload []byte) ([]byte, error) {
	if index == 0 {
		return nil, ErrZeroIndex
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if headerSize+len(payload) > MaxShareSize {
		return nil, ErrShareTooLarge
	}

	out := make([]byte, headerSize+len(payload))
	out[0] = MarkerCanonical
	out[1] = index
	copy(out[headerSize:], payload)
	return out, nil
}

// Encode produces the canonical wire form of s
func (s Share) Encode() ([]byte, error) {
	return Encode(s.Index, s.Data)
}

// Wipe zeros the share payload
func (s Share) Wipe() {
	security.SecureZero(s.Data)
}
