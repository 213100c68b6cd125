package shamir

import (
	"io"

	"github.com/Caqil/solana-share-signer/internal/gf256"
	"github.com/Caqil/solana-share-signer/internal/security"
	"github.com/Caqil/solana-share-signer/pkg/crypto/rand"
)

// Split shares secret under a random polynomial of degree threshold-1 and
// evaluates it at each of the given indices. Indices are fixed by the caller
// so that every share has a known role.
func Split(secret []byte, threshold int, indices []byte) ([]Share, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if headerSize+len(secret) > MaxShareSize {
		return nil, ErrShareTooLarge
	}
	if threshold < 2 || threshold > len(indices) || len(indices) > 255 {
		return nil, ErrInvalidThreshold
	}

	seen := make(map[byte]struct{}, len(indices))
	for _, x := range indices {
		if x == 0 {
			return nil, ErrZeroIndex
		}
		if _, dup := seen[x]; dup {
			return nil, ErrDuplicateIndex
		}
		seen[x] = struct{}{}
	}

	// coefficients a_1..a_{t-1} for every secret byte; a_0 is the secret byte
	coeffs := make([]byte, (threshold-1)*len(secret))
	defer security.SecureZero(coeffs)
	if _, err := io.ReadFull(rand.Reader, coeffs); err != nil {
		return nil, err
	}

	shares := make([]Share, len(indices))
	for n, x := range indices {
		data := make([]byte, len(secret))
		for i := range secret {
			data[i] = evaluate(secret[i], coeffs[i*(threshold-1):(i+1)*(threshold-1)], x)
		}
		shares[n] = Share{Index: x, Data: data}
	}

	return shares, nil
}

// evaluate computes a0 + a1*x + ... + a_k*x^k by Horner's rule
func evaluate(a0 byte, higher []byte, x byte) byte {
	var y byte
	for k := len(higher) - 1; k >= 0; k-- {
		y = gf256.Add(gf256.Mul(y, x), higher[k])
	}
	return gf256.Add(gf256.Mul(y, x), a0)
}
