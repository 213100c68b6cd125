package shamir

import (
	"github.com/Caqil/solana-share-signer/internal/gf256"
)

// Combine reconstructs the secret f(0) from two or more shares by Lagrange
// interpolation over GF(2^8). For two shares (x1, y1), (x2, y2) this is
//
//	secret[i] = y1[i]*x2/(x1^x2) ^ y2[i]*x1/(x1^x2)
//
// The result has the payload length of the inputs and is owned by the caller.
func Combine(shares ...Share) ([]byte, error) {
	if len(shares) < 2 {
		return nil, ErrInsufficientShares
	}

	size := len(shares[0].Data)
	if size == 0 {
		return nil, ErrEmptyPayload
	}

	seen := make(map[byte]struct{}, len(shares))
	for _, s := range shares {
		if s.Index == 0 {
			return nil, ErrZeroIndex
		}
		if len(s.Data) != size {
			return nil, ErrLengthMismatch
		}
		if _, dup := seen[s.Index]; dup {
			return nil, ErrDuplicateIndex
		}
		seen[s.Index] = struct{}{}
	}

	basis, err := lagrangeAtZero(shares)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, size)
	for i := range secret {
		var acc byte
		for j, s := range shares {
			acc = gf256.Add(acc, gf256.Mul(s.Data[i], basis[j]))
		}
		secret[i] = acc
	}

	return secret, nil
}

// lagrangeAtZero computes L_j(0) = prod_{m != j} x_m / (x_j ^ x_m)
func lagrangeAtZero(shares []Share) ([]byte, error) {
	basis := make([]byte, len(shares))

	for j := range shares {
		num, den := byte(1), byte(1)
		for m := range shares {
			if m == j {
				continue
			}
			num = gf256.Mul(num, shares[m].Index)
			den = gf256.Mul(den, gf256.Add(shares[j].Index, shares[m].Index))
		}

		coeff, err := gf256.Div(num, den)
		if err != nil {
			return nil, err
		}
		basis[j] = coeff
	}

	return basis, nil
}
