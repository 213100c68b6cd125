// Package gf256 implements arithmetic in the finite field GF(2^8)
//
// Elements are bytes interpreted as polynomials over GF(2). Multiplication is
// reduced modulo the AES polynomial x^8 + x^4 + x^3 + x + 1 (0x11B), which is
// the field used by the share format clients produce.
package gf256

// reduction is the low byte of the AES polynomial 0x11B
const reduction = 0x1B

// Add returns a + b. Addition and subtraction are both XOR.
func Add(a, b byte) byte {
	return a ^ b
}

// Mul returns a * b using carry-less multiplication reduced by 0x11B.
// The loop runs a fixed eight iterations regardless of operands.
func Mul(a, b byte) byte {
	var product byte
	for i := 0; i < 8; i++ {
		// mask is 0xFF when the low bit of b is set
		mask := -(b & 1)
		product ^= a & mask

		carry := -(a >> 7)
		a = (a << 1) ^ (reduction & carry)
		b >>= 1
	}
	return product
}

// Inverse returns a^-1 computed as a^254. Every non-zero element has an order
// dividing 255, so a^254 * a = a^255 = 1.
func Inverse(a byte) (byte, error) {
	if a == 0 {
		return 0, ErrZeroInverse
	}
	return pow(a, 254), nil
}

// Div returns a / b.
func Div(a, b byte) (byte, error) {
	if b == 0 {
		return 0, ErrDivideByZero
	}
	inv, err := Inverse(b)
	if err != nil {
		return 0, err
	}
	return Mul(a, inv), nil
}

// pow computes base^exp by square-and-multiply
func pow(base byte, exp uint) byte {
	result := byte(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = Mul(result, base)
		}
		base = Mul(base, base)
		exp >>= 1
	}
	return result
}
