package gf256

import "errors"

var (
	// ErrZeroInverse is returned when the multiplicative inverse of zero is requested
	ErrZeroInverse = errors.New("gf256: zero has no multiplicative inverse")

	// ErrDivideByZero is returned when dividing by the zero element
	ErrDivideByZero = errors.New("gf256: division by zero")
)
