package sss

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
)

const (
	// Prime is the Mersenne prime 2^61-1, the order of the sharing field.
	Prime uint64 = 1<<61 - 1

	fracBits = 24
	scale    = float64(1 << fracBits)

	// maxMagnitude bounds |v| so the encoded value stays below Prime/2.
	maxMagnitude = float64(1 << 35)
)

// FieldScheme shares fixed-point encodings of the coordinates over GF(Prime).
type FieldScheme struct{}

func (FieldScheme) Kind() Kind { return KindField }

func (FieldScheme) Split(secret []float64, n, t int) ([]Share, error) {
	if err := ValidateParams(n, t); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("secret is empty"))
	}

	encoded := make([]uint64, len(secret))
	for j, v := range secret {
		e, err := Encode(v)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("coordinate %d: %w", j, err))
		}
		encoded[j] = e
	}

	shares := make([]Share, n)
	for i := range shares {
		shares[i] = Share{
			Index: uint64(i + 1),
			Kind:  KindField,
			Field: make([]uint64, len(secret)),
		}
	}

	coeffs := make([]uint64, t)
	for j, s := range encoded {
		coeffs[0] = s
		for k := 1; k < t; k++ {
			c, err := randomElement()
			if err != nil {
				return nil, err
			}
			coeffs[k] = c
		}
		for i := range shares {
			shares[i].Field[j] = evalPoly(coeffs, shares[i].Index)
		}
	}

	return shares, nil
}

func (FieldScheme) Combine(shares []Share, t int) ([]float64, error) {
	selected, size, err := selectShares(shares, t, KindField)
	if err != nil {
		return nil, err
	}

	lambdas := make([]uint64, len(selected))
	for i, si := range selected {
		num, den := uint64(1), uint64(1)
		for k, sk := range selected {
			if k == i {
				continue
			}
			num = mulMod(num, sk.Index)
			den = mulMod(den, subMod(sk.Index, si.Index))
		}
		lambdas[i] = mulMod(num, invMod(den))
	}

	out := make([]float64, size)
	for j := range out {
		var acc uint64
		for i, s := range selected {
			acc = addMod(acc, mulMod(lambdas[i], s.Field[j]))
		}
		out[j] = Decode(acc)
	}

	return out, nil
}

// Encode maps v to its signed fixed-point representative in GF(Prime).
func Encode(v float64) (uint64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %v is not finite", v)
	}
	if math.Abs(v) >= maxMagnitude {
		return 0, fmt.Errorf("value %v exceeds encodable magnitude", v)
	}

	i := int64(math.Round(v * scale))
	if i >= 0 {
		return uint64(i), nil
	}

	return Prime - uint64(-i), nil
}

// Decode is the inverse of Encode.
func Decode(e uint64) float64 {
	e %= Prime
	if e > Prime/2 {
		return -float64(Prime-e) / scale
	}

	return float64(e) / scale
}

func evalPoly(coeffs []uint64, x uint64) uint64 {
	// Horner's rule.
	var acc uint64
	for k := len(coeffs) - 1; k >= 0; k-- {
		acc = addMod(mulMod(acc, x), coeffs[k])
	}

	return acc
}

func randomElement() (uint64, error) {
	var buf [8]byte
	for {
		if _, err := crand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("failed to read randomness: %w", err)
		}
		v := binary.LittleEndian.Uint64(buf[:]) & Prime
		if v < Prime {
			return v, nil
		}
	}
}

func addMod(a, b uint64) uint64 {
	return (a + b) % Prime
}

func subMod(a, b uint64) uint64 {
	return (a + Prime - b%Prime) % Prime
}

func mulMod(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a%Prime, b%Prime)

	return bits.Rem64(hi, lo, Prime)
}

func invMod(a uint64) uint64 {
	// Fermat: a^(p-2) mod p.
	result, base, exp := uint64(1), a%Prime, Prime-2
	for exp > 0 {
		if exp&1 == 1 {
			result = mulMod(result, base)
		}
		base = mulMod(base, base)
		exp >>= 1
	}

	return result
}
