package sss

import (
	"fmt"
	"math"
	"math/rand/v2"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
)

// coeffRange is the upper bound of the uniform real coefficients.
const coeffRange = 100.0

// RealScheme evaluates real-coefficient polynomials. Reconstruction is exact
// only up to floating-point rounding.
type RealScheme struct{}

func (RealScheme) Kind() Kind { return KindReal }

func (RealScheme) Split(secret []float64, n, t int) ([]Share, error) {
	if err := ValidateParams(n, t); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("secret is empty"))
	}

	shares := make([]Share, n)
	for i := range shares {
		shares[i] = Share{
			Index: uint64(i + 1),
			Kind:  KindReal,
			Real:  make([]float64, len(secret)),
		}
	}

	coeffs := make([]float64, t)
	for j, s := range secret {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("coordinate %d is not finite", j))
		}
		coeffs[0] = s
		for k := 1; k < t; k++ {
			coeffs[k] = rand.Float64() * coeffRange
		}
		for i := range shares {
			x := float64(shares[i].Index)
			var acc float64
			for k := len(coeffs) - 1; k >= 0; k-- {
				acc = acc*x + coeffs[k]
			}
			shares[i].Real[j] = acc
		}
	}

	return shares, nil
}

func (RealScheme) Combine(shares []Share, t int) ([]float64, error) {
	selected, size, err := selectShares(shares, t, KindReal)
	if err != nil {
		return nil, err
	}

	lambdas := make([]float64, len(selected))
	for i, si := range selected {
		l := 1.0
		xi := float64(si.Index)
		for k, sk := range selected {
			if k == i {
				continue
			}
			xk := float64(sk.Index)
			l *= xk / (xk - xi)
		}
		lambdas[i] = l
	}

	out := make([]float64, size)
	for j := range out {
		var acc float64
		for i, s := range selected {
			acc += lambdas[i] * s.Real[j]
		}
		out[j] = acc
	}

	return out, nil
}
