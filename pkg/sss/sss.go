// Package sss implements Shamir threshold secret sharing applied
// independently to every coordinate of a weight vector.
//
// Two schemes are available. FieldScheme works over GF(2^61-1) on a
// fixed-point encoding of the coordinates and gives information-theoretic
// secrecy below the threshold. RealScheme evaluates polynomials with real
// coefficients; it reconstructs only up to floating-point rounding and leaks
// information about the secret, and is kept for interoperability with
// deployments that already use it.
package sss

import (
	"fmt"
	"strings"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/fxamacker/cbor/v2"
)

// MaxShares bounds the number of shareholders.
const MaxShares = 255

type Kind uint8

const (
	KindField Kind = iota + 1
	KindReal
)

func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindReal:
		return "real"
	default:
		return "unknown"
	}
}

// ParseKind returns the scheme kind named by s. An empty name selects the field scheme.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "field":
		return KindField, nil
	case "real":
		return KindReal, nil
	default:
		return 0, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("unknown sharing scheme %q", s))
	}
}

// Share is one shareholder's portion of a vector: the polynomial of every
// coordinate evaluated at Index.
type Share struct {
	Index uint64    `cbor:"i" json:"index"`
	Kind  Kind      `cbor:"k" json:"kind"`
	Field []uint64  `cbor:"f,omitempty" json:"field,omitempty"`
	Real  []float64 `cbor:"r,omitempty" json:"real,omitempty"`
}

// Len returns the number of coordinates carried by the share.
func (s Share) Len() int {
	if s.Kind == KindReal {
		return len(s.Real)
	}

	return len(s.Field)
}

// Scheme splits vectors into shares and combines shares back.
type Scheme interface {
	// Split returns n shares of secret such that any t of them reconstruct it.
	Split(secret []float64, n, t int) ([]Share, error)

	// Combine reconstructs the secret from the first t shares.
	Combine(shares []Share, t int) ([]float64, error)

	Kind() Kind
}

// New returns the scheme of the given kind.
func New(kind Kind) (Scheme, error) {
	switch kind {
	case KindField:
		return FieldScheme{}, nil
	case KindReal:
		return RealScheme{}, nil
	default:
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("unknown sharing scheme %d", kind))
	}
}

// ValidateParams checks the shareholder count and the reconstruction threshold.
func ValidateParams(n, t int) error {
	switch {
	case t < 1:
		return pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("threshold must be at least 1, got %d", t))
	case t > n:
		return pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("threshold %d exceeds number of shares %d", t, n))
	case n > MaxShares:
		return pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("number of shares %d exceeds %d", n, MaxShares))
	}

	return nil
}

// selectShares checks that at least t consistent shares of the expected kind
// are present and returns the first t of them.
func selectShares(shares []Share, t int, kind Kind) ([]Share, int, error) {
	if t < 1 {
		return nil, 0, pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("threshold must be at least 1, got %d", t))
	}
	if len(shares) < t {
		return nil, 0, pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("need %d shares, got %d", t, len(shares)))
	}

	selected := shares[:t]
	size := selected[0].Len()
	seen := make(map[uint64]struct{}, t)
	for _, s := range selected {
		if s.Kind != kind {
			return nil, 0, pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("share %d uses scheme %s, expected %s", s.Index, s.Kind, kind))
		}
		if s.Index == 0 || s.Index > MaxShares {
			return nil, 0, pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("invalid share index %d", s.Index))
		}
		if _, dup := seen[s.Index]; dup {
			return nil, 0, pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("duplicate share index %d", s.Index))
		}
		seen[s.Index] = struct{}{}
		if s.Len() != size {
			return nil, 0, pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("share %d has %d coordinates, expected %d", s.Index, s.Len(), size))
		}
	}

	return selected, size, nil
}

// MarshalShare encodes a share as CBOR.
func MarshalShare(s Share) ([]byte, error) {
	return cbor.Marshal(s)
}

// UnmarshalShare decodes a CBOR encoded share.
func UnmarshalShare(data []byte) (Share, error) {
	var s Share
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Share{}, pkgerrors.Wrap(pkgerrors.ErrInvalidData, err)
	}

	return s, nil
}
