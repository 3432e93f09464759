package sss

import (
	"math"
	"math/rand/v2"
	"testing"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subsets returns every k-element subset of {0..n-1}.
func subsets(n, k int) [][]int {
	var out [][]int
	var walk func(start int, cur []int)
	walk = func(start int, cur []int) {
		if len(cur) == k {
			out = append(out, append([]int(nil), cur...))
			return
		}
		for i := start; i < n; i++ {
			walk(i+1, append(cur, i))
		}
	}
	walk(0, nil)

	return out
}

func pick(shares []Share, idx []int) []Share {
	out := make([]Share, 0, len(idx))
	for _, i := range idx {
		out = append(out, shares[i])
	}
	// Reverse so reconstruction does not depend on ascending indices.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out
}

func TestRoundTrip(t *testing.T) {
	secret := []float64{0, 1.5, -2.25, 1234.5678, -0.000123, 42}

	schemes := []struct {
		scheme Scheme
		tol    float64
	}{
		{scheme: FieldScheme{}, tol: 1.0 / scale},
		{scheme: RealScheme{}, tol: 1e-6},
	}

	for _, sc := range schemes {
		for n := 1; n <= 5; n++ {
			for th := 1; th <= n; th++ {
				shares, err := sc.scheme.Split(secret, n, th)
				require.NoError(t, err)
				require.Len(t, shares, n)

				for _, idx := range subsets(n, th) {
					got, err := sc.scheme.Combine(pick(shares, idx), th)
					require.NoError(t, err, "%s n=%d t=%d subset=%v", sc.scheme.Kind(), n, th, idx)
					assert.InDeltaSlice(t, secret, got, sc.tol, "%s n=%d t=%d subset=%v", sc.scheme.Kind(), n, th, idx)
				}
			}
		}
	}
}

func TestRoundTripRandomVectors(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 50; i++ {
		secret := make([]float64, 1+rng.IntN(20))
		for j := range secret {
			secret[j] = (rng.Float64() - 0.5) * 2000
		}
		n := 2 + rng.IntN(6)
		th := 1 + rng.IntN(n)

		shares, err := FieldScheme{}.Split(secret, n, th)
		require.NoError(t, err)
		got, err := FieldScheme{}.Combine(shares[n-th:], th)
		require.NoError(t, err)
		assert.InDeltaSlice(t, secret, got, 1.0/scale)
	}
}

func TestSplitInvalidParams(t *testing.T) {
	cases := []struct {
		desc   string
		secret []float64
		n, t   int
	}{
		{desc: "zero threshold", secret: []float64{1}, n: 3, t: 0},
		{desc: "threshold above shares", secret: []float64{1}, n: 2, t: 3},
		{desc: "too many shares", secret: []float64{1}, n: MaxShares + 1, t: 2},
		{desc: "empty secret", secret: nil, n: 3, t: 2},
	}

	for _, scheme := range []Scheme{FieldScheme{}, RealScheme{}} {
		for _, tc := range cases {
			t.Run(scheme.Kind().String()+"/"+tc.desc, func(t *testing.T) {
				_, err := scheme.Split(tc.secret, tc.n, tc.t)
				require.Error(t, err)
				assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrInvalidParams), "got %v", err)
			})
		}
	}
}

func TestFieldSplitRejectsUnencodableValues(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), maxMagnitude} {
		_, err := FieldScheme{}.Split([]float64{v}, 3, 2)
		assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrInvalidData), "value %v: got %v", v, err)
	}
}

func TestCombineInvalidShares(t *testing.T) {
	shares, err := FieldScheme{}.Split([]float64{1, 2}, 3, 2)
	require.NoError(t, err)
	realShares, err := RealScheme{}.Split([]float64{1, 2}, 3, 2)
	require.NoError(t, err)

	short := shares[1]
	short.Field = short.Field[:1]

	zero := shares[1]
	zero.Index = 0

	cases := []struct {
		desc   string
		shares []Share
	}{
		{desc: "below threshold", shares: shares[:1]},
		{desc: "duplicate index", shares: []Share{shares[0], shares[0]}},
		{desc: "zero index", shares: []Share{shares[0], zero}},
		{desc: "length mismatch", shares: []Share{shares[0], short}},
		{desc: "mixed schemes", shares: []Share{shares[0], realShares[1]}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := FieldScheme{}.Combine(tc.shares, 2)
			require.Error(t, err)
			assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrInvalidParams), "got %v", err)
		})
	}
}

// TestFieldShareSecrecy checks that with t=2, n=3 a single share is
// distributed the same way regardless of the secret.
func TestFieldShareSecrecy(t *testing.T) {
	const trials = 4000

	fractionLow := func(secret float64, holder int) float64 {
		low := 0
		for i := 0; i < trials; i++ {
			shares, err := FieldScheme{}.Split([]float64{secret}, 3, 2)
			require.NoError(t, err)
			if shares[holder].Field[0] < Prime/2 {
				low++
			}
		}

		return float64(low) / trials
	}

	for holder := 0; holder < 3; holder++ {
		a := fractionLow(0, holder)
		b := fractionLow(1e6, holder)
		assert.InDelta(t, 0.5, a, 0.05, "holder %d, secret 0", holder)
		assert.InDelta(t, 0.5, b, 0.05, "holder %d, secret 1e6", holder)
		assert.InDelta(t, a, b, 0.07, "holder %d", holder)
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, v := range []float64{0, 1, -1, 0.5, -1234.25, 1 << 30, -(1 << 30)} {
		e, err := Encode(v)
		require.NoError(t, err)
		assert.InDelta(t, v, Decode(e), 1.0/scale)
	}
}

func TestShareCodec(t *testing.T) {
	shares, err := FieldScheme{}.Split([]float64{3.5, -1}, 3, 2)
	require.NoError(t, err)

	data, err := MarshalShare(shares[2])
	require.NoError(t, err)
	got, err := UnmarshalShare(data)
	require.NoError(t, err)
	assert.Equal(t, shares[2], got)

	_, err = UnmarshalShare([]byte{0xff, 0x00})
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrInvalidData), "got %v", err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindField, k)

	k, err = ParseKind("REAL")
	require.NoError(t, err)
	assert.Equal(t, KindReal, k)

	_, err = ParseKind("gf256")
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrConfiguration))
}
