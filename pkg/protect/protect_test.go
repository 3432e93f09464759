package protect

import (
	"testing"

	"github.com/absmach/secagg/pkg/crypto"
	"github.com/absmach/secagg/pkg/dp"
	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/sss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCipher(t *testing.T) *crypto.ShareCipher {
	t.Helper()

	hexKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	key, err := crypto.ParseKey(hexKey)
	require.NoError(t, err)
	c, err := crypto.NewShareCipher(key, crypto.AlgAESGCM)
	require.NoError(t, err)

	return c
}

func TestProtectRecover(t *testing.T) {
	c := newCipher(t)
	params := Params{NumShares: 3, Threshold: 2, Scheme: sss.KindField, Sensitivity: 1, Epsilon: 0.5}

	p, err := New(params, c)
	require.NoError(t, err)

	weights := []float64{1, 2, 3, -4}
	sealed, err := p.Protect(weights)
	require.NoError(t, err)
	assert.Len(t, sealed, 3)

	got, err := p.Recover(sealed)
	require.NoError(t, err)
	require.Len(t, got, len(weights))
	// Noise stddev is 2; the reconstruction must be close to the noised value,
	// which is within a generous bound of the input.
	assert.InDeltaSlice(t, weights, got, 20)

	// Any threshold-sized suffix recovers the same vector.
	again, err := p.Recover(sealed[1:])
	require.NoError(t, err)
	assert.InDeltaSlice(t, got, again, 1e-6)
}

func TestProtectRecoverExactWithNegligibleNoise(t *testing.T) {
	c := newCipher(t)
	for _, kind := range []sss.Kind{sss.KindField, sss.KindReal} {
		p, err := New(Params{NumShares: 4, Threshold: 3, Scheme: kind, Sensitivity: 1e-12, Epsilon: 1}, c)
		require.NoError(t, err)

		sealed, err := p.Protect([]float64{0.5, -0.25, 10})
		require.NoError(t, err)

		got, err := p.Recover(sealed)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{0.5, -0.25, 10}, got, 1e-6, "scheme %s", kind)
	}
}

func TestProtectClips(t *testing.T) {
	c := newCipher(t)
	g, err := dp.NewGaussianWithRand(1e-12, 1, dp.NewSeededRand(1))
	require.NoError(t, err)

	p, err := New(Params{NumShares: 2, Threshold: 2, Scheme: sss.KindField, Sensitivity: 1, Epsilon: 1, ClipNorm: 1}, c)
	require.NoError(t, err)
	p.WithNoise(g)

	sealed, err := p.Protect([]float64{3, 4})
	require.NoError(t, err)
	got, err := p.Recover(sealed)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, got, 1e-6)
}

func TestRecoverRejectsBadShares(t *testing.T) {
	c := newCipher(t)
	p, err := New(Params{NumShares: 3, Threshold: 2, Scheme: sss.KindField, Sensitivity: 1, Epsilon: 1}, c)
	require.NoError(t, err)

	sealed, err := p.Protect([]float64{1})
	require.NoError(t, err)

	_, err = p.Recover(sealed[:1])
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrInvalidData), "got %v", err)

	other, err := New(Params{NumShares: 3, Threshold: 2, Scheme: sss.KindField}, newCipher(t))
	require.NoError(t, err)
	_, err = other.Recover(sealed)
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrCrypto), "got %v", err)

	bad := append([]string{"garbage"}, sealed[1:]...)
	_, err = p.Recover(bad)
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrCrypto), "got %v", err)

	dup := []string{sealed[0], sealed[0]}
	_, err = p.Recover(dup)
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrInvalidData), "got %v", err)
}

func TestNewInvalid(t *testing.T) {
	c := newCipher(t)

	cases := []struct {
		desc   string
		params Params
		cipher *crypto.ShareCipher
	}{
		{desc: "missing cipher", params: Params{NumShares: 3, Threshold: 2, Scheme: sss.KindField}},
		{desc: "zero threshold", params: Params{NumShares: 3, Threshold: 0, Scheme: sss.KindField}, cipher: c},
		{desc: "threshold above shares", params: Params{NumShares: 2, Threshold: 3, Scheme: sss.KindField}, cipher: c},
		{desc: "zero epsilon", params: Params{NumShares: 3, Threshold: 2, Scheme: sss.KindField, Sensitivity: 1}, cipher: c},
		{desc: "unknown scheme", params: Params{NumShares: 3, Threshold: 2}, cipher: c},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := New(tc.params, tc.cipher)
			require.Error(t, err)
			assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrConfiguration), "got %v", err)
		})
	}

	recoverOnly, err := New(Params{NumShares: 3, Threshold: 2, Scheme: sss.KindField}, c)
	require.NoError(t, err)
	_, err = recoverOnly.Protect([]float64{1})
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrConfiguration))
}
