// Package protect chains the noise mechanism, the secret sharing engine and
// the share cipher into the transformation a client applies to its update,
// and its inverse used by the manager.
package protect

import (
	"fmt"

	"github.com/absmach/secagg/pkg/crypto"
	"github.com/absmach/secagg/pkg/dp"
	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/sss"
)

type Params struct {
	NumShares   int
	Threshold   int
	Scheme      sss.Kind
	Sensitivity float64
	Epsilon     float64
	// ClipNorm bounds the L2 norm of an update before noising. Zero disables clipping.
	ClipNorm float64
}

type Protector struct {
	params Params
	noise  *dp.Gaussian
	scheme sss.Scheme
	cipher *crypto.ShareCipher
}

// New validates params and builds a protector. The noise mechanism is only
// needed on the client; a manager that only recovers vectors may pass zero
// Sensitivity and Epsilon.
func New(params Params, cipher *crypto.ShareCipher) (*Protector, error) {
	if cipher == nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("share cipher is required"))
	}
	if err := sss.ValidateParams(params.NumShares, params.Threshold); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, err)
	}

	scheme, err := sss.New(params.Scheme)
	if err != nil {
		return nil, err
	}

	p := &Protector{
		params: params,
		scheme: scheme,
		cipher: cipher,
	}

	if params.Sensitivity != 0 || params.Epsilon != 0 {
		p.noise, err = dp.NewGaussian(params.Sensitivity, params.Epsilon)
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

// WithNoise replaces the noise mechanism.
func (p *Protector) WithNoise(g *dp.Gaussian) *Protector {
	p.noise = g

	return p
}

func (p *Protector) Params() Params {
	return p.params
}

// Protect clips, noises, splits and encrypts weights, returning one
// ciphertext per shareholder.
func (p *Protector) Protect(weights []float64) ([]string, error) {
	if p.noise == nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("noise mechanism is not configured"))
	}

	noised := p.noise.AddNoise(dp.Clip(weights, p.params.ClipNorm))

	shares, err := p.scheme.Split(noised, p.params.NumShares, p.params.Threshold)
	if err != nil {
		return nil, err
	}

	sealed := make([]string, len(shares))
	for i, s := range shares {
		if sealed[i], err = p.cipher.Seal(s); err != nil {
			return nil, fmt.Errorf("failed to encrypt share %d: %w", s.Index, err)
		}
	}

	return sealed, nil
}

// Recover decrypts every share and reconstructs the vector. A share that
// fails to decrypt rejects the whole submission.
func (p *Protector) Recover(encrypted []string) ([]float64, error) {
	if len(encrypted) < p.params.Threshold {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("got %d shares, threshold is %d", len(encrypted), p.params.Threshold))
	}

	shares := make([]sss.Share, len(encrypted))
	for i, e := range encrypted {
		s, err := p.cipher.Open(e)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrCrypto, fmt.Errorf("share %d could not be opened", i))
		}
		shares[i] = s
	}

	vec, err := p.scheme.Combine(shares, p.params.Threshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidData, err)
	}

	return vec, nil
}
