// Package dp implements the Gaussian mechanism used to noise a client's
// weight update before it leaves the client.
package dp

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
)

// Gaussian adds zero-mean Gaussian noise with standard deviation
// sensitivity/epsilon to every coordinate of a vector.
type Gaussian struct {
	sensitivity float64
	epsilon     float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGaussian returns a mechanism seeded from the operating system's entropy source.
func NewGaussian(sensitivity, epsilon float64) (*Gaussian, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("failed to seed noise source: %w", err)
	}

	return NewGaussianWithRand(sensitivity, epsilon, rand.New(rand.NewChaCha8(seed)))
}

// NewGaussianWithRand returns a mechanism drawing from rng. Tests use it to
// obtain reproducible noise.
func NewGaussianWithRand(sensitivity, epsilon float64, rng *rand.Rand) (*Gaussian, error) {
	if epsilon <= 0 || math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("epsilon must be positive, got %v", epsilon))
	}
	if sensitivity <= 0 || math.IsNaN(sensitivity) || math.IsInf(sensitivity, 0) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("sensitivity must be positive, got %v", sensitivity))
	}

	return &Gaussian{
		sensitivity: sensitivity,
		epsilon:     epsilon,
		rng:         rng,
	}, nil
}

// Scale returns the standard deviation of the noise added per coordinate.
func (g *Gaussian) Scale() float64 {
	return g.sensitivity / g.epsilon
}

// AddNoise returns a noised copy of vec.
func (g *Gaussian) AddNoise(vec []float64) []float64 {
	scale := g.Scale()
	out := make([]float64, len(vec))

	g.mu.Lock()
	defer g.mu.Unlock()

	for i, v := range vec {
		out[i] = v + g.rng.NormFloat64()*scale
	}

	return out
}

// AddNoise noises vec once with a fresh mechanism.
func AddNoise(vec []float64, sensitivity, epsilon float64) ([]float64, error) {
	g, err := NewGaussian(sensitivity, epsilon)
	if err != nil {
		return nil, err
	}

	return g.AddNoise(vec), nil
}

// Clip scales vec down so that its L2 norm does not exceed bound. A
// non-positive bound disables clipping. The input is never modified.
func Clip(vec []float64, bound float64) []float64 {
	out := make([]float64, len(vec))
	copy(out, vec)
	if bound <= 0 {
		return out
	}

	var sq float64
	for _, v := range vec {
		sq += v * v
	}
	norm := math.Sqrt(sq)
	if norm <= bound {
		return out
	}

	factor := bound / norm
	for i := range out {
		out[i] *= factor
	}

	return out
}

// seedFrom derives a ChaCha8 seed from a 64-bit value.
func seedFrom(v uint64) [32]byte {
	var seed [32]byte
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint64(seed[i*8:], v+uint64(i))
	}

	return seed
}

// NewSeededRand returns a deterministic generator for the given seed.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewChaCha8(seedFrom(seed)))
}
