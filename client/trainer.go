package client

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/absmach/secagg/pkg/dp"
	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/fl"
)

// TrainResult is the outcome of one local training pass.
type TrainResult struct {
	Weights    []float64
	Loss       float64
	NumSamples int
}

// Trainer computes a local update from a snapshot of the global model.
type Trainer interface {
	Train(ctx context.Context, model fl.Model) (TrainResult, error)
}

type LinearTrainerConfig struct {
	LearningRate float64
	BatchSize    int
	Samples      int
	Seed         uint64
}

// LinearTrainer fits a linear regression with mini-batch SGD on a synthetic
// dataset drawn around a fixed target vector. It stands in for a real model
// and lets clients converge on a known solution.
type LinearTrainer struct {
	lr      float64
	batch   int
	samples int

	mu  sync.Mutex
	rng *rand.Rand
}

var _ Trainer = (*LinearTrainer)(nil)

func NewLinearTrainer(cfg LinearTrainerConfig) (*LinearTrainer, error) {
	switch {
	case cfg.LearningRate <= 0 || math.IsNaN(cfg.LearningRate) || math.IsInf(cfg.LearningRate, 0):
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("learning rate must be positive, got %v", cfg.LearningRate))
	case cfg.BatchSize < 1:
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize))
	case cfg.Samples < 1:
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("samples must be positive, got %d", cfg.Samples))
	}

	return &LinearTrainer{
		lr:      cfg.LearningRate,
		batch:   cfg.BatchSize,
		samples: cfg.Samples,
		rng:     dp.NewSeededRand(cfg.Seed),
	}, nil
}

// Target returns the vector the synthetic data is generated from.
func Target(dim int) []float64 {
	t := make([]float64, dim)
	for j := range t {
		t[j] = math.Sin(float64(j + 1))
	}

	return t
}

func (lt *LinearTrainer) Train(ctx context.Context, model fl.Model) (TrainResult, error) {
	dim := len(model.Weights)
	if dim == 0 {
		return TrainResult{}, pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("model has no weights"))
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()

	target := Target(dim)
	xs := make([][]float64, lt.samples)
	ys := make([]float64, lt.samples)
	for i := range xs {
		x := make([]float64, dim)
		for j := range x {
			x[j] = lt.rng.NormFloat64()
		}
		xs[i] = x
		ys[i] = dot(x, target) + 0.01*lt.rng.NormFloat64()
	}

	w := make([]float64, dim)
	copy(w, model.Weights)
	grad := make([]float64, dim)

	for start := 0; start < lt.samples; start += lt.batch {
		if err := ctx.Err(); err != nil {
			return TrainResult{}, err
		}

		end := min(start+lt.batch, lt.samples)
		clear(grad)
		for i := start; i < end; i++ {
			residual := dot(xs[i], w) - ys[i]
			for j := range grad {
				grad[j] += residual * xs[i][j]
			}
		}
		scale := 2 * lt.lr / float64(end-start)
		for j := range w {
			w[j] -= scale * grad[j]
		}
	}

	var loss float64
	for i := range xs {
		r := dot(xs[i], w) - ys[i]
		loss += r * r
	}

	return TrainResult{
		Weights:    w,
		Loss:       loss / float64(lt.samples),
		NumSamples: lt.samples,
	}, nil
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}

	return s
}
