package fl

import (
	"fmt"
	"math"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/montanaflynn/stats"
)

// FedAvgAggregator computes the sample-weighted average of the contributions.
type FedAvgAggregator struct{}

func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

func (a *FedAvgAggregator) Aggregate(contributions []Contribution) (Aggregate, error) {
	if len(contributions) == 0 {
		return Aggregate{}, precondition("cannot aggregate: no contributions")
	}

	var (
		sum          []float64
		dim          int
		totalSamples int
		losses       = make([]float64, 0, len(contributions))
	)

	for i := range contributions {
		c := contributions[i]

		if c.NumSamples < 0 {
			return Aggregate{}, precondition(fmt.Sprintf("cannot aggregate: negative num_samples from client %q", c.ClientID))
		}
		if totalSamples > math.MaxInt-c.NumSamples {
			return Aggregate{}, precondition("cannot aggregate: total_samples overflows")
		}

		if i == 0 {
			dim = len(c.Weights)
			if dim == 0 {
				return Aggregate{}, precondition("invalid vector: empty")
			}
			sum = make([]float64, dim)
		}
		if len(c.Weights) != dim {
			return Aggregate{}, precondition("cannot aggregate: mismatched vector dimensions")
		}

		w := float64(c.NumSamples)
		for j, v := range c.Weights {
			sum[j] += v * w
		}
		totalSamples += c.NumSamples
		losses = append(losses, c.Loss)
	}

	if totalSamples == 0 {
		return Aggregate{}, precondition("cannot aggregate: total_samples is zero")
	}

	den := float64(totalSamples)
	for i := range sum {
		sum[i] /= den
	}

	meanLoss, err := stats.Mean(losses)
	if err != nil {
		meanLoss = 0
	}

	return Aggregate{
		Weights:      sum,
		NumClients:   len(contributions),
		TotalSamples: totalSamples,
		MeanLoss:     meanLoss,
	}, nil
}

func precondition(msg string) error {
	return pkgerrors.Wrap(pkgerrors.ErrAggregationPrecondition, pkgerrors.New(msg))
}
