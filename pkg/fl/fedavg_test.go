package fl

import (
	"math"
	"testing"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
)

func TestFedAvgAggregate(t *testing.T) {
	agg := NewFedAvgAggregator()

	tests := []struct {
		name          string
		contributions []Contribution
		expectedError string
		validate      func(t *testing.T, result Aggregate)
	}{
		{
			name: "simple weighted average",
			contributions: []Contribution{
				{ClientID: "c1", NumSamples: 10, Loss: 0.5, Weights: []float64{1.0, 2.0, 3.0}},
				{ClientID: "c2", NumSamples: 20, Loss: 0.3, Weights: []float64{2.0, 3.0, 4.0}},
			},
			validate: func(t *testing.T, result Aggregate) {
				// (1*10 + 2*20)/30, (2*10 + 3*20)/30, (3*10 + 4*20)/30
				want := []float64{50.0 / 30, 80.0 / 30, 110.0 / 30}
				for i := range want {
					if math.Abs(result.Weights[i]-want[i]) > 1e-9 {
						t.Errorf("Expected weights[%d] ≈ %f, got %f", i, want[i], result.Weights[i])
					}
				}
				if result.TotalSamples != 30 {
					t.Errorf("Expected TotalSamples=30, got %d", result.TotalSamples)
				}
				if result.NumClients != 2 {
					t.Errorf("Expected NumClients=2, got %d", result.NumClients)
				}
				if math.Abs(result.MeanLoss-0.4) > 1e-9 {
					t.Errorf("Expected MeanLoss=0.4, got %f", result.MeanLoss)
				}
			},
		},
		{
			name: "two clients from the reference scenario",
			contributions: []Contribution{
				{ClientID: "a", NumSamples: 10, Weights: []float64{1.0, 1.0}},
				{ClientID: "b", NumSamples: 30, Weights: []float64{3.0, 3.0}},
			},
			validate: func(t *testing.T, result Aggregate) {
				for i, w := range result.Weights {
					if math.Abs(w-2.5) > 1e-12 {
						t.Errorf("Expected weights[%d]=2.5, got %f", i, w)
					}
				}
			},
		},
		{
			name: "single contribution",
			contributions: []Contribution{
				{ClientID: "c1", NumSamples: 100, Weights: []float64{5.0, 6.0, 7.0}},
			},
			validate: func(t *testing.T, result Aggregate) {
				if len(result.Weights) != 3 || result.Weights[0] != 5.0 || result.Weights[1] != 6.0 || result.Weights[2] != 7.0 {
					t.Errorf("Expected weights=[5.0, 6.0, 7.0], got %v", result.Weights)
				}
			},
		},
		{
			name:          "no contributions",
			expectedError: "cannot aggregate: no contributions",
		},
		{
			name: "zero total samples",
			contributions: []Contribution{
				{ClientID: "c1", NumSamples: 0, Weights: []float64{1.0}},
			},
			expectedError: "cannot aggregate: total_samples is zero",
		},
		{
			name: "empty vector",
			contributions: []Contribution{
				{ClientID: "c1", NumSamples: 1, Weights: []float64{}},
			},
			expectedError: "invalid vector: empty",
		},
		{
			name: "mismatched dimensions",
			contributions: []Contribution{
				{ClientID: "c1", NumSamples: 10, Weights: []float64{1.0, 2.0}},
				{ClientID: "c2", NumSamples: 20, Weights: []float64{3.0, 4.0, 5.0}},
			},
			expectedError: "cannot aggregate: mismatched vector dimensions",
		},
		{
			name: "negative samples",
			contributions: []Contribution{
				{ClientID: "c1", NumSamples: -1, Weights: []float64{1.0}},
			},
			expectedError: `cannot aggregate: negative num_samples from client "c1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := agg.Aggregate(tt.contributions)

			if tt.expectedError != "" {
				if err == nil {
					t.Fatalf("Expected error %q, got nil", tt.expectedError)
				}
				if !pkgerrors.Contains(err, pkgerrors.ErrAggregationPrecondition) {
					t.Errorf("Expected aggregation precondition error, got %v", err)
				}
				if !pkgerrors.Contains(err, pkgerrors.New(tt.expectedError)) {
					t.Errorf("Expected error %q, got %v", tt.expectedError, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestModelClone(t *testing.T) {
	m := Model{Version: 3, Weights: []float64{1, 2}}
	c := m.Clone()
	c.Weights[0] = 42

	if m.Weights[0] != 1 {
		t.Errorf("Clone shares the weights slice with the original")
	}
	if c.Version != 3 {
		t.Errorf("Expected Version=3, got %d", c.Version)
	}
}
