package client

import (
	"context"
	"math"
	"testing"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearTrainerConverges(t *testing.T) {
	lt, err := NewLinearTrainer(LinearTrainerConfig{LearningRate: 0.05, BatchSize: 16, Samples: 256, Seed: 7})
	require.NoError(t, err)

	model := fl.Model{Weights: make([]float64, 4)}
	var first float64
	for round := 0; round < 10; round++ {
		res, err := lt.Train(context.Background(), model)
		require.NoError(t, err)
		assert.Equal(t, 256, res.NumSamples)
		if round == 0 {
			first = res.Loss
		}
		model.Weights = res.Weights
	}

	res, err := lt.Train(context.Background(), model)
	require.NoError(t, err)
	assert.Less(t, res.Loss, first)

	target := Target(4)
	for j := range target {
		assert.InDelta(t, target[j], res.Weights[j], 0.05)
	}
}

func TestLinearTrainerDoesNotMutateModel(t *testing.T) {
	lt, err := NewLinearTrainer(LinearTrainerConfig{LearningRate: 0.1, BatchSize: 8, Samples: 32})
	require.NoError(t, err)

	model := fl.Model{Weights: []float64{0, 0}}
	_, err = lt.Train(context.Background(), model)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, model.Weights)
}

func TestLinearTrainerErrors(t *testing.T) {
	cases := []struct {
		desc string
		cfg  LinearTrainerConfig
	}{
		{desc: "zero learning rate", cfg: LinearTrainerConfig{BatchSize: 1, Samples: 1}},
		{desc: "nan learning rate", cfg: LinearTrainerConfig{LearningRate: math.NaN(), BatchSize: 1, Samples: 1}},
		{desc: "zero batch", cfg: LinearTrainerConfig{LearningRate: 0.1, Samples: 1}},
		{desc: "zero samples", cfg: LinearTrainerConfig{LearningRate: 0.1, BatchSize: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := NewLinearTrainer(tc.cfg)
			assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrConfiguration), "got %v", err)
		})
	}

	lt, err := NewLinearTrainer(LinearTrainerConfig{LearningRate: 0.1, BatchSize: 1, Samples: 1})
	require.NoError(t, err)
	_, err = lt.Train(context.Background(), fl.Model{})
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrInvalidData), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = lt.Train(ctx, fl.Model{Weights: []float64{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		valid    bool
	}{
		{Idle, Fetching, true},
		{Idle, Submitting, false},
		{Fetching, Training, true},
		{Fetching, Failed, true},
		{Training, Protecting, true},
		{Protecting, Submitting, true},
		{Submitting, Accepted, true},
		{Submitting, Retrying, true},
		{Submitting, Fetching, false},
		{Retrying, Fetching, true},
		{Retrying, Submitting, false},
		{Accepted, Fetching, true},
		{Failed, Fetching, true},
		{Failed, Accepted, false},
	}

	for _, tc := range cases {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidateTransition(tc.from, tc.to))
		})
	}

	assert.True(t, IsRoundEnd(Retrying))
	assert.False(t, IsRoundEnd(Submitting))
	assert.Equal(t, "Unknown", State(99).String())
}
