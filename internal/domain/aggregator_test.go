package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPooling_Pool(t *testing.T) {
	tests := []struct {
		name    string
		pooling Pooling
		scores  []Score
		want    float64
	}{
		{name: "mean of nothing", pooling: PoolMean, scores: nil, want: 0},
		{name: "mean", pooling: PoolMean, scores: []Score{0.2, 0.4, 0.9}, want: 0.5},
		{name: "mean clamps inputs", pooling: PoolMean, scores: []Score{Score(math.NaN()), 1.5}, want: 0.5},
		{name: "median odd", pooling: PoolMedian, scores: []Score{0.9, 0.1, 0.5}, want: 0.5},
		{name: "median even", pooling: PoolMedian, scores: []Score{0.2, 0.8, 0.4, 0.6}, want: 0.5},
		{name: "max", pooling: PoolMax, scores: []Score{0.3, 0.7, -2}, want: 0.7},
		{name: "max of nothing", pooling: PoolMax, scores: []Score{}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.pooling.Pool(tt.scores)
			assert.InDelta(t, tt.want, got.Float64(), 1e-9)
		})
	}
}

func TestPooling_DoesNotMutateInput(t *testing.T) {
	// Given scores in a specific order
	scores := []Score{0.9, 0.1, 0.5}

	// When pooled by median
	_ = PoolMedian.Pool(scores)

	// Then the caller's slice is untouched
	assert.Equal(t, []Score{0.9, 0.1, 0.5}, scores)
}

func TestParsePooling(t *testing.T) {
	p, err := ParsePooling("")
	require.NoError(t, err)
	assert.Equal(t, PoolMean, p)

	p, err = ParsePooling("median")
	require.NoError(t, err)
	assert.Equal(t, PoolMedian, p)

	_, err = ParsePooling("geometric")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestWeightedMean(t *testing.T) {
	tests := []struct {
		name    string
		scores  []Score
		weights []float64
		want    float64
	}{
		{name: "equal weights", scores: []Score{0.2, 0.6}, weights: []float64{1, 1}, want: 0.4},
		{name: "skewed weights", scores: []Score{1, 0}, weights: []float64{3, 1}, want: 0.75},
		{name: "zero weight skipped", scores: []Score{1, 0}, weights: []float64{1, 0}, want: 1},
		{name: "no positive weight", scores: []Score{1}, weights: []float64{0}, want: 0},
		{name: "missing weight skipped", scores: []Score{0.5, 1}, weights: []float64{1}, want: 0.5},
		{name: "empty", scores: nil, weights: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedMean(tt.scores, tt.weights)
			assert.InDelta(t, tt.want, got.Float64(), 1e-9)
		})
	}
}
