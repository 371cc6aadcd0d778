package domain

import (
	"fmt"
	"slices"
)

// Pooling names how the unit scores of one judge are combined into the
// judge's score for a participant.
type Pooling string

const (
	// PoolMean averages the unit scores.
	PoolMean Pooling = "mean"
	// PoolMedian takes the median unit score.
	PoolMedian Pooling = "median"
	// PoolMax takes the best unit score.
	PoolMax Pooling = "max"
)

// ParsePooling maps a configured name onto a Pooling. The empty name is
// PoolMean.
func ParsePooling(name string) (Pooling, error) {
	switch p := Pooling(name); p {
	case "":
		return PoolMean, nil
	case PoolMean, PoolMedian, PoolMax:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown pooling %q", ErrInvalidConfiguration, name)
	}
}

// Pool combines scores. Every score is clamped first so NaN or
// out-of-range inputs cannot leak into the result. No scores pool to 0.
func (p Pooling) Pool(scores []Score) Score {
	if len(scores) == 0 {
		return 0
	}

	clamped := make([]Score, len(scores))
	for i, s := range scores {
		clamped[i] = s.Clamp()
	}

	switch p {
	case PoolMax:
		return slices.Max(clamped)
	case PoolMedian:
		slices.Sort(clamped)
		n := len(clamped)
		if n%2 == 1 {
			return clamped[n/2]
		}
		return (clamped[n/2-1] + clamped[n/2]) / 2
	default:
		var sum Score
		for _, s := range clamped {
			sum += s
		}
		return (sum / Score(len(clamped))).Clamp()
	}
}

// WeightedMean combines per-judge scores with their weights. Non-positive
// weights are skipped; if no weight is positive the result is 0.
func WeightedMean(scores []Score, weights []float64) Score {
	var num, den float64
	for i, s := range scores {
		if i >= len(weights) || weights[i] <= 0 {
			continue
		}
		num += weights[i] * float64(s.Clamp())
		den += weights[i]
	}
	if den == 0 {
		return 0
	}
	return Score(num / den).Clamp()
}
