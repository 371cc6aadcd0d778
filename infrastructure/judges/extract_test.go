package judges

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/gavel-rewards/internal/domain"
)

func TestExtractScore(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{name: "labelled score", raw: "Score: 8, Explanation: covers the question well", want: 0.8},
		{name: "bare integer", raw: "I'd say 5 out of 10", want: 0.5},
		{name: "no numbers", raw: "no numeric content", want: 0},
		{name: "labelled score out of range", raw: "Score: 15", want: 0},
		{name: "empty text", raw: "", want: 0},
		{name: "lowercase label", raw: "final score - 3", want: 0.3},
		{name: "uppercase label with markdown", raw: "**SCORE**: 10", want: 1.0},
		{name: "zero is a valid score", raw: "Score: 0. Off topic.", want: 0},
		{name: "label wins over earlier integer", raw: "Of the 3 claims, two hold. Score: 6", want: 0.6},
		{name: "out of range label falls back to bare integer", raw: "Score: 42 (scale mistake), I mean 9", want: 0.9},
		{name: "second label used when first out of range", raw: "score 11? no, score 4", want: 0.4},
		{name: "first in-range integer", raw: "Ratings 120, 77 and 2", want: 0.2},
		{name: "decimal splits on the dot", raw: "Score: 7.5", want: 0.7},
		{name: "fraction notation", raw: "8/10", want: 0.8},
		{name: "huge number ignored", raw: "Score: 99999999999999999999999", want: 0},
		{name: "digits glued to words are not standalone", raw: "version2 build7", want: 0},
		{name: "negative label", raw: "Score: -3", want: 0},
		{name: "negative bare integer", raw: "I'd go with -2", want: 0},
		{name: "negative label falls back to later integer", raw: "Score: -3, on reflection 6", want: 0.6},
		{name: "range notation keeps the lower bound", raw: "somewhere in 4-6", want: 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractScore(tt.raw)
			assert.InDelta(t, tt.want, got.Float64(), 1e-9)
			assert.GreaterOrEqual(t, got, domain.Score(0))
			assert.LessOrEqual(t, got, domain.Score(1))
		})
	}
}

func FuzzExtractScore(f *testing.F) {
	for _, seed := range []string{"Score: 8", "5 out of 10", "", "score:::11 then 3", "ＳＣＯＲＥ 5"} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		got := ExtractScore(raw)
		if got < 0 || got > 1 {
			t.Fatalf("ExtractScore(%q) = %v, want within [0,1]", raw, got)
		}
	})
}
