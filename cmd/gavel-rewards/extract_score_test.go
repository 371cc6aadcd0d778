package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractScoreCmd(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{name: "labelled argument", args: []string{"Score: 7. Mostly on topic."}, want: "0.7\n"},
		{name: "full marks", args: []string{"**SCORE**: 10"}, want: "1\n"},
		{name: "no score", args: []string{"cannot judge"}, want: "0\n"},
		{name: "stdin", stdin: "Explanation first.\nScore: 3\n", want: "0.3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.stdin, append([]string{"extract-score"}, tt.args...)...)

			require.NoError(t, err)
			assert.Equal(t, tt.want, stdout)
		})
	}
}

func TestExtractScoreCmd_TooManyArgs(t *testing.T) {
	_, _, err := execute(t, "", "extract-score", "a", "b")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts at most 1 arg")
}
