package application

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gavel-rewards/internal/domain"
	"github.com/ahrav/gavel-rewards/internal/testutils"
)

func nestedReport() domain.Report {
	parent := testutils.SectionWithLinks("Overview", "https://a.example")
	parent.Subsections = []domain.Section{
		testutils.SectionWithLinks("Detail", "https://b.example"),
		testutils.SectionWithLinks("Caveats"),
	}
	return domain.Report{parent, testutils.SectionWithLinks("Outlook", "https://c.example")}
}

func TestSampler_Candidates(t *testing.T) {
	s := NewSampler(1)
	report := nestedReport()

	top := s.Candidates(report, false)
	require.Len(t, top, 2)
	assert.Equal(t, "Overview", top[0].Title)
	assert.Len(t, top[0].Subsections, 2, "top-level candidates keep their subsections for rendering")

	flat := s.Candidates(report, true)
	titles := make([]string, len(flat))
	for i, sec := range flat {
		titles[i] = sec.Title
	}
	assert.Equal(t, []string{"Overview", "Detail", "Caveats", "Outlook"}, titles)
}

func TestSampler_Sections(t *testing.T) {
	cands := make([]domain.Section, 6)
	for i := range cands {
		cands[i] = domain.Section{Title: fmt.Sprintf("s%d", i)}
	}

	tests := []struct {
		name string
		k    int
		want int
	}{
		{name: "fewer than available", k: 3, want: 3},
		{name: "more than available", k: 10, want: 6},
		{name: "zero", k: 0, want: 0},
		{name: "negative", k: -1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewSampler(7).Sections(cands, tt.k)
			assert.Len(t, got, tt.want)

			seen := make(map[string]bool)
			for _, s := range got {
				assert.False(t, seen[s.Title], "section %s picked twice", s.Title)
				seen[s.Title] = true
			}
		})
	}
}

func TestSampler_LinksDeduplicates(t *testing.T) {
	section := testutils.SectionWithLinks("dup", "u1", "u1", "u2", "", "u2")

	got := NewSampler(3).Links(section, 5)

	assert.ElementsMatch(t, []string{"u1", "u2"}, got)
}

func TestSampler_SameSeedSamePicks(t *testing.T) {
	links := make([]string, 50)
	for i := range links {
		links[i] = fmt.Sprintf("https://example.com/%d", i)
	}
	section := testutils.SectionWithLinks("many", links...)

	a := NewSampler(42).Links(section, 5)
	b := NewSampler(42).Links(section, 5)

	assert.Equal(t, a, b)
}

func TestSampler_UniformOverDraws(t *testing.T) {
	// Given four candidates sampled one at a time many times
	cands := []domain.Section{{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"}}
	s := NewSampler(99)
	counts := make(map[string]int)

	// When drawing repeatedly
	const draws = 4000
	for range draws {
		picked := s.Sections(cands, 1)
		require.Len(t, picked, 1)
		counts[picked[0].Title]++
	}

	// Then each candidate is picked roughly a quarter of the time
	for _, c := range cands {
		assert.InDelta(t, draws/4, counts[c.Title], draws*0.05, "candidate %s", c.Title)
	}
}
