package application

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/ahrav/gavel-rewards/internal/domain"
)

// Sampler bounds how much of a report is evaluated by drawing uniform
// subsets of sections and links without replacement. The random source is
// injected so rounds can be replayed; a Sampler is safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler creates a sampler seeded with seed.
func NewSampler(seed uint64) *Sampler {
	return NewSamplerFrom(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewSamplerFrom creates a sampler over an existing source. A nil rng uses a
// randomly seeded one.
func NewSamplerFrom(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng}
}

// Candidates returns the sections eligible for sampling: the top-level
// sections, plus their direct subsections when flatten is set.
func (s *Sampler) Candidates(report domain.Report, flatten bool) []domain.Section {
	if flatten {
		return report.Flatten()
	}
	return append([]domain.Section(nil), report...)
}

// Sections picks min(k, len(cands)) sections uniformly without replacement.
// The picks keep their candidate order.
func (s *Sampler) Sections(cands []domain.Section, k int) []domain.Section {
	idx := s.pick(len(cands), k)
	out := make([]domain.Section, len(idx))
	for i, j := range idx {
		out[i] = cands[j]
	}
	return out
}

// Links picks min(l, n) distinct links of section uniformly without
// replacement, where n counts distinct non-empty links.
func (s *Sampler) Links(section domain.Section, l int) []string {
	links := domain.DedupURLs(section.Links)
	idx := s.pick(len(links), l)
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = links[j]
	}
	return out
}

// pick returns min(k, n) distinct indices in [0, n) in ascending order
// using a partial Fisher-Yates shuffle.
func (s *Sampler) pick(n, k int) []int {
	if k <= 0 || n <= 0 {
		return nil
	}
	k = min(k, n)

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	s.mu.Lock()
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	s.mu.Unlock()

	picked := perm[:k]
	slices.Sort(picked)
	return picked
}
