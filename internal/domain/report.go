// Package domain contains the round-scoped value types of the reward
// pipeline: participant reports, evaluation units, scores and reward events.
// Nothing in this package performs I/O; every type is safe to share between
// goroutines once constructed.
package domain

import "strings"

// Section is one titled block of a research report.
// Links are treated as a set but kept in submission order; duplicates are
// tolerated. Only one level of Subsections is ever evaluated.
type Section struct {
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Links       []string  `json:"links,omitempty" yaml:"links,omitempty"`
	Subsections []Section `json:"subsections,omitempty" yaml:"subsections,omitempty"`
}

// HasLinks reports whether the section references at least one URL.
func (s Section) HasLinks() bool { return len(s.Links) > 0 }

// Text renders the section as plain text for judging: the title, the
// description and the titles and descriptions of its direct subsections.
func (s Section) Text() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.Title))
	if d := strings.TrimSpace(s.Description); d != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(d)
	}
	for _, sub := range s.Subsections {
		b.WriteString("\n- ")
		b.WriteString(strings.TrimSpace(sub.Title))
		if d := strings.TrimSpace(sub.Description); d != "" {
			b.WriteString(": ")
			b.WriteString(d)
		}
	}
	return b.String()
}

// Report is the ordered list of sections submitted by one participant.
type Report []Section

// Flatten returns the top-level sections followed in place by their direct
// subsections. Deeper nesting is dropped.
func (r Report) Flatten() []Section {
	out := make([]Section, 0, len(r))
	for _, s := range r {
		top := s
		top.Subsections = nil
		out = append(out, top)
		for _, sub := range s.Subsections {
			sub.Subsections = nil
			out = append(out, sub)
		}
	}
	return out
}

// URLs returns every distinct link reachable from the report's sections and
// their direct subsections, in first-seen order.
func (r Report) URLs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range r.Flatten() {
		for _, u := range s.Links {
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

// ParticipantID is the stable integer identity of a participant. Resolution
// from external handles happens before a round reaches this package.
type ParticipantID int64

// ParticipantResult pairs a participant with the report it submitted for
// the current round.
type ParticipantResult struct {
	ParticipantID ParticipantID `json:"participant_id" yaml:"participant_id"`
	Report        Report        `json:"report" yaml:"report"`
}

// Round is one batch evaluation over every participant's report against a
// single user prompt.
type Round struct {
	ID           string              `json:"id,omitempty" yaml:"id,omitempty"`
	Prompt       string              `json:"prompt" yaml:"prompt"`
	Participants []ParticipantResult `json:"participants" yaml:"participants"`
}

// DedupURLs removes empty and repeated entries while keeping first-seen order.
func DedupURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
