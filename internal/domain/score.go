package domain

import (
	"fmt"
	"math"
)

// ScoreScale is the advisory upper bound of raw judge scores. Raw integers
// in [0, ScoreScale] are divided by it to produce a Score.
const ScoreScale = 10

// Score is a normalized judgment in [0,1]. The zero value is the safe
// default for any unrecoverable failure.
type Score float64

// Clamp forces s into [0,1]. NaN clamps to 0.
func (s Score) Clamp() Score {
	switch {
	case math.IsNaN(float64(s)) || s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// ScoreFromRaw converts a raw 0..ScoreScale integer into a Score. The
// second return value is false when raw lies outside the scale.
func ScoreFromRaw(raw int) (Score, bool) {
	if raw < 0 || raw > ScoreScale {
		return 0, false
	}
	return Score(float64(raw) / ScoreScale), true
}

// Float64 returns the score as a plain float.
func (s Score) Float64() float64 { return float64(s) }

// JudgeKind names the judgment criterion applied to an evaluation unit.
type JudgeKind string

// Supported judgment criteria.
const (
	// JudgeSectionRelevance compares a section's text with the user prompt.
	JudgeSectionRelevance JudgeKind = "section_relevance"

	// JudgeDescriptionAccuracy compares a section's description with the
	// fetched content of one of its links.
	JudgeDescriptionAccuracy JudgeKind = "description_accuracy"

	// JudgeSourceRelevance compares the fetched content of a link with the
	// user prompt.
	JudgeSourceRelevance JudgeKind = "source_relevance"
)

// JudgeKinds lists every supported kind in a stable order.
func JudgeKinds() []JudgeKind {
	return []JudgeKind{JudgeSectionRelevance, JudgeDescriptionAccuracy, JudgeSourceRelevance}
}

// Valid reports whether k is a known judge kind.
func (k JudgeKind) Valid() bool {
	switch k {
	case JudgeSectionRelevance, JudgeDescriptionAccuracy, JudgeSourceRelevance:
		return true
	default:
		return false
	}
}

// UsesLinks reports whether units of this kind are drawn per link rather
// than per section.
func (k JudgeKind) UsesLinks() bool {
	return k == JudgeDescriptionAccuracy || k == JudgeSourceRelevance
}

// EvaluationUnit is one scoring call planned for a participant. Units are
// created during planning and discarded once scored.
type EvaluationUnit struct {
	Kind    JudgeKind
	Section Section
	// URL is set for link-level kinds.
	URL string
	// Trivial marks a source-relevance unit drawn from a section without
	// links. It scores 1 and never reaches the oracle.
	Trivial bool
}

func (u EvaluationUnit) String() string {
	if u.URL != "" {
		return fmt.Sprintf("%s(%q, %s)", u.Kind, u.Section.Title, u.URL)
	}
	return fmt.Sprintf("%s(%q)", u.Kind, u.Section.Title)
}
