package judges

import (
	"fmt"

	"github.com/ahrav/gavel-rewards/internal/domain"
	"github.com/ahrav/gavel-rewards/internal/ports"
)

// SectionRelevanceData is rendered into section relevance prompts.
type SectionRelevanceData struct {
	Section string
	Prompt  string
}

// DescriptionAccuracyData is rendered into description accuracy prompts.
type DescriptionAccuracyData struct {
	Description  string
	Content      string
	ContentLimit int
}

// SourceRelevanceData is rendered into source relevance prompts.
type SourceRelevanceData struct {
	Content      string
	Prompt       string
	ContentLimit int
}

// binders map the positional contexts of Judge.Score onto each variant's
// named template fields.
var binders = map[domain.JudgeKind]func(a, b string, limit int) any{
	domain.JudgeSectionRelevance: func(a, b string, _ int) any {
		return SectionRelevanceData{Section: a, Prompt: b}
	},
	domain.JudgeDescriptionAccuracy: func(a, b string, limit int) any {
		return DescriptionAccuracyData{Description: a, Content: b, ContentLimit: limit}
	},
	domain.JudgeSourceRelevance: func(a, b string, limit int) any {
		return SourceRelevanceData{Content: a, Prompt: b, ContentLimit: limit}
	},
}

const scoreFormat = "Answer with a single line of the form \"Score: N\" where N is an integer from 0 to 10, " +
	"optionally followed by one sentence of explanation."

const (
	sectionRelevanceInstruction = "You review sections of research reports. Decide how directly the section " +
		"addresses the user's research question. A section that is off-topic, generic filler or " +
		"contradicts the question scores low; a focused, informative section scores high. " + scoreFormat

	sectionRelevanceTemplate = `Research question:
{{trim .Prompt}}

Report section:
{{trim .Section}}

How relevant is this section to the research question?`

	descriptionAccuracyInstruction = "You verify citations in research reports. Decide whether the web page " +
		"content supports the claims made in the section description. Unsupported, unrelated or " +
		"contradicted claims score low; claims clearly backed by the page score high. " + scoreFormat

	descriptionAccuracyTemplate = `Section description:
{{default "(no description)" (trim .Description)}}

Cited page content:
{{truncate (squash .Content) .ContentLimit}}

How accurately does the description reflect the cited page?`

	sourceRelevanceInstruction = "You review sources cited by research reports. Decide how useful the web page " +
		"content is for answering the user's research question. Empty, unrelated or spam pages score low; " +
		"authoritative pages that address the question score high. " + scoreFormat

	sourceRelevanceTemplate = `Research question:
{{trim .Prompt}}

Source page content:
{{truncate (squash .Content) .ContentLimit}}

How relevant is this source to the research question?`
)

// DefaultConfig returns the built-in configuration for kind.
func DefaultConfig(kind domain.JudgeKind) (Config, error) {
	base := Config{
		Kind:        kind,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}

	switch kind {
	case domain.JudgeSectionRelevance:
		base.Instruction = sectionRelevanceInstruction
		base.PromptTemplate = sectionRelevanceTemplate
	case domain.JudgeDescriptionAccuracy:
		base.Instruction = descriptionAccuracyInstruction
		base.PromptTemplate = descriptionAccuracyTemplate
	case domain.JudgeSourceRelevance:
		base.Instruction = sourceRelevanceInstruction
		base.PromptTemplate = sourceRelevanceTemplate
	default:
		return Config{}, fmt.Errorf("%w: %s", domain.ErrUnknownJudgeKind, kind)
	}

	return base, nil
}

// Settings overrides the oracle parameters of a built-in judge. Zero
// values keep the defaults.
type Settings struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

// NewForKind builds the built-in judge for kind, applying settings.
func NewForKind(kind domain.JudgeKind, oracle ports.Oracle, settings Settings, opts ...Option) (*Judge, error) {
	config, err := DefaultConfig(kind)
	if err != nil {
		return nil, err
	}
	if settings.Model != "" {
		config.Model = settings.Model
	}
	if settings.Temperature != nil {
		config.Temperature = *settings.Temperature
	}
	if settings.MaxTokens > 0 {
		config.MaxTokens = settings.MaxTokens
	}
	return New(oracle, config, opts...)
}

// NewSectionRelevance compares section text (contextA) with the user
// prompt (contextB).
func NewSectionRelevance(oracle ports.Oracle, opts ...Option) (*Judge, error) {
	return NewForKind(domain.JudgeSectionRelevance, oracle, Settings{}, opts...)
}

// NewDescriptionAccuracy compares a section description (contextA) with
// fetched page content (contextB).
func NewDescriptionAccuracy(oracle ports.Oracle, opts ...Option) (*Judge, error) {
	return NewForKind(domain.JudgeDescriptionAccuracy, oracle, Settings{}, opts...)
}

// NewSourceRelevance compares fetched page content (contextA) with the
// user prompt (contextB).
func NewSourceRelevance(oracle ports.Oracle, opts ...Option) (*Judge, error) {
	return NewForKind(domain.JudgeSourceRelevance, oracle, Settings{}, opts...)
}
