// Package judges implements the relevance judges that delegate a single
// judgment to the oracle: a fixed instruction plus a prompt template
// rendered from two context blobs, followed by lossy score extraction.
package judges

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/gavel-rewards/internal/domain"
	"github.com/ahrav/gavel-rewards/internal/ports"
)

// ErrorText is the raw judge text reported when the oracle could not be
// consulted.
const ErrorText = "Error"

// Default configuration values.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 256
)

var _ ports.Judge = (*Judge)(nil)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// Config defines one judge: its criterion, the fixed instruction sent as
// the system message and the template the two contexts are rendered into.
type Config struct {
	// Kind is the judgment criterion.
	Kind domain.JudgeKind `yaml:"kind" validate:"required,oneof=section_relevance description_accuracy source_relevance"`

	// Instruction is the fixed system instruction.
	Instruction string `yaml:"instruction" validate:"required,min=20"`

	// PromptTemplate is a text/template rendered with the variant's named
	// fields, for example {{.Section}} and {{.Prompt}}.
	PromptTemplate string `yaml:"prompt_template" validate:"required,min=20"`

	// Model overrides the oracle's default model when set.
	Model string `yaml:"model" validate:"omitempty,min=1"`

	// Temperature is the fixed sampling temperature of every call.
	Temperature float64 `yaml:"temperature" validate:"min=0,max=1"`

	// MaxTokens bounds the oracle's answer.
	MaxTokens int `yaml:"max_tokens" validate:"omitempty,min=1,max=4096"`

	// ContentLimit bounds how many runes of page content reach the prompt.
	ContentLimit int `yaml:"content_limit" validate:"omitempty,min=100"`
}

// Option customizes a Judge.
type Option func(*Judge)

// WithLogger sets the logger used for oracle failures.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Judge) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// WithMetrics records per-call latency and scores.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(j *Judge) {
		if metrics != nil {
			j.metrics = metrics
		}
	}
}

// Judge scores one pair of contexts through the oracle. It is stateless
// and safe for concurrent use.
type Judge struct {
	config  Config
	oracle  ports.Oracle
	tmpl    *template.Template
	bind    func(a, b string, limit int) any
	logger  *slog.Logger
	metrics ports.MetricsCollector
}

// New creates a judge from config. The prompt template is compiled once
// with GetTemplateFuncMap and must reference the named fields of the
// variant selected by config.Kind.
func New(oracle ports.Oracle, config Config, opts ...Option) (*Judge, error) {
	if oracle == nil {
		return nil, fmt.Errorf("oracle cannot be nil")
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	bind, ok := binders[config.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownJudgeKind, config.Kind)
	}

	tmpl, err := template.New(string(config.Kind)).
		Funcs(GetTemplateFuncMap()).
		Option("missingkey=error").
		Parse(config.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	if config.ContentLimit == 0 {
		config.ContentLimit = DefaultContentLimit
	}

	j := &Judge{
		config:  config,
		oracle:  oracle,
		tmpl:    tmpl,
		bind:    bind,
		logger:  slog.Default(),
		metrics: ports.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(j)
	}

	// Render once with placeholders so template errors surface here
	// rather than as zero scores later.
	if _, err := j.render("a", "b"); err != nil {
		return nil, err
	}

	return j, nil
}

// Kind returns the criterion this judge applies.
func (j *Judge) Kind() domain.JudgeKind { return j.config.Kind }

// Config returns a copy of the judge configuration.
func (j *Judge) Config() Config { return j.config }

// Score renders the prompt, consults the oracle and extracts the score.
// Every oracle failure, including a panic inside the oracle client,
// degrades to (0, ErrorText).
func (j *Judge) Score(ctx context.Context, contextA, contextB string) (score domain.Score, raw string) {
	start := time.Now()
	labels := map[string]string{"kind": string(j.config.Kind), "status": "success"}

	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("judge oracle call panicked", "kind", j.config.Kind, "panic", r)
			score, raw = 0, ErrorText
			labels["status"] = "panic"
		}
		j.metrics.RecordLatency("judge_score", time.Since(start), labels)
		j.metrics.RecordCounter("judge_calls_total", 1, labels)
		j.metrics.RecordHistogram("judge_score", float64(score), labels)
	}()

	prompt, err := j.render(contextA, contextB)
	if err != nil {
		j.logger.Error("judge prompt rendering failed", "kind", j.config.Kind, "error", err)
		labels["status"] = "render_error"
		return 0, ErrorText
	}

	text, err := j.oracle.Complete(ctx, ports.OracleRequest{
		Instruction: j.config.Instruction,
		Prompt:      prompt,
		Temperature: j.config.Temperature,
		Model:       j.config.Model,
		MaxTokens:   j.config.MaxTokens,
	})
	if err != nil {
		j.logger.Warn("judge oracle call failed", "kind", j.config.Kind, "model", j.oracle.Model(), "error", err)
		labels["status"] = "error"
		return 0, ErrorText
	}
	if strings.TrimSpace(text) == "" {
		j.logger.Warn("judge oracle returned empty text", "kind", j.config.Kind)
		labels["status"] = "empty"
		return 0, ErrorText
	}

	return ExtractScore(text), text
}

func (j *Judge) render(a, b string) (string, error) {
	var buf bytes.Buffer
	if err := j.tmpl.Execute(&buf, j.bind(a, b, j.config.ContentLimit)); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
