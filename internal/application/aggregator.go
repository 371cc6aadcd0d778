// Package application implements the reward pipeline: batch fetching with
// retries, the per-round content cache, sampling and reward aggregation,
// together with the configuration that wires them.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gavel-rewards/internal/domain"
	"github.com/ahrav/gavel-rewards/internal/ports"
)

const tracerName = "github.com/ahrav/gavel-rewards/internal/application"

// Default sampling and concurrency bounds.
const (
	DefaultSectionsPerJudge       = 3
	DefaultLinksPerSection        = 2
	DefaultJudgeConcurrency       = 4
	DefaultParticipantConcurrency = 8
)

// JudgeBinding attaches sampling and weighting policy to a judge. Zero
// sample sizes and weight take the package defaults.
type JudgeBinding struct {
	Judge ports.Judge
	// Sections is how many candidate sections are sampled per participant.
	Sections int
	// Links is how many links are sampled per sampled section. Ignored by
	// section-level kinds.
	Links int
	// Flatten adds direct subsections to the candidate sections.
	Flatten bool
	// Weight of this judge in the participant reward.
	Weight float64
	// Pooling combines the judge's unit scores. Empty means mean.
	Pooling domain.Pooling
	// MaxConcurrency bounds in-flight oracle calls for one participant.
	MaxConcurrency int
}

// DefaultBinding returns the sampling policy used for kind when nothing is
// configured: section relevance samples top-level sections only, link-level
// kinds also consider direct subsections.
func DefaultBinding(judge ports.Judge) JudgeBinding {
	return JudgeBinding{
		Judge:          judge,
		Sections:       DefaultSectionsPerJudge,
		Links:          DefaultLinksPerSection,
		Flatten:        judge.Kind().UsesLinks(),
		Weight:         1,
		Pooling:        domain.PoolMean,
		MaxConcurrency: DefaultJudgeConcurrency,
	}
}

// AggregatorOption customizes a RewardAggregator.
type AggregatorOption func(*RewardAggregator)

// WithSampler sets the sampling source. Rounds are reproducible when the
// sampler is seeded.
func WithSampler(s *Sampler) AggregatorOption {
	return func(a *RewardAggregator) {
		if s != nil {
			a.sampler = s
		}
	}
}

// WithFetchPolicy sets the scraper group size and attempt bound used to
// fill each round's content cache.
func WithFetchPolicy(groupSize, maxAttempts int) AggregatorOption {
	return func(a *RewardAggregator) {
		a.groupSize = groupSize
		a.maxAttempts = maxAttempts
	}
}

// WithParticipantConcurrency bounds how many participants are scored at once.
func WithParticipantConcurrency(n int) AggregatorOption {
	return func(a *RewardAggregator) {
		if n > 0 {
			a.participantConcurrency = n
		}
	}
}

// WithAggregatorLogger sets the round logger.
func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *RewardAggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAggregatorMetrics records round and reward metrics.
func WithAggregatorMetrics(metrics ports.MetricsCollector) AggregatorOption {
	return func(a *RewardAggregator) {
		if metrics != nil {
			a.metrics = metrics
		}
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) AggregatorOption {
	return func(a *RewardAggregator) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// RewardAggregator turns a round of participant reports into one reward in
// [0,1] per participant. It is safe to evaluate several rounds concurrently.
type RewardAggregator struct {
	fetcher                URLFetcher
	judges                 []JudgeBinding
	sampler                *Sampler
	groupSize              int
	maxAttempts            int
	participantConcurrency int
	logger                 *slog.Logger
	metrics                ports.MetricsCollector
	tracer                 trace.Tracer
}

// NewRewardAggregator creates an aggregator that fetches through fetcher
// and scores with judges.
func NewRewardAggregator(fetcher URLFetcher, judges []JudgeBinding, opts ...AggregatorOption) (*RewardAggregator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if len(judges) == 0 {
		return nil, domain.ErrNoJudges
	}

	verr := domain.NewValidationError("reward aggregator")
	bindings := make([]JudgeBinding, len(judges))
	for i, b := range judges {
		if b.Judge == nil {
			verr.AddErrorf("judge %d: judge cannot be nil", i)
			continue
		}
		if !b.Judge.Kind().Valid() {
			verr.AddErrorf("judge %d: %v: %s", i, domain.ErrUnknownJudgeKind, b.Judge.Kind())
		}
		if b.Weight < 0 {
			verr.AddErrorf("judge %d: weight must not be negative, got %v", i, b.Weight)
		}
		if b.Sections < 0 || b.Links < 0 {
			verr.AddErrorf("judge %d: sample sizes must not be negative", i)
		}
		if b.Sections == 0 {
			b.Sections = DefaultSectionsPerJudge
		}
		if b.Links == 0 {
			b.Links = DefaultLinksPerSection
		}
		if b.Weight == 0 {
			b.Weight = 1
		}
		if b.Pooling == "" {
			b.Pooling = domain.PoolMean
		}
		if b.MaxConcurrency <= 0 {
			b.MaxConcurrency = DefaultJudgeConcurrency
		}
		bindings[i] = b
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	a := &RewardAggregator{
		fetcher:                fetcher,
		judges:                 bindings,
		sampler:                NewSamplerFrom(nil),
		maxAttempts:            DefaultMaxAttempts,
		participantConcurrency: DefaultParticipantConcurrency,
		logger:                 slog.Default(),
		metrics:                ports.NoopMetrics{},
		tracer:                 otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// plan is the set of units sampled for one participant, indexed like
// RewardAggregator.judges.
type plan [][]domain.EvaluationUnit

// Evaluate scores every participant of round and returns one event per
// participant, in input order. It never fails: a participant whose scoring
// fails gets 0 while the others are unaffected, and a failure of the whole
// round yields 0 for everyone.
func (a *RewardAggregator) Evaluate(ctx context.Context, round domain.Round) (events []domain.RewardEvent) {
	roundID := round.ID
	if roundID == "" {
		roundID = uuid.NewString()
	}
	logger := a.logger.With("round_id", roundID)
	start := time.Now()

	ctx, span := a.tracer.Start(ctx, "RewardAggregator.Evaluate", trace.WithAttributes(
		attribute.String("round.id", roundID),
		attribute.Int("round.participants", len(round.Participants)),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("reward round panicked", "panic", r)
			span.SetStatus(codes.Error, fmt.Sprint(r))
			a.metrics.RecordCounter("round_failures_total", 1, map[string]string{"reason": "panic"})
			events = domain.ZeroRewards(round.Participants)
		}
		a.metrics.RecordLatency("reward_round", time.Since(start), nil)
	}()

	if len(round.Participants) == 0 {
		return []domain.RewardEvent{}
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("reward round cancelled before planning", "error", err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ZeroRewards(round.Participants)
	}

	// Pre-sample every participant, then fetch only the sampled links.
	plans := make([]plan, len(round.Participants))
	var urls []string
	for i, p := range round.Participants {
		plans[i] = a.planParticipant(p.Report)
		for _, units := range plans[i] {
			for _, u := range units {
				if u.URL != "" {
					urls = append(urls, u.URL)
				}
			}
		}
	}

	cache := NewContentCache(ctx, a.fetcher, urls, a.groupSize, a.maxAttempts)
	span.AddEvent("content_cache_filled", trace.WithAttributes(
		attribute.Int("cache.resolved", cache.Len()),
		attribute.Int("cache.unresolved", len(cache.Unresolved())),
		attribute.Int("cache.attempts", cache.Attempts()),
	))
	a.metrics.RecordGauge("content_cache_urls", float64(cache.Len()), nil)
	logger.Info("content cache filled",
		"resolved", cache.Len(),
		"unresolved", len(cache.Unresolved()),
		"attempts", cache.Attempts())

	tasks := make([]Task[domain.Score], len(round.Participants))
	for i, p := range round.Participants {
		tasks[i] = func(ctx context.Context) (domain.Score, error) {
			return a.scoreParticipant(ctx, round.Prompt, p.ParticipantID, plans[i], cache)
		}
	}
	results := RunAll(ctx, a.participantConcurrency, tasks)

	// Participants that finished before a deadline keep their rewards.
	if err := ctx.Err(); err != nil {
		logger.Warn("reward round deadline reached while scoring", "error", err)
		span.AddEvent("scoring_interrupted", trace.WithAttributes(attribute.String("error", err.Error())))
	}

	events = make([]domain.RewardEvent, len(round.Participants))
	for i, p := range round.Participants {
		reward := 0.0
		if res := results[i]; res.OK() {
			reward = res.Value.Clamp().Float64()
		} else {
			err := participantFailure(p.ParticipantID, res.Err)
			logger.Error("participant scoring failed", "participant_id", p.ParticipantID, "error", err)
			a.metrics.RecordCounter("participant_failures_total", 1, nil)
		}
		events[i] = domain.RewardEvent{ParticipantID: p.ParticipantID, Reward: reward}
		a.metrics.RecordHistogram("participant_reward", reward, nil)
	}

	zero, nonZero := domain.PartitionByReward(events)
	logger.Info("reward round finished",
		"participants", len(events),
		"zero_reward_ids", zero,
		"nonzero_reward_ids", nonZero,
		"duration", time.Since(start))
	span.SetAttributes(
		attribute.Int("round.zero_rewards", len(zero)),
		attribute.Int("round.nonzero_rewards", len(nonZero)),
	)
	span.SetStatus(codes.Ok, "")

	return events
}

// planParticipant samples the units every judge will score for report.
func (a *RewardAggregator) planParticipant(report domain.Report) plan {
	p := make(plan, len(a.judges))
	for j, b := range a.judges {
		p[j] = a.planJudge(report, b)
	}
	return p
}

func (a *RewardAggregator) planJudge(report domain.Report, b JudgeBinding) []domain.EvaluationUnit {
	kind := b.Judge.Kind()
	cands := a.sampler.Candidates(report, b.Flatten)

	switch kind {
	case domain.JudgeSectionRelevance:
		var units []domain.EvaluationUnit
		for _, s := range a.sampler.Sections(cands, b.Sections) {
			units = append(units, domain.EvaluationUnit{Kind: kind, Section: s})
		}
		return units

	case domain.JudgeDescriptionAccuracy:
		// Sections without links have nothing to verify against.
		linked := make([]domain.Section, 0, len(cands))
		for _, s := range cands {
			if s.HasLinks() {
				linked = append(linked, s)
			}
		}
		var units []domain.EvaluationUnit
		for _, s := range a.sampler.Sections(linked, b.Sections) {
			for _, u := range a.sampler.Links(s, b.Links) {
				units = append(units, domain.EvaluationUnit{Kind: kind, Section: s, URL: u})
			}
		}
		return units

	case domain.JudgeSourceRelevance:
		var units []domain.EvaluationUnit
		for _, s := range a.sampler.Sections(cands, b.Sections) {
			links := a.sampler.Links(s, b.Links)
			if len(links) == 0 {
				units = append(units, domain.EvaluationUnit{Kind: kind, Section: s, Trivial: true})
				continue
			}
			for _, u := range links {
				units = append(units, domain.EvaluationUnit{Kind: kind, Section: s, URL: u})
			}
		}
		return units
	}

	return nil
}

// scoreParticipant scores the planned units of one participant and reduces
// them to its reward.
func (a *RewardAggregator) scoreParticipant(
	ctx context.Context,
	prompt string,
	id domain.ParticipantID,
	p plan,
	cache *ContentCache,
) (domain.Score, error) {
	ctx, span := a.tracer.Start(ctx, "RewardAggregator.scoreParticipant",
		trace.WithAttributes(attribute.Int64("participant.id", int64(id))))
	defer span.End()

	judgeScores := make([]domain.Score, len(a.judges))
	weights := make([]float64, len(a.judges))

	for j, b := range a.judges {
		units := p[j]
		weights[j] = b.Weight

		tasks := make([]Task[domain.Score], len(units))
		for k, unit := range units {
			tasks[k] = func(ctx context.Context) (domain.Score, error) {
				return a.scoreUnit(ctx, b.Judge, prompt, unit, cache), nil
			}
		}

		results := RunAll(ctx, b.MaxConcurrency, tasks)
		scores := make([]domain.Score, len(results))
		for k, res := range results {
			if res.OK() {
				scores[k] = res.Value
				continue
			}
			// A unit cut off by the round deadline degrades to 0 like any
			// other timed out call. Anything else abandons the participant.
			if errors.Is(res.Err, context.DeadlineExceeded) || errors.Is(res.Err, context.Canceled) {
				a.logger.Warn("evaluation unit timed out",
					"participant_id", id,
					"unit", units[k].String(),
					"error", res.Err)
				continue
			}
			err := participantFailure(id, res.Err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}

		judgeScores[j] = b.Pooling.Pool(scores)
		a.logger.Debug("judge scored participant",
			"participant_id", id,
			"judge", b.Judge.Kind(),
			"units", len(units),
			"score", judgeScores[j].Float64())
	}

	reward := domain.WeightedMean(judgeScores, weights)
	span.SetAttributes(attribute.Float64("participant.reward", reward.Float64()))
	return reward, nil
}

// participantFailure wraps err as the reason participant id was zeroed.
// Recovered panics are also marked with domain.ErrParticipantPanic.
func participantFailure(id domain.ParticipantID, err error) error {
	var pe *domain.ParticipantError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, ErrTaskPanic) {
		err = fmt.Errorf("%w: %w", domain.ErrParticipantPanic, err)
	}
	return domain.NewParticipantError(id, "score", err)
}

// scoreUnit resolves the contexts of unit and asks the judge. Units whose
// link content could not be fetched score 0 without an oracle call.
func (a *RewardAggregator) scoreUnit(
	ctx context.Context,
	judge ports.Judge,
	prompt string,
	unit domain.EvaluationUnit,
	cache *ContentCache,
) domain.Score {
	if unit.Trivial {
		return 1
	}

	var contextA, contextB string
	switch unit.Kind {
	case domain.JudgeSectionRelevance:
		contextA, contextB = unit.Section.Text(), prompt
	case domain.JudgeDescriptionAccuracy:
		content, ok := cache.Content(unit.URL)
		if !ok {
			return 0
		}
		contextA, contextB = unit.Section.Description, content
	case domain.JudgeSourceRelevance:
		content, ok := cache.Content(unit.URL)
		if !ok {
			return 0
		}
		contextA, contextB = content, prompt
	default:
		return 0
	}

	score, _ := judge.Score(ctx, contextA, contextB)
	a.metrics.RecordHistogram("unit_score", score.Float64(), map[string]string{"kind": string(unit.Kind)})
	return score.Clamp()
}
