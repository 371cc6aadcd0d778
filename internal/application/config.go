package application

import (
	"time"

	"github.com/ahrav/gavel-rewards/internal/domain"
)

// Config is the complete, file-based configuration of the reward pipeline
// and the primary entry point for wiring it.
type Config struct {
	// Version is the configuration schema version (X.Y.Z).
	Version string `yaml:"version" validate:"required,semver"`
	// Oracle selects and hardens the LLM that backs every judge.
	Oracle OracleConfig `yaml:"oracle" validate:"required"`
	// Scraper selects the scraping service and the batch fetch policy.
	Scraper ScraperConfig `yaml:"scraper" validate:"required"`
	// Judges lists the criteria every participant is scored on. Each kind
	// may appear at most once.
	Judges []JudgeConfig `yaml:"judges" validate:"required,min=1,max=3,dive"`
	// Round bounds per-round concurrency and sampling.
	Round RoundConfig `yaml:"round"`
	// Log configures the process logger.
	Log LogConfig `yaml:"log"`
	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
	// Tracing configures OpenTelemetry span export.
	Tracing TracingConfig `yaml:"tracing"`
}

// OracleConfig defines the LLM client and its middleware chain.
type OracleConfig struct {
	// Model is "provider/model" or "provider/model@version", for example
	// "openai/gpt-4o-mini".
	Model string `yaml:"model" validate:"required,modelformat"`
	// BaseURL overrides the provider endpoint, mainly for compatible
	// gateways and tests.
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	// APIKeyEnv names the environment variable holding the API key. It
	// defaults to the provider's conventional variable.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	// Timeout bounds a single oracle call.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
	// MaxRetries is the number of retries after the first call.
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`
	// RetryBaseDelay and RetryMaxDelay shape the exponential backoff.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" validate:"min=0"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" validate:"min=0"`
	// RequestsPerSecond limits the call rate; zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	// Burst is the rate limiter bucket size.
	Burst int `yaml:"burst" validate:"min=0"`
	// CircuitBreaker stops calling an unhealthy provider for a while.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	// Budget caps the oracle spend of one command run.
	Budget BudgetConfig `yaml:"budget"`
}

// BudgetConfig limits oracle usage. Zero fields are unlimited. Once a limit
// is reached every further judge call scores zero.
type BudgetConfig struct {
	MaxTokens int64 `yaml:"max_tokens" validate:"min=0"`
	MaxCalls  int64 `yaml:"max_calls" validate:"min=0"`
}

// CircuitBreakerConfig configures the oracle circuit breaker. A zero
// threshold disables it.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" validate:"min=0,max=1000"`
	Cooldown         time.Duration `yaml:"cooldown" validate:"min=0"`
}

// Scraper backends.
const (
	ScraperActor  = "actor"
	ScraperDirect = "direct"
)

// ScraperConfig defines the scraping service and how URLs are batched and
// retried through it.
type ScraperConfig struct {
	// Kind is "actor" for the hosted scraping actor or "direct" for
	// in-process HTTP fetching.
	Kind string `yaml:"kind" validate:"required,oneof=actor direct"`
	// Endpoint is the actor service base URL. Required for "actor".
	Endpoint string `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	// Actor is the actor identifier on the service.
	Actor string `yaml:"actor,omitempty" validate:"required_if=Kind actor"`
	// TokenEnv names the environment variable holding the service token.
	TokenEnv string `yaml:"token_env,omitempty"`
	// GroupSize is the maximum number of URLs per scraper call.
	GroupSize int `yaml:"group_size" validate:"min=1,max=1000"`
	// MaxAttempts bounds how many times unresolved URLs are retried.
	MaxAttempts int `yaml:"max_attempts" validate:"min=1,max=20"`
	// RetryDelay and MaxRetryDelay shape the backoff between attempts.
	RetryDelay    time.Duration `yaml:"retry_delay" validate:"min=0"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" validate:"min=0"`
	// Timeout bounds a single scraper call.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
	// RequestsPerSecond limits scraper calls; zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	// Concurrency bounds in-flight page fetches within one call for the
	// direct scraper and is forwarded to the actor otherwise.
	Concurrency int `yaml:"concurrency" validate:"min=0,max=256"`
	// UserAgent is sent by the direct scraper.
	UserAgent string `yaml:"user_agent,omitempty"`
}

// JudgeConfig defines one judge and the sampling policy applied to it.
type JudgeConfig struct {
	// Kind is the judgment criterion.
	Kind domain.JudgeKind `yaml:"kind" validate:"required,judgekind"`
	// Model overrides the oracle model name for this judge.
	Model string `yaml:"model,omitempty" validate:"omitempty,min=1"`
	// Temperature overrides the judge's default sampling temperature.
	Temperature *float64 `yaml:"temperature,omitempty" validate:"omitempty,min=0,max=1"`
	// MaxTokens bounds the oracle answer.
	MaxTokens int `yaml:"max_tokens,omitempty" validate:"omitempty,min=1,max=4096"`
	// Sections is how many sections are sampled per participant.
	Sections int `yaml:"sections" validate:"min=1,max=100"`
	// Links is how many links are sampled per sampled section.
	Links int `yaml:"links" validate:"min=1,max=100"`
	// IncludeSubsections adds direct subsections to the candidates. It
	// defaults to true for link-level kinds.
	IncludeSubsections *bool `yaml:"include_subsections,omitempty"`
	// Weight of the judge in the participant reward.
	Weight float64 `yaml:"weight" validate:"gt=0,max=100"`
	// Pooling combines unit scores: mean, median or max.
	Pooling string `yaml:"pooling" validate:"oneof=mean median max"`
	// MaxConcurrency bounds in-flight oracle calls per participant.
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=1,max=64"`
}

// Flatten reports whether direct subsections are sampling candidates.
func (j JudgeConfig) Flatten() bool {
	if j.IncludeSubsections != nil {
		return *j.IncludeSubsections
	}
	return j.Kind.UsesLinks()
}

// RoundConfig bounds the work of one round.
type RoundConfig struct {
	// ParticipantConcurrency bounds how many participants are scored at once.
	ParticipantConcurrency int `yaml:"participant_concurrency" validate:"min=1,max=1024"`
	// Seed makes sampling reproducible when set.
	Seed *uint64 `yaml:"seed,omitempty"`
	// Timeout bounds a whole round; zero means no bound.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	// Addr is the listen address of /metrics; empty disables the endpoint.
	Addr string `yaml:"addr,omitempty"`
	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" validate:"required,min=1,max=64"`
}

// TracingConfig configures OpenTelemetry span export. Spans are created
// either way; a disabled config drops them.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Exporter is "otlp" (HTTP) or "zipkin".
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp zipkin"`
	// Endpoint is host:port for otlp and a URL for zipkin. Empty selects
	// the exporter's local default.
	Endpoint string `yaml:"endpoint,omitempty"`
	// SampleRate is the fraction of rounds traced.
	SampleRate  float64 `yaml:"sample_rate" validate:"min=0,max=1"`
	ServiceName string  `yaml:"service_name,omitempty"`
}

// Configuration defaults applied by ApplyDefaults.
const (
	DefaultOracleTimeout    = 60 * time.Second
	DefaultOracleRetries    = 2
	DefaultRetryBaseDelay   = 500 * time.Millisecond
	DefaultRetryMaxDelay    = 10 * time.Second
	DefaultScraperGroupSize = 10
	DefaultScraperTimeout   = 120 * time.Second
	DefaultMetricsNamespace = "gavel_rewards"
	DefaultServiceName      = "gavel-rewards"
)

// ApplyDefaults fills every unset field with its default. It is called by
// the loader before validation.
func (c *Config) ApplyDefaults() {
	if c.Oracle.Timeout == 0 {
		c.Oracle.Timeout = DefaultOracleTimeout
	}
	if c.Oracle.MaxRetries == 0 {
		c.Oracle.MaxRetries = DefaultOracleRetries
	}
	if c.Oracle.RetryBaseDelay == 0 {
		c.Oracle.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.Oracle.RetryMaxDelay == 0 {
		c.Oracle.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if c.Oracle.RequestsPerSecond > 0 && c.Oracle.Burst == 0 {
		c.Oracle.Burst = 1
	}
	if c.Oracle.CircuitBreaker.FailureThreshold > 0 && c.Oracle.CircuitBreaker.Cooldown == 0 {
		c.Oracle.CircuitBreaker.Cooldown = 30 * time.Second
	}

	if c.Scraper.GroupSize == 0 {
		c.Scraper.GroupSize = DefaultScraperGroupSize
	}
	if c.Scraper.MaxAttempts == 0 {
		c.Scraper.MaxAttempts = DefaultMaxAttempts
	}
	if c.Scraper.Timeout == 0 {
		c.Scraper.Timeout = DefaultScraperTimeout
	}

	for i := range c.Judges {
		j := &c.Judges[i]
		if j.Sections == 0 {
			j.Sections = DefaultSectionsPerJudge
		}
		if j.Links == 0 {
			j.Links = DefaultLinksPerSection
		}
		if j.Weight == 0 {
			j.Weight = 1
		}
		if j.Pooling == "" {
			j.Pooling = string(domain.PoolMean)
		}
		if j.MaxConcurrency == 0 {
			j.MaxConcurrency = DefaultJudgeConcurrency
		}
	}

	if c.Round.ParticipantConcurrency == 0 {
		c.Round.ParticipantConcurrency = DefaultParticipantConcurrency
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
	if c.Tracing.Enabled {
		if c.Tracing.Exporter == "" {
			c.Tracing.Exporter = "otlp"
		}
		if c.Tracing.SampleRate == 0 {
			c.Tracing.SampleRate = 1
		}
		if c.Tracing.ServiceName == "" {
			c.Tracing.ServiceName = DefaultServiceName
		}
	}
}
