package application

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/gavel-rewards/internal/domain"
)

// RegisterConfigValidators registers the custom validation functions that
// Config struct tags reference: semver, modelformat and judgekind.
// RegisterConfigValidators returns an error if any registration fails.
func RegisterConfigValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}

	// Register model string validator for provider/model format.
	if err := v.RegisterValidation("modelformat", validateModelFormat); err != nil {
		return fmt.Errorf("failed to register modelformat validator: %w", err)
	}

	if err := v.RegisterValidation("judgekind", validateJudgeKind); err != nil {
		return fmt.Errorf("failed to register judgekind validator: %w", err)
	}

	return nil
}

// ValidateSemantics applies the rules struct tags cannot express: unique
// judge kinds, an endpoint for the actor scraper, usable metrics and
// tracing endpoints and ordered backoff bounds.
func ValidateSemantics(config *Config) error {
	verr := domain.NewValidationError("config")

	seen := make(map[domain.JudgeKind]int, len(config.Judges))
	for i, j := range config.Judges {
		if prev, ok := seen[j.Kind]; ok {
			verr.AddErrorf("judges[%d]: kind %q already configured by judges[%d]", i, j.Kind, prev)
			continue
		}
		seen[j.Kind] = i
	}

	if config.Scraper.Kind == ScraperActor && config.Scraper.Endpoint == "" {
		verr.AddError("scraper.endpoint is required for the actor scraper")
	}
	if d := config.Scraper; d.MaxRetryDelay > 0 && d.MaxRetryDelay < d.RetryDelay {
		verr.AddErrorf("scraper.max_retry_delay %s is shorter than retry_delay %s", d.MaxRetryDelay, d.RetryDelay)
	}
	if o := config.Oracle; o.RetryMaxDelay < o.RetryBaseDelay {
		verr.AddErrorf("oracle.retry_max_delay %s is shorter than retry_base_delay %s", o.RetryMaxDelay, o.RetryBaseDelay)
	}

	if addr := config.Metrics.Addr; addr != "" {
		if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
			verr.AddErrorf("metrics.addr %q is not a host:port address", addr)
		}
	}

	if t := config.Tracing; t.Enabled && t.Exporter == "zipkin" && t.Endpoint != "" {
		if u, err := url.Parse(t.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			verr.AddErrorf("tracing.endpoint %q is not a URL", t.Endpoint)
		}
	}

	return verr.ErrOrNil()
}

// ParseModel splits "provider/model[@version]" into provider and model,
// keeping any version suffix on the model.
func ParseModel(s string) (provider, model string, err error) {
	provider, model, ok := strings.Cut(s, "/")
	if !ok || provider == "" || model == "" {
		return "", "", fmt.Errorf("%w: model %q must be provider/model", domain.ErrInvalidConfiguration, s)
	}
	return strings.ToLower(provider), model, nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

// validateModelFormat validates that a model string matches the required format:
// ^[a-z0-9]+/[A-Za-z0-9\-_\.]+(@[A-Za-z0-9\-_\.]+)?$
func validateModelFormat(fl validator.FieldLevel) bool {
	model := fl.Field().String()
	if model == "" {
		return true
	}

	provider, rest, ok := strings.Cut(model, "/")
	if !ok || provider == "" || rest == "" {
		return false
	}
	for _, ch := range provider {
		if !(ch >= 'a' && ch <= 'z' || ch >= '0' && ch <= '9') {
			return false
		}
	}

	name, version, hasVersion := strings.Cut(rest, "@")
	if !validModelPart(name) {
		return false
	}
	if hasVersion && !validModelPart(version) {
		return false
	}
	return true
}

func validModelPart(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.':
		default:
			return false
		}
	}
	return true
}

func validateJudgeKind(fl validator.FieldLevel) bool {
	return domain.JudgeKind(fl.Field().String()).Valid()
}
