package application

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/gavel-rewards/internal/domain"
	"github.com/ahrav/gavel-rewards/internal/ports"
)

// ConfigLoader parses, defaults and validates pipeline configuration.
// Identical documents are decoded once and served from a SHA256-keyed cache.
type ConfigLoader struct {
	// validator performs struct tag validation with the custom rules
	// registered by RegisterConfigValidators.
	validator *validator.Validate
	// cache stores validated configs by the hash of their source.
	// WARNING: cached configs are shared and MUST NOT be mutated; Load
	// returns copies.
	cache   map[string]*Config
	cacheMu sync.RWMutex
	// sf collapses concurrent loads of the same document.
	sf singleflight.Group
}

// NewConfigLoader creates a loader with the custom validators registered.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New()
	if err := RegisterConfigValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ConfigLoader{
		validator: v,
		cache:     make(map[string]*Config),
	}, nil
}

// LoadFromFile loads a configuration from a YAML file.
func (cl *ConfigLoader) LoadFromFile(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ports.NewConfigError(cleanPath, ports.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return cl.load(data)
}

// LoadFromReader loads a configuration from r.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return cl.load(data)
}

func (cl *ConfigLoader) load(data []byte) (*Config, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if config, ok := cl.getCached(hash); ok {
			return config, nil
		}

		config, err := cl.parseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		config.ApplyDefaults()

		if err := cl.Validate(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		cl.putCached(hash, config)
		return config, nil
	})
	if err != nil {
		return nil, err
	}

	cp := cloneConfig(v.(*Config))
	return cp, nil
}

// Validate runs struct tag and semantic validation on config.
func (cl *ConfigLoader) Validate(config *Config) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("%w: struct validation failed: %w", domain.ErrInvalidConfiguration, err)
	}
	if err := ValidateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// parseYAML decodes data strictly so misspelled keys are reported instead
// of silently ignored.
func (cl *ConfigLoader) parseYAML(data []byte) (*Config, error) {
	var config Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

func (cl *ConfigLoader) getCached(hash string) (*Config, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	config, ok := cl.cache[hash]
	return config, ok
}

func (cl *ConfigLoader) putCached(hash string, config *Config) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = config
}

// ClearCache drops every cached configuration.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*Config)
}

// cloneConfig copies config deeply enough that callers may mutate the
// result without touching the cache.
func cloneConfig(c *Config) *Config {
	cp := *c
	cp.Judges = make([]JudgeConfig, len(c.Judges))
	for i, j := range c.Judges {
		if j.Temperature != nil {
			t := *j.Temperature
			j.Temperature = &t
		}
		if j.IncludeSubsections != nil {
			b := *j.IncludeSubsections
			j.IncludeSubsections = &b
		}
		cp.Judges[i] = j
	}
	if c.Round.Seed != nil {
		s := *c.Round.Seed
		cp.Round.Seed = &s
	}
	return &cp
}

// LoadRound reads a round from a YAML or JSON file. JSON is accepted as
// the YAML subset it is.
func LoadRound(path string) (domain.Round, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return domain.Round{}, fmt.Errorf("failed to read round file: %w", err)
	}
	return ParseRound(data)
}

// ParseRound decodes a round document and checks participant identifiers
// are unique.
func ParseRound(data []byte) (domain.Round, error) {
	var round domain.Round
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&round); err != nil {
		return domain.Round{}, fmt.Errorf("failed to decode round: %w", err)
	}

	verr := domain.NewValidationError("round")
	if round.Prompt == "" {
		verr.AddError("prompt is required")
	}
	seen := make(map[domain.ParticipantID]struct{}, len(round.Participants))
	for _, p := range round.Participants {
		if _, ok := seen[p.ParticipantID]; ok {
			verr.AddErrorf("duplicate participant_id %d", p.ParticipantID)
		}
		seen[p.ParticipantID] = struct{}{}
	}
	if err := verr.ErrOrNil(); err != nil {
		return domain.Round{}, err
	}
	return round, nil
}
