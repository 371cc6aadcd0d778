package application

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gavel-rewards/internal/domain"
	"github.com/ahrav/gavel-rewards/internal/ports"
)

func TestConfigLoader_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rewards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfigYAML), 0o600))

	loader, err := NewConfigLoader()
	require.NoError(t, err)

	config, err := loader.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", config.Version)
	assert.Equal(t, ScraperActor, config.Scraper.Kind)
}

func TestConfigLoader_MissingFile(t *testing.T) {
	loader, err := NewConfigLoader()
	require.NoError(t, err)

	_, err = loader.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrConfigNotFound)
	var cfgErr *ports.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.ConfigKey, "absent.yaml")
}

func TestConfigLoader_CacheReturnsIndependentCopies(t *testing.T) {
	// Given a loader that has already loaded a document
	loader, err := NewConfigLoader()
	require.NoError(t, err)

	first, err := loader.LoadFromReader(strings.NewReader(fullConfigYAML))
	require.NoError(t, err)

	// When the caller mutates the result
	first.Judges[0].Weight = 42
	*first.Round.Seed = 7
	*first.Judges[1].Temperature = 0.9

	// Then a second load of the same document is unaffected
	second, err := loader.LoadFromReader(strings.NewReader(fullConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 2.0, second.Judges[0].Weight)
	assert.Equal(t, uint64(1234), *second.Round.Seed)
	assert.Equal(t, 0.1, *second.Judges[1].Temperature)
	assert.NotSame(t, first, second)
}

func TestConfigLoader_ClearCache(t *testing.T) {
	loader, err := NewConfigLoader()
	require.NoError(t, err)

	_, err = loader.LoadFromReader(strings.NewReader(minimalConfigYAML))
	require.NoError(t, err)
	assert.Len(t, loader.cache, 1)

	loader.ClearCache()
	assert.Empty(t, loader.cache)
}

func TestConfigLoader_ConcurrentLoads(t *testing.T) {
	loader, err := NewConfigLoader()
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := loader.LoadFromReader(strings.NewReader(fullConfigYAML))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, loader.cache, 1)
}

func TestParseRound(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
		verify  func(t *testing.T, round domain.Round)
	}{
		{
			name: "yaml round",
			doc: `
id: r-1
prompt: What limits solid-state batteries?
participants:
  - participant_id: 3
    report:
      - title: Interfaces
        description: Dendrites at the anode interface.
        links: [https://a.example, https://b.example]
        subsections:
          - title: Coatings
            description: Thin oxide layers.
  - participant_id: 9
    report: []
`,
			verify: func(t *testing.T, round domain.Round) {
				assert.Equal(t, "r-1", round.ID)
				require.Len(t, round.Participants, 2)
				assert.Equal(t, domain.ParticipantID(3), round.Participants[0].ParticipantID)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, round.Participants[0].Report.URLs())
				assert.Len(t, round.Participants[0].Report[0].Subsections, 1)
				assert.Empty(t, round.Participants[1].Report)
			},
		},
		{
			name: "json round",
			doc:  `{"prompt": "p", "participants": [{"participant_id": 1, "report": [{"title": "t", "description": "d"}]}]}`,
			verify: func(t *testing.T, round domain.Round) {
				assert.Empty(t, round.ID)
				require.Len(t, round.Participants, 1)
				assert.Equal(t, "t", round.Participants[0].Report[0].Title)
			},
		},
		{
			name:    "duplicate participant",
			doc:     "prompt: p\nparticipants:\n  - participant_id: 1\n  - participant_id: 1\n",
			wantErr: "duplicate participant_id 1",
		},
		{
			name:    "missing prompt",
			doc:     "participants: []\n",
			wantErr: "prompt is required",
		},
		{
			name:    "unknown field",
			doc:     "prompt: p\nscore: 3\n",
			wantErr: "failed to decode round",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			round, err := ParseRound([]byte(tt.doc))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.verify(t, round)
		})
	}
}

func TestParseRound_ValidationErrorIsTyped(t *testing.T) {
	_, err := ParseRound([]byte("participants: []\n"))

	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestLoadRound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"prompt": "p", "participants": []}`), 0o600))

	round, err := LoadRound(path)
	require.NoError(t, err)
	assert.Equal(t, "p", round.Prompt)

	_, err = LoadRound(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

// FuzzConfigLoader_Load feeds arbitrary documents through the loader. It
// must return a config or an error, never panic, and anything it accepts
// must satisfy the semantic rules.
func FuzzConfigLoader_Load(f *testing.F) {
	seeds := []string{
		minimalConfigYAML,
		fullConfigYAML,
		"",
		"version: [",
		"version: \"1.0.0\"\njudges: []\n",
		"judges:\n  - kind: source_relevance\n    weight: -1\n",
		"oracle: {model: a/b}\nscraper: {kind: actor}\n",
		"metrics: {addr: \"::1\"}\n",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	loader, err := NewConfigLoader()
	require.NoError(f, err)

	f.Fuzz(func(t *testing.T, doc string) {
		config, err := loader.LoadFromReader(strings.NewReader(doc))
		if err != nil {
			assert.Nil(t, config)
			return
		}
		require.NotNil(t, config)
		assert.NoError(t, ValidateSemantics(config))
		assert.NotEmpty(t, config.Judges)
	})
}
