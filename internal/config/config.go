package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (HRAGD_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: HRAGD_PROVIDER -> provider,
	// HRAGD_SERVER.PORT -> server.port, etc.
	if err := k.Load(env.Provider("HRAGD_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "HRAGD_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of openai, ollama", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.EmbeddingProvider != "" && !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q", c.EmbeddingProvider)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	w := c.Fusion
	if w.GraphWeight < 0 || w.VectorWeight < 0 || w.LiveWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative")
	}
	if w.GraphWeight+w.VectorWeight+w.LiveWeight == 0 {
		return fmt.Errorf("fusion weights must not all be zero")
	}
	if w.MaxResults <= 0 {
		return fmt.Errorf("fusion max_results must be positive")
	}

	g := c.Gardener
	if g.AutoMergeThreshold < g.ReviewThreshold {
		return fmt.Errorf("gardener auto_merge_threshold must be >= review_threshold")
	}
	if g.AutoMergeThreshold > 1 || g.ReviewThreshold < 0 {
		return fmt.Errorf("gardener thresholds must lie in [0,1]")
	}

	if c.Conversation.MaxClarifyRounds < 0 {
		return fmt.Errorf("conversation max_clarify_rounds must be non-negative")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
