// Package config loads and validates the service configuration from
// .optiq.yml with OPTIQ_* environment overrides.
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
// environment variable overrides (OPTIQ_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// OPTIQ_MAX_RETRIES -> max_retries, etc.
	if err := k.Load(env.Provider("OPTIQ_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "OPTIQ_"))
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
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
	ProviderOllama:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	seen := make(map[string]bool, len(c.Regions))
	for i, r := range c.Regions {
		if r.ID == "" {
			return fmt.Errorf("regions[%d]: id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("regions[%d]: duplicate region id %q", i, r.ID)
		}
		seen[r.ID] = true
		if !validProviders[r.Provider] {
			return fmt.Errorf("regions[%d]: invalid provider %q: must be one of openai, anthropic, ollama", i, r.Provider)
		}
		if r.Model == "" {
			return fmt.Errorf("regions[%d]: model is required", i)
		}
		if r.RPM < 0 {
			return fmt.Errorf("regions[%d]: rpm must be non-negative", i)
		}
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.ReadinessThreshold < 0 || c.ReadinessThreshold > 1 {
		return fmt.Errorf("readiness_threshold must be within [0,1]")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be within (0,65535]")
	}
	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}
