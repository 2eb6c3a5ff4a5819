package config

import "time"

// DefaultConfigFile is the conventional config file name.
const DefaultConfigFile = ".optiq.yml"

// DefaultConfig returns a Config with sensible defaults: one local region
// and the documented pipeline policy.
func DefaultConfig() *Config {
	return &Config{
		Regions: []RegionConfig{
			{
				ID:           "primary",
				Provider:     ProviderOpenAI,
				Model:        "gpt-4o",
				Capabilities: []string{"reasoning"},
			},
		},
		Capability:         "reasoning",
		MaxRetries:         2,
		ReadinessThreshold: 0.5,
		Temperature:        0.1,
		CacheTTL:           time.Hour,
		InferenceTimeout:   30 * time.Second,
		SolveTimeout:       120 * time.Second,
		RegionCooldown:     30 * time.Second,
		Port:               8799,
		DataDir:            ".optiq",
	}
}
