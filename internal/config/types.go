package config

import "time"

// ProviderType identifies an inference provider.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// RegionConfig describes one inference region the dispatcher may route to.
type RegionConfig struct {
	ID           string       `yaml:"id" koanf:"id"`
	Provider     ProviderType `yaml:"provider" koanf:"provider"`
	Model        string       `yaml:"model" koanf:"model"`
	BaseURL      string       `yaml:"base_url,omitempty" koanf:"base_url"`
	Capabilities []string     `yaml:"capabilities" koanf:"capabilities"`
	RPM          int          `yaml:"rpm,omitempty" koanf:"rpm"`
}

// Config is the top-level configuration, corresponding to .optiq.yml.
type Config struct {
	Regions []RegionConfig `yaml:"regions" koanf:"regions"`

	Capability         string  `yaml:"capability" koanf:"capability"`
	MaxRetries         int     `yaml:"max_retries" koanf:"max_retries"`
	ReadinessThreshold float64 `yaml:"readiness_threshold" koanf:"readiness_threshold"`
	Temperature        float64 `yaml:"temperature" koanf:"temperature"`

	CacheTTL         time.Duration `yaml:"cache_ttl" koanf:"cache_ttl"`
	InferenceTimeout time.Duration `yaml:"inference_timeout" koanf:"inference_timeout"`
	SolveTimeout     time.Duration `yaml:"solve_timeout" koanf:"solve_timeout"`
	RegionCooldown   time.Duration `yaml:"region_cooldown" koanf:"region_cooldown"`

	Port int `yaml:"port" koanf:"port"`
	// DataDir holds the SQLite database. Empty disables persistence.
	DataDir string `yaml:"data_dir" koanf:"data_dir"`
}
