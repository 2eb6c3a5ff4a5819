package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRetries != 2 || cfg.ReadinessThreshold != 0.5 {
		t.Errorf("defaults not applied: retries=%d threshold=%v", cfg.MaxRetries, cfg.ReadinessThreshold)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("cache ttl = %v, want 1h", cfg.CacheTTL)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".optiq.yml")

	cfg := DefaultConfig()
	cfg.Regions = []RegionConfig{
		{ID: "us-east", Provider: ProviderOpenAI, Model: "gpt-4o", Capabilities: []string{"reasoning"}},
		{ID: "eu-west", Provider: ProviderOllama, Model: "llama3", Capabilities: []string{"reasoning"}, RPM: 60},
	}
	cfg.Port = 9100
	cfg.ReadinessThreshold = 0.7
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(loaded.Regions))
	}
	if loaded.Regions[1].ID != "eu-west" || loaded.Regions[1].RPM != 60 {
		t.Errorf("region roundtrip lost data: %+v", loaded.Regions[1])
	}
	if loaded.Port != 9100 || loaded.ReadinessThreshold != 0.7 {
		t.Errorf("scalar roundtrip lost data: port=%d threshold=%v", loaded.Port, loaded.ReadinessThreshold)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPTIQ_PORT", "9999")
	t.Setenv("OPTIQ_MAX_RETRIES", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("port = %d, want 9999 from env", cfg.Port)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("max_retries = %d, want 5 from env", cfg.MaxRetries)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no regions", func(c *Config) { c.Regions = nil }, "at least one region"},
		{"missing region id", func(c *Config) { c.Regions[0].ID = "" }, "id is required"},
		{"unknown provider", func(c *Config) { c.Regions[0].Provider = "acme" }, "invalid provider"},
		{"missing model", func(c *Config) { c.Regions[0].Model = "" }, "model is required"},
		{"duplicate region", func(c *Config) {
			c.Regions = append(c.Regions, c.Regions[0])
		}, "duplicate region"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max_retries"},
		{"threshold out of range", func(c *Config) { c.ReadinessThreshold = 1.5 }, "readiness_threshold"},
		{"bad port", func(c *Config) { c.Port = 0 }, "port"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
