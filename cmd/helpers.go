package cmd

import (
	"fmt"
	"os"

	"github.com/optiq-ai/optiq/internal/cache"
	"github.com/optiq-ai/optiq/internal/config"
	"github.com/optiq-ai/optiq/internal/events"
	"github.com/optiq-ai/optiq/internal/llm"
	"github.com/optiq-ai/optiq/internal/pipeline"
	"github.com/optiq-ai/optiq/internal/router"
	"github.com/optiq-ai/optiq/internal/solver"
)

// buildProviders constructs one provider per configured region, applying the
// region's rate limit when set.
func buildProviders(cfg *config.Config) (map[string]llm.Provider, error) {
	providers := make(map[string]llm.Provider, len(cfg.Regions))
	for _, rc := range cfg.Regions {
		p, err := buildProvider(rc)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", rc.ID, err)
		}
		if rc.RPM > 0 {
			p = llm.NewRateLimitedProvider(p, rc.RPM)
		}
		providers[rc.ID] = p
	}
	return providers, nil
}

func buildProvider(rc config.RegionConfig) (llm.Provider, error) {
	if rc.BaseURL == "" {
		return llm.NewProvider(string(rc.Provider), rc.Model)
	}

	// A base URL points the region at a regional gateway.
	switch rc.Provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return llm.NewOpenAIProviderWithBaseURL(apiKey, rc.Model, rc.BaseURL), nil
	case config.ProviderOllama:
		return llm.NewOllamaProvider(rc.BaseURL, rc.Model), nil
	default:
		return nil, fmt.Errorf("provider %s does not support base_url", rc.Provider)
	}
}

func buildRouter(cfg *config.Config) *router.Router {
	regions := make([]router.Region, 0, len(cfg.Regions))
	for _, rc := range cfg.Regions {
		regions = append(regions, router.Region{
			ID:           rc.ID,
			Provider:     string(rc.Provider),
			Model:        rc.Model,
			Capabilities: rc.Capabilities,
			RPM:          rc.RPM,
		})
	}
	opts := router.DefaultOptions()
	if cfg.RegionCooldown > 0 {
		opts.Cooldown = cfg.RegionCooldown
	}
	return router.New(regions, opts)
}

// buildPipeline assembles the full pipeline stack from configuration.
func buildPipeline(cfg *config.Config) (*pipeline.Orchestrator, *router.Router, *cache.Cache, *events.Bus, error) {
	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	rt := buildRouter(cfg)
	c := cache.New(cfg.CacheTTL)
	bus := events.NewBus()
	orch := pipeline.NewOrchestrator(
		pipeline.NewProviderPool(providers), rt, c, solver.DefaultAdapter(), bus,
		pipeline.Options{
			MaxRetries:         cfg.MaxRetries,
			ReadinessThreshold: cfg.ReadinessThreshold,
			Capability:         cfg.Capability,
			InferenceTimeout:   cfg.InferenceTimeout,
			SolveTimeout:       cfg.SolveTimeout,
			Temperature:        cfg.Temperature,
		})
	return orch, rt, c, bus, nil
}
