package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// defaultModels suggests a model per provider in the wizard.
var defaultModels = map[ProviderType]string{
	ProviderOpenAI:    "gpt-4o",
	ProviderAnthropic: "claude-sonnet-4-5-20250929",
	ProviderOllama:    "llama3",
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .optiq.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to optiq! Let's configure your service.")
	fmt.Println()

	cfg := DefaultConfig()
	cfg.Regions = nil

	for {
		region, err := promptRegion(len(cfg.Regions))
		if err != nil {
			return nil, err
		}
		cfg.Regions = append(cfg.Regions, region)

		more := promptui.Prompt{
			Label:     "Add another region",
			IsConfirm: true,
		}
		if _, err := more.Run(); err != nil {
			break
		}
	}

	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a port number")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	dataDirPrompt := promptui.Prompt{
		Label:   "Data directory (empty disables persistence)",
		Default: cfg.DataDir,
	}
	dataDir, err := dataDirPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(DefaultConfigFile); err != nil {
		return nil, err
	}

	fmt.Println()
	fmt.Printf("Configuration written to %s\n", DefaultConfigFile)
	for _, r := range cfg.Regions {
		if envVar := APIKeyEnvVar(r.Provider); envVar != "" {
			fmt.Printf("Remember to set %s for region %s.\n", envVar, r.ID)
		}
	}
	return cfg, nil
}

func promptRegion(index int) (RegionConfig, error) {
	providerPrompt := promptui.Select{
		Label: "Select inference provider",
		Items: []string{"openai", "anthropic", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return RegionConfig{}, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	idPrompt := promptui.Prompt{
		Label:   "Region id",
		Default: fmt.Sprintf("region-%d", index+1),
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("region id is required")
			}
			return nil
		},
	}
	id, err := idPrompt.Run()
	if err != nil {
		return RegionConfig{}, fmt.Errorf("region id: %w", err)
	}

	modelPrompt := promptui.Prompt{
		Label:   "Model",
		Default: defaultModels[provider],
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return RegionConfig{}, fmt.Errorf("model: %w", err)
	}

	return RegionConfig{
		ID:           id,
		Provider:     provider,
		Model:        model,
		Capabilities: []string{"reasoning"},
	}, nil
}
