package schema

import (
	"github.com/fluxori-systems/go-docstore-repository/repository"
)

// AIModelConfigCollection stores the model configurations insights are
// generated with.
const AIModelConfigCollection = "ai_model_configs"

// AIModelConfig describes one invokable model and its cost profile.
type AIModelConfig struct {
	repository.Metadata

	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	ModelID     string  `json:"modelId"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`

	// CreditsPerCall is charged against the tenant's credit balance per
	// invocation.
	CreditsPerCall int  `json:"creditsPerCall,omitempty"`
	Enabled        bool `json:"enabled"`
}

// AIModelConfigConfig returns the repository configuration for model
// configurations. The collection is tiny and hot, so a long cache TTL pays
// off.
func AIModelConfigConfig() repository.Config {
	cfg := repository.DefaultConfig(AIModelConfigCollection)
	cfg.RequiredFields = []string{"name", "provider", "modelId"}
	cfg.CacheCapacity = 100
	return cfg
}

// AIModelConfigHandlers returns the model handlers for AIModelConfig
// repositories.
func AIModelConfigHandlers() repository.ModelHandlers[*AIModelConfig] {
	return repository.ModelHandlers[*AIModelConfig]{
		NewRecord: func() *AIModelConfig { return &AIModelConfig{} },
	}
}
