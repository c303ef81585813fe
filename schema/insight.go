package schema

import (
	"time"

	"github.com/fluxori-systems/go-docstore-repository/repository"
)

// InsightCollection stores AI-generated commercial insights.
const InsightCollection = "ai_insights"

// Insight is a generated observation about products, pricing, or demand.
type Insight struct {
	repository.Metadata

	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary,omitempty"`
	Confidence float64  `json:"confidence"`
	ProductIDs []string `json:"productIds,omitempty"`

	// GeneratedBy names the model configuration that produced the insight.
	GeneratedBy string     `json:"generatedBy,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Acknowledged bool      `json:"acknowledged"`
}

// InsightConfig returns the repository configuration for insights.
func InsightConfig() repository.Config {
	cfg := repository.DefaultConfig(InsightCollection)
	cfg.RequiredFields = []string{"type", "title"}
	return cfg
}

// InsightHandlers returns the model handlers for Insight repositories.
func InsightHandlers() repository.ModelHandlers[*Insight] {
	return repository.ModelHandlers[*Insight]{
		NewRecord: func() *Insight { return &Insight{} },
	}
}
