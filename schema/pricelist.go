package schema

import (
	"time"

	"github.com/fluxori-systems/go-docstore-repository/repository"
)

// PriceListCollection tracks historical price points per product.
const PriceListCollection = "product_prices"

// PricePoint is one observed price for a product at a point in time.
type PricePoint struct {
	Price      float64   `json:"price"`
	ListPrice  float64   `json:"listPrice,omitempty"`
	InStock    bool      `json:"inStock"`
	RecordedAt time.Time `json:"recordedAt"`
}

// PriceList is the price history document for one marketplace product.
type PriceList struct {
	repository.Metadata

	SKU         string       `json:"sku"`
	Marketplace string       `json:"marketplace"`
	Currency    string       `json:"currency"`
	Points      []PricePoint `json:"points,omitempty"`
}

// PriceListConfig returns the repository configuration for price histories.
// Histories are append-heavy and read rarely, so the cache stays off.
func PriceListConfig() repository.Config {
	cfg := repository.DefaultConfig(PriceListCollection)
	cfg.RequiredFields = []string{"sku", "marketplace", "currency"}
	cfg.EnableCache = false
	return cfg
}

// PriceListHandlers returns the model handlers for PriceList repositories.
func PriceListHandlers() repository.ModelHandlers[*PriceList] {
	return repository.ModelHandlers[*PriceList]{
		NewRecord: func() *PriceList { return &PriceList{} },
	}
}
