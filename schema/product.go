package schema

import (
	"strings"

	"github.com/fluxori-systems/go-docstore-repository/repository"
)

// ProductCollection holds one document per (marketplace, product) pair.
const ProductCollection = "marketplace_products"

// maxDocIDLen caps generated document ids at the store's id length limit.
const maxDocIDLen = 1500

// Product is a marketplace product listing.
type Product struct {
	repository.Metadata

	SKU         string   `json:"sku"`
	Marketplace string   `json:"marketplace"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	CategoryIDs []string `json:"categoryIds,omitempty"`

	Price        float64 `json:"price"`
	ListPrice    float64 `json:"listPrice,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	InStock      bool    `json:"inStock"`
	URL          string  `json:"url,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	Rating       float64 `json:"rating,omitempty"`
	ReviewCount  int     `json:"reviewCount,omitempty"`
	UpdateCount  int     `json:"updateCount,omitempty"`
}

// ProductConfig returns the repository configuration for the product
// collection.
func ProductConfig() repository.Config {
	cfg := repository.DefaultConfig(ProductCollection)
	cfg.RequiredFields = []string{"sku", "marketplace", "title"}
	return cfg
}

// ProductHandlers returns the model handlers for Product repositories.
func ProductHandlers() repository.ModelHandlers[*Product] {
	return repository.ModelHandlers[*Product]{
		NewRecord: func() *Product { return &Product{} },
	}
}

// ProductDocID derives the deterministic document id for a marketplace
// product, so repeated syncs of the same listing update one document.
func ProductDocID(marketplace, sku string) string {
	return sanitizeDocID(marketplace + "_" + sku)
}

// sanitizeDocID strips characters the store rejects in document ids and caps
// the length.
func sanitizeDocID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) > maxDocIDLen {
		id = id[:maxDocIDLen]
	}
	return id
}
