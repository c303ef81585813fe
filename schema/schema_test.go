package schema

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fluxori-systems/go-docstore-repository/memstore"
	"github.com/fluxori-systems/go-docstore-repository/pkg/di"
	"github.com/fluxori-systems/go-docstore-repository/pkg/testsupport"
	"github.com/fluxori-systems/go-docstore-repository/repository"
)

func TestProductDocID(t *testing.T) {
	tests := []struct {
		name string
		mkt  string
		sku  string
		want string
	}{
		{"plain", "takealot", "ABC-123", "takealot_ABC-123"},
		{"spaces stripped", "take alot", "A B", "takealot_AB"},
		{"slashes stripped", "amazon", "a/b/c", "amazon_abc"},
		{"unicode stripped", "bol", "skué#1", "bol_sku1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProductDocID(tt.mkt, tt.sku); got != tt.want {
				t.Errorf("ProductDocID = %q, want %q", got, tt.want)
			}
		})
	}

	if a, b := ProductDocID("takealot", "X1"), ProductDocID("takealot", "X1"); a != b {
		t.Fatal("doc id not deterministic")
	}
}

func TestSanitizeDocIDCapsLength(t *testing.T) {
	long := strings.Repeat("a", maxDocIDLen+100)
	if got := sanitizeDocID(long); len(got) != maxDocIDLen {
		t.Fatalf("len = %d, want %d", len(got), maxDocIDLen)
	}
}

func newContainer(t *testing.T) *di.Container {
	t.Helper()
	c, err := di.NewContainer(memstore.New())
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	return c
}

func TestProductLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, err := di.NewRepository(newContainer(t), ProductConfig(), ProductHandlers())
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}

	var product Product
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("product.json"), &product)
	product.ID = ProductDocID(product.Marketplace, product.SKU)

	created, err := repo.Create(ctx, &product, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != "takealot_TAKE-123456" {
		t.Fatalf("id = %q", created.ID)
	}
	if created.Version != 1 || created.Price != 1899.0 || len(created.Categories) != 2 {
		t.Fatalf("created = %+v", created)
	}

	got, err := repo.FindByID(ctx, created.ID, nil)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Title != product.Title || got.Currency != "ZAR" || !got.InStock {
		t.Fatalf("round trip lost fields: %+v", got)
	}
}

func TestProductRequiredFields(t *testing.T) {
	repo, err := di.NewRepository(newContainer(t), ProductConfig(), ProductHandlers())
	if err != nil {
		t.Fatal(err)
	}

	_, err = repo.Create(context.Background(), &Product{SKU: "X"}, nil)
	if !repository.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	var verr *repository.ValidationError
	errors.As(err, &verr)
	if len(verr.Missing) != 2 {
		t.Fatalf("Missing = %v, want marketplace and title", verr.Missing)
	}
}

func TestPriceListConfigDisablesCache(t *testing.T) {
	cfg := PriceListConfig()
	if cfg.EnableCache {
		t.Fatal("price history cache should be off")
	}
	if cfg.CollectionName != PriceListCollection {
		t.Fatalf("collection = %q", cfg.CollectionName)
	}
}

func TestPriceListAppendsPoints(t *testing.T) {
	ctx := context.Background()
	repo, err := di.NewRepository(newContainer(t), PriceListConfig(), PriceListHandlers())
	if err != nil {
		t.Fatal(err)
	}

	created, err := repo.Create(ctx, &PriceList{
		SKU: "TAKE-1", Marketplace: "takealot", Currency: "ZAR",
		Points: []PricePoint{{Price: 100, InStock: true, RecordedAt: time.Now().UTC().Truncate(time.Millisecond)}},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	points := append(created.Points, PricePoint{Price: 90, InStock: true, RecordedAt: time.Now().UTC().Truncate(time.Millisecond)})
	updated, err := repo.Update(ctx, created.ID, map[string]any{"points": points}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.Points) != 2 || updated.Points[1].Price != 90 {
		t.Fatalf("points = %+v", updated.Points)
	}
	if updated.Version != 2 {
		t.Fatalf("version = %d", updated.Version)
	}
}

func TestInsightConfig(t *testing.T) {
	cfg := InsightConfig()
	if cfg.CollectionName != InsightCollection {
		t.Fatalf("collection = %q", cfg.CollectionName)
	}
	if len(cfg.RequiredFields) != 2 {
		t.Fatalf("required = %v", cfg.RequiredFields)
	}
}

func TestInsightQueriesByProduct(t *testing.T) {
	ctx := context.Background()
	repo, err := di.NewRepository(newContainer(t), InsightConfig(), InsightHandlers())
	if err != nil {
		t.Fatal(err)
	}

	for _, ins := range []*Insight{
		{Type: "pricing", Title: "Undercut detected", Confidence: 0.9, ProductIDs: []string{"p1"}},
		{Type: "demand", Title: "Demand spike", Confidence: 0.7, ProductIDs: []string{"p2"}},
	} {
		if _, err := repo.Create(ctx, ins, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.Find(ctx, &repository.QueryOptions{Filter: map[string]any{"type": "pricing"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "Undercut detected" {
		t.Fatalf("find = %+v", got)
	}
}

func TestAIModelConfigDefaults(t *testing.T) {
	cfg := AIModelConfigConfig()
	if cfg.CacheCapacity != 100 {
		t.Fatalf("cache capacity = %d, want 100", cfg.CacheCapacity)
	}
	if cfg.CollectionName != AIModelConfigCollection {
		t.Fatalf("collection = %q", cfg.CollectionName)
	}
}
