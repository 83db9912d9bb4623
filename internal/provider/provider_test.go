package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/quotemill/internal/domain"
)

func TestCatalogPricerVariantMatch(t *testing.T) {
	p := NewCatalogPricer()

	price, err := p.Price(context.Background(), domain.InventoryItem{
		Name: "Web Hosting", Region: "east", Variant: "Premium", Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.40, price)
}

func TestCatalogPricerBasePriceFallback(t *testing.T) {
	p := NewCatalogPricer()

	price, err := p.Price(context.Background(), domain.InventoryItem{
		Name: "SQL Database", Region: "east", Variant: "NoSuchTier",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.03, price)
}

func TestCatalogPricerCaseInsensitiveName(t *testing.T) {
	p := NewCatalogPricer()

	_, err := p.Price(context.Background(), domain.InventoryItem{Name: "KUBERNETES cluster", Region: "east"})
	assert.NoError(t, err)
}

func TestCatalogPricerNotFound(t *testing.T) {
	p := NewCatalogPricer()

	_, err := p.Price(context.Background(), domain.InventoryItem{Name: "Quantum Annealer", Region: "east"})
	assert.ErrorIs(t, err, ErrPriceNotFound)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `
- service: Widgets
  keywords: ["widget"]
  basePrice: 1.5
  variants:
    Deluxe: 3.0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	p, err := LoadCatalog(path)
	require.NoError(t, err)

	price, err := p.Price(context.Background(), domain.InventoryItem{Name: "widget press", Region: "east", Variant: "Deluxe"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, price)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMarkdownRenderer(t *testing.T) {
	r := NewMarkdownRenderer()
	pricing := domain.PricingResult{
		Items: []domain.PricedItem{
			{Name: "WebHost", Region: "east", Variant: "Premium", Quantity: 2, UnitPrice: 0.40, LineCost: 0.80},
			{Name: "Database", Region: "east", Quantity: 1, UnitPrice: 0, LineCost: 0, Note: "price lookup failed"},
		},
		Total:    0.80,
		Currency: "USD",
		PricedAt: time.Now(),
	}

	doc, err := r.Render(context.Background(), "Two-tier web app in the east region.", pricing)
	require.NoError(t, err)

	assert.Contains(t, doc, "# Quote")
	assert.Contains(t, doc, "Two-tier web app")
	assert.Contains(t, doc, "| WebHost | east | Premium | 2 |")
	assert.Contains(t, doc, "**Total: 0.80 USD**")
	assert.Contains(t, doc, "price lookup failed")
}

func TestMarkdownRendererDeterministic(t *testing.T) {
	r := NewMarkdownRenderer()
	pricing := domain.PricingResult{
		Items: []domain.PricedItem{{Name: "A", Region: "x", Quantity: 1, UnitPrice: 1, LineCost: 1}},
		Total: 1,
	}

	a, err := r.Render(context.Background(), "req", pricing)
	require.NoError(t, err)
	b, err := r.Render(context.Background(), "req", pricing)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScanExtractorIdentifiedItems(t *testing.T) {
	e := NewScanExtractor()
	window := []domain.Message{
		{Role: "user", Content: "I need a web app"},
		{Role: "assistant", Content: `Current list:
{
  "identified_items": [
    {"name": "WebHost", "region": "east", "variant": "Basic", "quantity": 1}
  ]
}`},
	}

	items, err := e.ExtractItems(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "WebHost", items[0].Name)
	assert.Equal(t, "east", items[0].Region)
}

func TestScanExtractorFencedArray(t *testing.T) {
	e := NewScanExtractor()
	window := []domain.Message{
		{Role: "assistant", Content: "Here is what I have so far:\n```json\n[{\"name\": \"Cache\", \"region\": \"west\", \"quantity\": 1}]\n```"},
	}

	items, err := e.ExtractItems(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Cache", items[0].Name)
}

func TestScanExtractorIgnoresUserAndGarbage(t *testing.T) {
	e := NewScanExtractor()
	window := []domain.Message{
		{Role: "user", Content: `{"identified_items": [{"name": "Sneaky", "region": "east"}]}`},
		{Role: "assistant", Content: `{"identified_items": [not json at all]}`},
	}

	items, err := e.ExtractItems(context.Background(), window)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHTTPClientAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"reply": "What region?"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret")
	reply, err := c.Ask(context.Background(), []domain.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "What region?", reply)
}

func TestHTTPClientExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		w.Write([]byte(`{"items": [{"name": "WebHost", "region": "east", "quantity": 1}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	items, err := c.ExtractItems(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "WebHost", items[0].Name)
}

func TestHTTPClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.Ask(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "500"))
}
