package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soyeahso/quotemill/internal/domain"
)

// CatalogEntry is one service family in the price catalog. Keywords are
// matched against item names case-insensitively; the first entry with a
// matching keyword wins.
type CatalogEntry struct {
	Service  string             `yaml:"service"`
	Keywords []string           `yaml:"keywords"`
	// Variants maps variant/tier names to hourly unit prices.
	Variants map[string]float64 `yaml:"variants,omitempty"`
	// BasePrice is used when the item's variant has no entry.
	BasePrice float64 `yaml:"basePrice"`
}

// CatalogPricer resolves unit prices from a static keyword-matched
// catalog. It serves as the default Pricer when no live pricing backend
// is configured.
type CatalogPricer struct {
	entries []CatalogEntry
}

// NewCatalogPricer returns a pricer over the built-in catalog.
func NewCatalogPricer() *CatalogPricer {
	return &CatalogPricer{entries: builtinCatalog}
}

// LoadCatalog reads a catalog file and returns a pricer over its entries.
func LoadCatalog(path string) (*CatalogPricer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	var entries []CatalogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog %s is empty", path)
	}
	return &CatalogPricer{entries: entries}, nil
}

// Price returns the hourly unit price for the item, or ErrPriceNotFound
// if no catalog entry matches its name.
func (c *CatalogPricer) Price(ctx context.Context, item domain.InventoryItem) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	name := strings.ToLower(item.Name)
	for _, e := range c.entries {
		if !matchesKeyword(name, e.Keywords) {
			continue
		}
		if p, ok := e.Variants[item.Variant]; ok {
			return p, nil
		}
		return e.BasePrice, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrPriceNotFound, item.Key())
}

func matchesKeyword(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// builtinCatalog covers common service families with representative
// hourly rates. Rates are indicative, not live quotes.
var builtinCatalog = []CatalogEntry{
	{
		Service:   "Web Hosting",
		Keywords:  []string{"web", "app service", "site", "host"},
		Variants:  map[string]float64{"Basic": 0.075, "Standard": 0.20, "Premium": 0.40},
		BasePrice: 0.10,
	},
	{
		Service:   "Virtual Machines",
		Keywords:  []string{"vm", "virtual machine", "compute", "server", "instance"},
		Variants:  map[string]float64{"Small": 0.05, "Medium": 0.19, "Large": 0.77},
		BasePrice: 0.10,
	},
	{
		Service:   "SQL Database",
		Keywords:  []string{"sql", "database", "rdbms"},
		Variants:  map[string]float64{"Basic": 0.007, "Standard": 0.03, "Premium": 0.625},
		BasePrice: 0.03,
	},
	{
		Service:   "Kubernetes",
		Keywords:  []string{"kubernetes", "k8s", "cluster"},
		Variants:  map[string]float64{"Free": 0, "Standard": 0.10},
		BasePrice: 0.10,
	},
	{
		Service:   "Object Storage",
		Keywords:  []string{"storage", "blob", "disk", "bucket"},
		Variants:  map[string]float64{"LRS": 0.021, "GRS": 0.046, "ZRS": 0.025},
		BasePrice: 0.021,
	},
	{
		Service:   "Serverless Functions",
		Keywords:  []string{"function", "serverless", "lambda"},
		BasePrice: 0.000016,
	},
	{
		Service:   "Cache",
		Keywords:  []string{"cache", "redis"},
		Variants:  map[string]float64{"Small": 0.055, "Medium": 0.22, "Large": 0.88},
		BasePrice: 0.055,
	},
	{
		Service:   "Load Balancer",
		Keywords:  []string{"load balancer", "gateway", "traffic"},
		BasePrice: 0.025,
	},
	{
		Service:   "Monitoring",
		Keywords:  []string{"monitoring", "log analytics", "insights", "diagnostics"},
		BasePrice: 0.012,
	},
	{
		Service:   "Virtual Network",
		Keywords:  []string{"vnet", "network", "vpn"},
		BasePrice: 0.05,
	},
}
