package domain

import "time"

// ItemKey uniquely identifies an inventory item within a session.
// Matching is case-sensitive and exact.
type ItemKey struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

// String returns a canonical string form of the item key.
func (k ItemKey) String() string {
	return k.Name + "@" + k.Region
}

// InventoryItem is one line of a session's running inventory.
type InventoryItem struct {
	Name         string            `json:"name"`
	Region       string            `json:"region"`
	Variant      string            `json:"variant,omitempty"`
	Quantity     float64           `json:"quantity"`
	DurationUnit string            `json:"durationUnit,omitempty"` // "hours" | "month"
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Key returns the item's composite identity.
func (it InventoryItem) Key() ItemKey {
	return ItemKey{Name: it.Name, Region: it.Region}
}

// Valid reports whether the item carries a complete composite key.
func (it InventoryItem) Valid() bool {
	return it.Name != "" && it.Region != ""
}

// PricedItem is an inventory item with resolved pricing.
type PricedItem struct {
	Name     string  `json:"name"`
	Region   string  `json:"region"`
	Variant  string  `json:"variant,omitempty"`
	Quantity float64 `json:"quantity"`

	UnitPrice float64 `json:"unitPrice"`
	LineCost  float64 `json:"lineCost"` // UnitPrice × Quantity, 0 with a note on lookup failure
	Note      string  `json:"note,omitempty"`
}

// PricingResult is the output of the pricing stage. Total is the sum of
// LineCost over Items, computed once over the frozen item slice.
type PricingResult struct {
	Items    []PricedItem `json:"items"`
	Total    float64      `json:"total"`
	Currency string       `json:"currency"`
	PricedAt time.Time    `json:"pricedAt"`
	Errors   []string     `json:"errors,omitempty"` // per-item lookup failures
}
