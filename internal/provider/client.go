// Package provider defines the boundary contracts the orchestration core
// consumes: the reasoning call that drives the conversation, the
// enrichment extraction call, the price lookup, and the document
// renderer. Implementations live behind these interfaces so backends
// can be swapped without touching the core.
package provider

import (
	"context"
	"errors"

	"github.com/soyeahso/quotemill/internal/domain"
)

// ErrPriceNotFound is returned by a Pricer when no price exists for an item.
var ErrPriceNotFound = errors.New("price not found")

// Reasoner produces the assistant reply for a conversation turn.
// Failures propagate as turn-level errors.
type Reasoner interface {
	Ask(ctx context.Context, history []domain.Message) (string, error)
}

// Extractor derives partial inventory items from a trailing slice of the
// conversation. Invoked only by the enrichment supervisor.
type Extractor interface {
	ExtractItems(ctx context.Context, window []domain.Message) ([]domain.InventoryItem, error)
}

// Pricer resolves the unit price for a single inventory item.
type Pricer interface {
	Price(ctx context.Context, item domain.InventoryItem) (float64, error)
}

// Renderer synthesizes the final document from requirements and pricing.
// Render must be pure given its inputs.
type Renderer interface {
	Render(ctx context.Context, requirements string, pricing domain.PricingResult) (string, error)
}
