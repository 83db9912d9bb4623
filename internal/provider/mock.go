package provider

import (
	"context"

	"github.com/soyeahso/quotemill/internal/domain"
)

// MockReasoner is a test double for Reasoner.
type MockReasoner struct {
	AskFunc func(ctx context.Context, history []domain.Message) (string, error)
}

func (m *MockReasoner) Ask(ctx context.Context, history []domain.Message) (string, error) {
	if m.AskFunc != nil {
		return m.AskFunc(ctx, history)
	}
	return "mock reply", nil
}

// MockExtractor is a test double for Extractor.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, window []domain.Message) ([]domain.InventoryItem, error)
}

func (m *MockExtractor) ExtractItems(ctx context.Context, window []domain.Message) ([]domain.InventoryItem, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, window)
	}
	return nil, nil
}

// MockPricer is a test double for Pricer.
type MockPricer struct {
	PriceFunc func(ctx context.Context, item domain.InventoryItem) (float64, error)
}

func (m *MockPricer) Price(ctx context.Context, item domain.InventoryItem) (float64, error) {
	if m.PriceFunc != nil {
		return m.PriceFunc(ctx, item)
	}
	return 1.0, nil
}

// MockRenderer is a test double for Renderer.
type MockRenderer struct {
	RenderFunc func(ctx context.Context, requirements string, pricing domain.PricingResult) (string, error)
}

func (m *MockRenderer) Render(ctx context.Context, requirements string, pricing domain.PricingResult) (string, error) {
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, requirements, pricing)
	}
	return "mock document", nil
}
