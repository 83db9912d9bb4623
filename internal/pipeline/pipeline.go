// Package pipeline turns a completed discovery session into a priced,
// rendered quote. The three stages run strictly in order: finalize the
// inventory, price every item, render the document. Progress is
// reported over a one-shot event stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/quotemill/internal/domain"
	"github.com/soyeahso/quotemill/internal/enrich"
	"github.com/soyeahso/quotemill/internal/inventory"
	"github.com/soyeahso/quotemill/internal/logging"
	"github.com/soyeahso/quotemill/internal/provider"
	"github.com/soyeahso/quotemill/internal/session"
)

// ErrSessionNotFound is returned when the session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrNotCompleted is returned when the session's discovery phase has
// not finished yet.
var ErrNotCompleted = errors.New("discovery not completed")

// ErrPipelineRunning is returned when a run is already in flight for
// the session.
var ErrPipelineRunning = errors.New("pipeline already running")

// DefaultCurrency labels pricing results when no currency is configured.
const DefaultCurrency = "USD"

// Pipeline runs the finalize, price and render stages for completed
// sessions.
type Pipeline struct {
	pricer   provider.Pricer
	renderer provider.Renderer
	sup      *enrich.Supervisor
	sessions session.Store
	currency string
	log      *logging.Logger

	mu      sync.Mutex
	running map[string]bool
}

// New creates a pipeline.
func New(pricer provider.Pricer, renderer provider.Renderer, sup *enrich.Supervisor, sessions session.Store, currency string, log *logging.Logger) *Pipeline {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Pipeline{
		pricer:   pricer,
		renderer: renderer,
		sup:      sup,
		sessions: sessions,
		currency: currency,
		log:      log.Sub("pipeline"),
		running:  make(map[string]bool),
	}
}

// Run starts a pipeline run for the session and returns its progress
// stream. The stream carries stage events and exactly one terminal
// event (complete or failed), after which it is closed. One run per
// session at a time.
func (p *Pipeline) Run(ctx context.Context, sessionID string) (<-chan domain.ProgressEvent, error) {
	sess := p.sessions.Get(sessionID)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !sess.Done {
		return nil, ErrNotCompleted
	}

	p.mu.Lock()
	if p.running[sessionID] {
		p.mu.Unlock()
		return nil, ErrPipelineRunning
	}
	p.running[sessionID] = true
	p.mu.Unlock()

	em := newEmitter()
	go p.run(ctx, sessionID, em)
	return em.events(), nil
}

func (p *Pipeline) run(ctx context.Context, sessionID string, em *emitter) {
	defer func() {
		p.mu.Lock()
		delete(p.running, sessionID)
		p.mu.Unlock()
	}()

	items, requirements, err := p.finalize(ctx, sessionID, em)
	if err != nil {
		p.log.Error().Err(err).Str("session", sessionID).Msg("finalize stage failed")
		em.fail(domain.StageFinalize, err)
		return
	}

	pricing := p.price(ctx, sessionID, em, items)

	doc, err := p.render(ctx, sessionID, em, requirements, pricing)
	if err != nil {
		p.log.Error().Err(err).Str("session", sessionID).Msg("render stage failed")
		em.fail(domain.StageRender, err)
		return
	}

	em.complete(&domain.PipelineResult{Pricing: pricing, Document: doc})
}

// finalize waits for any in-flight enrichment to settle, merges the
// items carried by the completion envelope, and snapshots the inventory
// the later stages will consume.
func (p *Pipeline) finalize(ctx context.Context, sessionID string, em *emitter) ([]domain.InventoryItem, string, error) {
	em.stageStart(domain.StageFinalize)

	if err := p.sup.Wait(ctx, sessionID); err != nil {
		return nil, "", fmt.Errorf("waiting for enrichment: %w", err)
	}

	var (
		items        []domain.InventoryItem
		requirements string
		res          inventory.Result
	)
	ok := p.sessions.Update(sessionID, func(s *domain.Session) {
		if len(s.FinalItems) > 0 {
			s.Items, res = inventory.Merge(s.Items, s.FinalItems)
		}
		items = append([]domain.InventoryItem(nil), s.Items...)
		requirements = s.RequirementsText
	})
	if !ok {
		return nil, "", ErrSessionNotFound
	}

	if res.Changed() {
		em.progress(domain.StageFinalize, fmt.Sprintf("reconciled final items: %d inserted, %d updated", res.Inserted, res.Updated))
	}
	em.progress(domain.StageFinalize, fmt.Sprintf("inventory frozen at %d items", len(items)))
	return items, requirements, nil
}

// price looks up every item and never aborts the run: a failed lookup
// becomes a zero-cost line with a note.
func (p *Pipeline) price(ctx context.Context, sessionID string, em *emitter, items []domain.InventoryItem) domain.PricingResult {
	em.stageStart(domain.StagePrice)

	result := domain.PricingResult{
		Currency: p.currency,
		PricedAt: time.Now(),
	}
	for i, item := range items {
		priced := domain.PricedItem{
			Name:     item.Name,
			Region:   item.Region,
			Variant:  item.Variant,
			Quantity: item.Quantity,
		}
		unit, err := p.pricer.Price(ctx, item)
		if err != nil {
			priced.Note = fmt.Sprintf("price lookup failed: %v", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.Key(), err))
			p.log.Warn().Err(err).Str("session", sessionID).Str("item", item.Key().String()).Msg("price lookup failed")
		} else {
			priced.UnitPrice = unit
			priced.LineCost = unit * item.Quantity
		}
		result.Items = append(result.Items, priced)
		result.Total += priced.LineCost
		em.progress(domain.StagePrice, fmt.Sprintf("priced %d/%d", i+1, len(items)))
	}

	p.sessions.Update(sessionID, func(s *domain.Session) {
		s.Pricing = &result
	})
	return result
}

func (p *Pipeline) render(ctx context.Context, sessionID string, em *emitter, requirements string, pricing domain.PricingResult) (string, error) {
	em.stageStart(domain.StageRender)

	doc, err := p.renderer.Render(ctx, requirements, pricing)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}

	p.sessions.Update(sessionID, func(s *domain.Session) {
		s.Document = doc
	})
	em.progress(domain.StageRender, "document rendered")
	return doc, nil
}
