package provider

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/soyeahso/quotemill/internal/domain"
)

// identifiedItemsRe matches the running "identified_items" JSON array the
// assistant maintains while services are being discussed.
var identifiedItemsRe = regexp.MustCompile(`(?s)"identified_items"\s*:\s*(\[.*?\])`)

// jsonArrayBlockRe matches a fenced json code block containing a bare array.
var jsonArrayBlockRe = regexp.MustCompile("(?s)```json\\s*\n(\\[.*?\\])\n?\\s*```")

// ScanExtractor derives partial inventory items by scanning assistant
// messages in the conversation window for embedded item JSON. It is the
// default Extractor when no external extraction service is configured,
// and performs no I/O.
type ScanExtractor struct{}

// NewScanExtractor creates the conversation-scanning extractor.
func NewScanExtractor() *ScanExtractor {
	return &ScanExtractor{}
}

func (e *ScanExtractor) ExtractItems(ctx context.Context, window []domain.Message) ([]domain.InventoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var items []domain.InventoryItem
	for _, msg := range window {
		if msg.Role != "assistant" {
			continue
		}
		items = append(items, scanMessage(msg.Content)...)
	}
	return items, nil
}

// scanMessage pulls item arrays out of a single message. Unparseable
// blocks are skipped; extraction is best-effort by design.
func scanMessage(text string) []domain.InventoryItem {
	var found []domain.InventoryItem

	for _, m := range identifiedItemsRe.FindAllStringSubmatch(text, -1) {
		found = append(found, parseItemArray(m[1])...)
	}
	for _, m := range jsonArrayBlockRe.FindAllStringSubmatch(text, -1) {
		found = append(found, parseItemArray(m[1])...)
	}
	return found
}

func parseItemArray(raw string) []domain.InventoryItem {
	var items []domain.InventoryItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
