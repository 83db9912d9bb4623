package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/quotemill/internal/domain"
)

// MarkdownRenderer produces the final quote document as markdown.
// Output is deterministic given the same inputs.
type MarkdownRenderer struct{}

// NewMarkdownRenderer creates the default document renderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

func (r *MarkdownRenderer) Render(ctx context.Context, requirements string, pricing domain.PricingResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# Quote\n\n")

	b.WriteString("## Requirements\n\n")
	if requirements == "" {
		b.WriteString("_No requirements summary recorded._\n")
	} else {
		b.WriteString(requirements)
		b.WriteString("\n")
	}
	b.WriteString("\n## Line Items\n\n")

	if len(pricing.Items) == 0 {
		b.WriteString("_No items identified._\n")
	} else {
		b.WriteString("| Item | Region | Variant | Qty | Unit Price | Line Cost |\n")
		b.WriteString("|------|--------|---------|-----|------------|-----------|\n")
		for _, it := range pricing.Items {
			fmt.Fprintf(&b, "| %s | %s | %s | %g | %.4f | %.2f |\n",
				it.Name, it.Region, orDash(it.Variant), it.Quantity, it.UnitPrice, it.LineCost)
		}
	}

	fmt.Fprintf(&b, "\n**Total: %.2f %s**\n", pricing.Total, currencyOrDefault(pricing.Currency))

	if notes := collectNotes(pricing.Items); len(notes) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}

	return b.String(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}

func collectNotes(items []domain.PricedItem) []string {
	var notes []string
	for _, it := range items {
		if it.Note != "" {
			notes = append(notes, fmt.Sprintf("%s (%s): %s", it.Name, it.Region, it.Note))
		}
	}
	return notes
}
