package domain

import "time"

// DiscoveryState is the discovery loop's state machine position.
type DiscoveryState string

const (
	StateAwaitingInput     DiscoveryState = "awaiting_input"
	StateProcessing        DiscoveryState = "processing"
	StateCompleted         DiscoveryState = "completed"
	StateTurnLimitExceeded DiscoveryState = "turn_limit_exceeded"
)

// Terminal reports whether the discovery loop accepts no further turns.
func (s DiscoveryState) Terminal() bool {
	return s == StateCompleted || s == StateTurnLimitExceeded
}

// Message is a single turn in a conversation.
type Message struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session tracks one requirements-discovery conversation and everything
// derived from it: the running inventory, background enrichment status,
// and pipeline outputs.
//
// Mutation discipline: the discovery loop writes TurnCount, State, Done,
// RequirementsText, FinalItems and Messages; the enrichment supervisor
// writes Items, TaskStatus, TaskError and LastUpdateAt; the pipeline
// writes Pricing and Document. All writes go through the session store,
// which serializes them.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	TurnCount        int            `json:"turnCount"`
	State            DiscoveryState `json:"state"`
	Done             bool           `json:"done"`
	RequirementsText string         `json:"requirementsText,omitempty"`
	Messages         []Message      `json:"messages,omitempty"`

	Items []InventoryItem `json:"items,omitempty"`

	// FinalItems are the items carried by the completion envelope,
	// reconciled into Items by the pipeline's finalize stage.
	FinalItems []InventoryItem `json:"finalItems,omitempty"`

	TaskStatus   TaskStatus `json:"taskStatus"`
	TaskError    string     `json:"taskError,omitempty"`
	LastUpdateAt *time.Time `json:"lastUpdateAt,omitempty"`

	Pricing  *PricingResult `json:"pricing,omitempty"`
	Document string         `json:"document,omitempty"`
}

// Clone returns a deep copy safe to hand to readers while the original
// keeps being mutated under the store's lock.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Items = cloneItems(s.Items)
	out.FinalItems = cloneItems(s.FinalItems)
	if s.LastUpdateAt != nil {
		t := *s.LastUpdateAt
		out.LastUpdateAt = &t
	}
	if s.Pricing != nil {
		p := *s.Pricing
		p.Items = append([]PricedItem(nil), s.Pricing.Items...)
		p.Errors = append([]string(nil), s.Pricing.Errors...)
		out.Pricing = &p
	}
	return &out
}

func cloneItems(items []InventoryItem) []InventoryItem {
	if items == nil {
		return nil
	}
	out := make([]InventoryItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.Attributes != nil {
			attrs := make(map[string]string, len(it.Attributes))
			for k, v := range it.Attributes {
				attrs[k] = v
			}
			out[i].Attributes = attrs
		}
	}
	return out
}
