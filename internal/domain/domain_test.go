package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemKeyString(t *testing.T) {
	k := ItemKey{Name: "WebHost", Region: "east"}
	assert.Equal(t, "WebHost@east", k.String())
}

func TestItemKeyCaseSensitive(t *testing.T) {
	a := InventoryItem{Name: "WebHost", Region: "east"}
	b := InventoryItem{Name: "webhost", Region: "east"}
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestInventoryItemValid(t *testing.T) {
	tests := []struct {
		name string
		item InventoryItem
		want bool
	}{
		{"complete", InventoryItem{Name: "WebHost", Region: "east"}, true},
		{"missing name", InventoryItem{Region: "east"}, false},
		{"missing region", InventoryItem{Name: "WebHost"}, false},
		{"empty", InventoryItem{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Valid())
		})
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	assert.True(t, TaskIdle.Terminal())
	assert.True(t, TaskComplete.Terminal())
	assert.True(t, TaskError.Terminal())
	assert.False(t, TaskQueued.Terminal())
	assert.False(t, TaskProcessing.Terminal())
}

func TestDiscoveryStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateTurnLimitExceeded.Terminal())
	assert.False(t, StateAwaitingInput.Terminal())
	assert.False(t, StateProcessing.Terminal())
}

func TestSessionClone(t *testing.T) {
	now := time.Now()
	s := &Session{
		ID:        "s1",
		TurnCount: 3,
		Messages:  []Message{{Role: "user", Content: "hi", Timestamp: now}},
		Items: []InventoryItem{
			{Name: "WebHost", Region: "east", Quantity: 1, Attributes: map[string]string{"tier": "basic"}},
		},
		LastUpdateAt: &now,
		Pricing: &PricingResult{
			Items: []PricedItem{{Name: "WebHost", Region: "east", UnitPrice: 2, LineCost: 2}},
			Total: 2,
		},
	}

	c := s.Clone()
	require.NotNil(t, c)
	assert.Equal(t, s.ID, c.ID)

	// Mutating the clone must not touch the original.
	c.Messages[0].Content = "changed"
	c.Items[0].Variant = "premium"
	c.Items[0].Attributes["tier"] = "premium"
	c.Pricing.Items[0].UnitPrice = 99
	*c.LastUpdateAt = now.Add(time.Hour)

	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Empty(t, s.Items[0].Variant)
	assert.Equal(t, "basic", s.Items[0].Attributes["tier"])
	assert.Equal(t, float64(2), s.Pricing.Items[0].UnitPrice)
	assert.Equal(t, now, *s.LastUpdateAt)
}

func TestSessionCloneNil(t *testing.T) {
	var s *Session
	assert.Nil(t, s.Clone())
}
