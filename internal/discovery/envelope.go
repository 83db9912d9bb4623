package discovery

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/soyeahso/quotemill/internal/domain"
)

// EnvelopeState classifies the completion-envelope parse outcome.
type EnvelopeState int

const (
	// EnvelopeAbsent means the message carries no completion envelope.
	EnvelopeAbsent EnvelopeState = iota

	// EnvelopeMalformed means a completion envelope was attempted but
	// could not be parsed. The turn proceeds as non-terminal.
	EnvelopeMalformed

	// EnvelopeWellFormed means the envelope parsed cleanly.
	EnvelopeWellFormed
)

// Envelope is the structured completion signal embedded in an assistant
// message as a fenced json block.
type Envelope struct {
	State   EnvelopeState
	Summary string
	Done    bool
	Items   []domain.InventoryItem
}

var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

type envelopePayload struct {
	Requirements string                 `json:"requirements"`
	Done         *bool                  `json:"done"`
	Items        []domain.InventoryItem `json:"items"`
}

// ParseEnvelope scans an assistant message for a completion envelope:
// a fenced ```json object carrying requirements text, a done flag and
// an optional final item list.
//
// A fenced block that mentions "done" but does not parse is reported as
// Malformed so the caller can log it and carry on; a block without a
// done flag at all is not an envelope.
func ParseEnvelope(message string) Envelope {
	m := fencedJSONRe.FindStringSubmatch(message)
	if m == nil {
		return Envelope{State: EnvelopeAbsent}
	}
	raw := m[1]

	var p envelopePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.Done == nil {
		if strings.Contains(raw, `"done"`) {
			return Envelope{State: EnvelopeMalformed}
		}
		return Envelope{State: EnvelopeAbsent}
	}

	return Envelope{
		State:   EnvelopeWellFormed,
		Summary: p.Requirements,
		Done:    *p.Done,
		Items:   p.Items,
	}
}

// StripEnvelope removes the fenced envelope block from the assistant
// message, returning the user-visible remainder.
func StripEnvelope(message string) string {
	return strings.TrimSpace(fencedJSONRe.ReplaceAllString(message, ""))
}
