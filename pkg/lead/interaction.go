package lead

import (
	"strings"
	"time"
)

// Interaction is one logged touchpoint with a lead.
type Interaction struct {
	ID         string    `json:"id"`
	LeadID     int64     `json:"lead_id"`
	Type       string    `json:"type"`
	Details    string    `json:"details,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Interaction types that count as reaching out to the lead and so move
// LastContacted. Any other non-empty type ("note", "demo") is accepted too.
const (
	InteractionEmail   = "email"
	InteractionCall    = "call"
	InteractionMeeting = "meeting"
)

// NormalizeInteractionType lowercases t and joins words with underscores.
func NormalizeInteractionType(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), "_")
}

// IsContact reports whether an interaction of type t counts as contact.
func IsContact(t string) bool {
	switch NormalizeInteractionType(t) {
	case InteractionEmail, InteractionCall, InteractionMeeting:
		return true
	}
	return false
}
