package escalation

import (
	"time"
)

// Event type discriminators sent over the push channel.
const (
	EventNewHelpRequest = "new_help_request"
	EventHelpResolved   = "help_resolved"
)

// NewHelpRequestEvent announces that a question missed the knowledge base
// and was escalated to a supervisor.
type NewHelpRequestEvent struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"created_at"`
}

// HelpResolvedEvent announces that a supervisor answered an escalation.
type HelpResolvedEvent struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Broadcaster delivers an event to all connected live clients. Delivery is
// best effort and must never fail the calling operation.
type Broadcaster interface {
	Broadcast(event interface{})
}
