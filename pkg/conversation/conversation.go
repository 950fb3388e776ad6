package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leadscope/leadscope/pkg/lead"
)

// Route records which path answered a turn.
type Route string

const (
	RouteLocal   Route = "local"
	RouteBackend Route = "backend"
)

// Turn is one (input, response) exchange.
type Turn struct {
	Input      string    `json:"input"`
	Response   string    `json:"response"`
	Route      Route     `json:"route"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Session holds the ordered, append-only history of one interactive session.
type Session struct {
	ID        string
	StartedAt time.Time

	mu    sync.Mutex
	turns []Turn
}

// NewSession starts an empty session with a random id.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// Append adds a turn to the end of the history.
func (s *Session) Append(t Turn) {
	if t.OccurredAt.IsZero() {
		t.OccurredAt = time.Now()
	}
	s.mu.Lock()
	s.turns = append(s.turns, t)
	s.mu.Unlock()
}

// Turns returns a copy of the history, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

// Len is the number of recorded turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Snapshot is the read-only view of the collection handed to a backend.
// Leads may be truncated; Total is always the real collection size.
type Snapshot struct {
	Leads []lead.Lead `json:"leads"`
	Total int         `json:"total"`
}

// Truncated reports whether Leads holds fewer records than the collection.
func (s Snapshot) Truncated() bool {
	return len(s.Leads) < s.Total
}

// Backend answers free-form questions about the collection.
type Backend interface {
	Respond(ctx context.Context, snap Snapshot, history []Turn, query string) (string, error)
}
