package storage

import "time"

// TurnRecord is one persisted exchange of a chat session.
type TurnRecord struct {
	SessionID  string
	Input      string
	Response   string
	Route      string // local | backend
	OccurredAt time.Time
}

// CategoryStats is a per-category aggregate computed in SQL.
type CategoryStats struct {
	Category     string
	LeadCount    int
	AverageScore float64
}
