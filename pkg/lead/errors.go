package lead

import "fmt"

// ValidationError reports an attribute that violates its type or range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError is returned when no lead has the requested id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("lead %d not found", e.ID)
}

// DuplicateKeyError is returned when an add collides with an existing key.
// Key is "id" or "email".
type DuplicateKeyError struct {
	Key   string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("lead with %s %s already exists", e.Key, e.Value)
}

// StructuralIngestError means a batch was not a sequence of mapping-like
// records, so nothing in it could be ingested.
type StructuralIngestError struct {
	Reason string
}

func (e *StructuralIngestError) Error() string {
	return "malformed lead batch: " + e.Reason
}
