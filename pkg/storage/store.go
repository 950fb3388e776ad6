package storage

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leadscope/leadscope/pkg/lead"
)

// Predicate selects leads in Find.
type Predicate func(lead.Lead) bool

// Store owns the lead collection. All mutation goes through its methods;
// callers only ever receive copies.
type Store struct {
	mu      sync.RWMutex
	leads   map[int64]*lead.Lead
	order   []int64
	byEmail map[string]int64
	nextID  int64
	now     func() time.Time

	interactions map[int64][]lead.Interaction
}

// NewStore returns an empty collection whose ids start at 1.
func NewStore() *Store {
	return &Store{
		leads:   make(map[int64]*lead.Lead),
		byEmail: make(map[string]int64),
		nextID:  1,
		now:     time.Now,

		interactions: make(map[int64][]lead.Interaction),
	}
}

// Add validates and inserts l. A zero ID gets a fresh one; a caller-supplied
// ID is kept when free and fails with DuplicateKeyError when taken. Ids are
// never reused, even after delete.
func (s *Store) Add(l lead.Lead) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID != 0 {
		if _, exists := s.leads[l.ID]; exists {
			return 0, &lead.DuplicateKeyError{Key: "id", Value: itoa(l.ID)}
		}
		if l.ID < 0 {
			return 0, &lead.ValidationError{Field: "id", Message: "must be positive"}
		}
	}
	if l.Category == "" {
		l.Category = lead.CategoryUnscored
	}
	if l.Timeline == "" {
		l.Timeline = lead.TimelineUnknown
	}
	if l.Status == "" {
		l.Status = lead.StatusNew
	}
	if err := lead.Validate(l); err != nil {
		return 0, err
	}
	if key := emailKey(l.Email); key != "" {
		if _, taken := s.byEmail[key]; taken {
			return 0, &lead.DuplicateKeyError{Key: "email", Value: l.Email}
		}
	}

	if l.ID == 0 {
		l.ID = s.nextID
	}
	if l.ID >= s.nextID {
		s.nextID = l.ID + 1
	}

	now := s.now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = now
	}
	l.Domain = lead.EmailDomain(l.Email)

	stored := l.Clone()
	s.leads[l.ID] = &stored
	s.order = append(s.order, l.ID)
	if key := emailKey(l.Email); key != "" {
		s.byEmail[key] = l.ID
	}
	return l.ID, nil
}

// Get returns a copy of the lead.
func (s *Store) Get(id int64) (lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leads[id]
	if !ok {
		return lead.Lead{}, &lead.NotFoundError{ID: id}
	}
	return l.Clone(), nil
}

// Update applies the supplied fields. The record is replaced only when the
// patched version validates, so a failed update leaves it untouched.
func (s *Store) Update(id int64, p lead.Patch) (lead.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leads[id]
	if !ok {
		return lead.Lead{}, &lead.NotFoundError{ID: id}
	}

	next := p.Apply(*cur)
	if err := lead.Validate(next); err != nil {
		return lead.Lead{}, err
	}

	oldKey, newKey := emailKey(cur.Email), emailKey(next.Email)
	if newKey != oldKey && newKey != "" {
		if other, taken := s.byEmail[newKey]; taken && other != id {
			return lead.Lead{}, &lead.DuplicateKeyError{Key: "email", Value: next.Email}
		}
	}

	next.UpdatedAt = s.now()
	s.commit(cur, next)
	return next.Clone(), nil
}

// SetScore writes the derived attributes produced by a scoring pass.
func (s *Store) SetScore(id int64, score float64, category lead.Category, notes string) (lead.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leads[id]
	if !ok {
		return lead.Lead{}, &lead.NotFoundError{ID: id}
	}

	next := cur.Clone()
	next.Score = &score
	next.Category = category
	next.Notes = notes
	if err := lead.Validate(next); err != nil {
		return lead.Lead{}, err
	}
	next.UpdatedAt = s.now()
	s.commit(cur, next)
	return next.Clone(), nil
}

func (s *Store) commit(cur *lead.Lead, next lead.Lead) {
	if oldKey := emailKey(cur.Email); oldKey != "" {
		delete(s.byEmail, oldKey)
	}
	if newKey := emailKey(next.Email); newKey != "" {
		s.byEmail[newKey] = next.ID
	}
	*cur = next
}

// Delete removes the lead permanently. Deleting an absent id is an error.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[id]
	if !ok {
		return &lead.NotFoundError{ID: id}
	}
	if key := emailKey(l.Email); key != "" {
		delete(s.byEmail, key)
	}
	delete(s.leads, id)
	delete(s.interactions, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Find returns copies of all matching leads in collection order. A nil
// predicate matches everything.
func (s *Store) Find(pred Predicate) []lead.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]lead.Lead, 0, len(s.order))
	for _, id := range s.order {
		l := s.leads[id]
		if pred == nil || pred(*l) {
			out = append(out, l.Clone())
		}
	}
	return out
}

// All returns the whole collection in insertion order.
func (s *Store) All() []lead.Lead {
	return s.Find(nil)
}

// Len is the number of leads held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// FindByEmail looks a lead up by email, case-insensitively.
func (s *Store) FindByEmail(email string) (lead.Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return lead.Lead{}, false
	}
	return s.leads[id].Clone(), true
}

// AddInteraction appends an interaction to the lead's log. Empty ID and
// OccurredAt are filled in. Contact interactions (email, call, meeting) move
// LastContacted forward, never back, so replaying a saved log is harmless.
func (s *Store) AddInteraction(in lead.Interaction) (lead.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leads[in.LeadID]
	if !ok {
		return lead.Interaction{}, &lead.NotFoundError{ID: in.LeadID}
	}
	in.Type = lead.NormalizeInteractionType(in.Type)
	if in.Type == "" {
		return lead.Interaction{}, &lead.ValidationError{Field: "type", Message: "is required"}
	}
	in.Details = strings.TrimSpace(in.Details)
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.now()
	}

	s.interactions[in.LeadID] = append(s.interactions[in.LeadID], in)
	if lead.IsContact(in.Type) && (cur.LastContacted == nil || in.OccurredAt.After(*cur.LastContacted)) {
		at := in.OccurredAt
		cur.LastContacted = &at
	}
	return in, nil
}

// Interactions returns the lead's log, oldest first.
func (s *Store) Interactions(id int64) ([]lead.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.leads[id]; !ok {
		return nil, &lead.NotFoundError{ID: id}
	}
	return append([]lead.Interaction{}, s.interactions[id]...), nil
}

// AllInteractions returns every logged interaction, grouped by lead in
// collection order.
func (s *Store) AllInteractions() []lead.Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []lead.Interaction
	for _, id := range s.order {
		out = append(out, s.interactions[id]...)
	}
	return out
}
