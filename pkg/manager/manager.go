package manager

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/leadscope/leadscope/pkg/conversation"
	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/leadscope/leadscope/pkg/scoring"
	"github.com/leadscope/leadscope/pkg/storage"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Config holds the collaborators of a Manager. Every field is optional.
type Config struct {
	Store  *storage.Store  // nil = new empty store
	Engine *scoring.Engine // nil = default criteria
	Log    Logger          // nil = no logging
}

// Manager orchestrates ingestion, scoring and querying of the collection.
// It is the only writer of derived attributes.
type Manager struct {
	// mu keeps add-then-score and update-then-rescore atomic with respect
	// to other writers.
	mu     sync.Mutex
	store  *storage.Store
	engine atomic.Pointer[scoring.Engine]
	log    Logger
}

func New(cfg Config) *Manager {
	m := &Manager{store: cfg.Store, log: cfg.Log}
	if m.store == nil {
		m.store = storage.NewStore()
	}
	if cfg.Engine == nil {
		cfg.Engine = scoring.NewDefaultEngine()
	}
	m.engine.Store(cfg.Engine)
	if m.log == nil {
		m.log = nopLogger{}
	}
	return m
}

// Engine returns the scoring engine in use.
func (m *Manager) Engine() *scoring.Engine {
	return m.engine.Load()
}

// SetCriteria validates c, switches scoring over to it and rescores the whole
// collection. Invalid criteria leave the current engine in place.
func (m *Manager) SetCriteria(ctx context.Context, c scoring.Criteria) (int, error) {
	e, err := scoring.NewEngine(c)
	if err != nil {
		return 0, &lead.ValidationError{Field: "scoring", Message: err.Error()}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.engine.Store(e)
	m.log.Infof("Scoring criteria changed, qualified at %.1f, hot at %.1f", c.QualifiedThreshold, c.HotThreshold)
	return m.rescoreAllLocked(ctx)
}

// Len is the collection size.
func (m *Manager) Len() int {
	return m.store.Len()
}

// Leads returns the whole collection in insertion order.
func (m *Manager) Leads() []lead.Lead {
	return m.store.All()
}

// Load restores previously persisted leads, ids and profiles included.
// Derived attributes are checked against the current criteria: a stored
// score, category or scoring note that no longer matches is recomputed, and
// unscored leads are scored. Leads that fail validation are reported and
// skipped.
func (m *Manager) Load(leads []lead.Lead) []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		errs  []error
		stale int
	)
	for _, l := range leads {
		id, err := m.store.Add(l)
		if err != nil {
			m.log.Warnf("Skipping stored lead %d: %v", l.ID, err)
			errs = append(errs, err)
			continue
		}
		stored, err := m.store.Get(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if m.derivedCurrent(stored) {
			continue
		}
		stale++
		if _, err := m.scoreLocked(stored); err != nil {
			m.log.Errorf("Could not rescore stored lead %d: %v", id, err)
			errs = append(errs, err)
		}
	}
	if stale > 0 {
		m.log.Infof("Rescored %d stored leads whose scores were out of date", stale)
	}
	return errs
}

// derivedCurrent reports whether l's score, category and scoring note are
// what the engine would write now.
func (m *Manager) derivedCurrent(l lead.Lead) bool {
	if l.Score == nil {
		return false
	}
	res := m.Engine().Score(l)
	return *l.Score == res.Score && l.Category == res.Category &&
		l.Notes == withDefaultedNote(l.Notes, res.Defaulted)
}

// Add ingests a single raw record and returns the scored lead.
func (m *Manager) Add(ctx context.Context, r lead.RawRecord) (lead.Lead, error) {
	if err := ctx.Err(); err != nil {
		return lead.Lead{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(r)
}

func (m *Manager) addLocked(r lead.RawRecord) (lead.Lead, error) {
	l, ignored := lead.FromRaw(r)
	if len(ignored) > 0 {
		m.log.Debugf("Ignoring unreadable values for %q: %s", l.Company, strings.Join(ignored, ", "))
	}

	id, err := m.store.Add(l)
	if err != nil {
		return lead.Lead{}, err
	}
	stored, err := m.store.Get(id)
	if err != nil {
		return lead.Lead{}, err
	}
	scored, err := m.scoreLocked(stored)
	if err != nil {
		// never leave an unscored lead behind a failed add
		_ = m.store.Delete(id)
		return lead.Lead{}, err
	}
	return scored, nil
}

func (m *Manager) scoreLocked(l lead.Lead) (lead.Lead, error) {
	res := m.Engine().Score(l)
	return m.store.SetScore(l.ID, res.Score, res.Category, withDefaultedNote(l.Notes, res.Defaulted))
}

// Get returns a copy of the lead.
func (m *Manager) Get(id int64) (lead.Lead, error) {
	return m.store.Get(id)
}

// Update applies p and rescores the lead. Derived attributes never go stale.
func (m *Manager) Update(ctx context.Context, id int64, p lead.Patch) (lead.Lead, error) {
	if err := ctx.Err(); err != nil {
		return lead.Lead{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	updated, err := m.store.Update(id, p)
	if err != nil {
		return lead.Lead{}, err
	}
	return m.scoreLocked(updated)
}

// Delete removes the lead permanently.
func (m *Manager) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(id)
}

// Rescore recomputes one lead's score from its current profile.
func (m *Manager) Rescore(ctx context.Context, id int64) (lead.Lead, error) {
	if err := ctx.Err(); err != nil {
		return lead.Lead{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.store.Get(id)
	if err != nil {
		return lead.Lead{}, err
	}
	return m.scoreLocked(l)
}

// RescoreAll rescores every lead and returns how many were written. Running it
// twice yields the same scores.
func (m *Manager) RescoreAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rescoreAllLocked(ctx)
}

func (m *Manager) rescoreAllLocked(ctx context.Context) (int, error) {
	n := 0
	for _, l := range m.store.All() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := m.scoreLocked(l); err != nil {
			m.log.Errorf("Could not rescore lead %d: %v", l.ID, err)
			return n, err
		}
		n++
	}
	m.log.Debugf("Rescored %d leads", n)
	return n, nil
}

// Search matches text case-insensitively against contact name, company and
// email.
func (m *Manager) Search(text string) []lead.Lead {
	q := storage.NormalizeText(text)
	return m.store.Find(func(l lead.Lead) bool {
		return strings.Contains(strings.ToLower(l.ContactName), q) ||
			strings.Contains(strings.ToLower(l.Company), q) ||
			strings.Contains(strings.ToLower(l.Email), q)
	})
}

// Companies returns the distinct company names, sorted. Names that differ
// only in case or spacing are listed once, in their first-seen spelling.
func (m *Manager) Companies() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range m.store.All() {
		key := storage.NormalizeCompany(l.Company)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l.Company)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// Snapshot returns the collection ordered by score, best first, holding at
// most limit leads (limit <= 0 means all). Total is always the full count.
func (m *Manager) Snapshot(limit int) conversation.Snapshot {
	all := m.store.All()
	sortByScore(all)
	snap := conversation.Snapshot{Total: len(all), Leads: all}
	if limit > 0 && len(all) > limit {
		snap.Leads = all[:limit]
	}
	return snap
}

// sortByScore orders best first; unscored leads sink and ties keep
// collection order.
func sortByScore(leads []lead.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		a, b := leads[i].Score, leads[j].Score
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return *a > *b
	})
}

const defaultedPrefix = "defaulted: "

// withDefaultedNote replaces the scoring line in notes, keeping anything the
// user wrote.
func withDefaultedNote(notes string, defaulted []string) string {
	var lines []string
	for _, line := range strings.Split(notes, "\n") {
		if line == "" || strings.HasPrefix(line, defaultedPrefix) {
			continue
		}
		lines = append(lines, line)
	}
	if len(defaulted) > 0 {
		lines = append(lines, defaultedPrefix+strings.Join(defaulted, ", "))
	}
	return strings.Join(lines, "\n")
}
