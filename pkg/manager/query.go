package manager

import (
	"strings"

	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/leadscope/leadscope/pkg/storage"
)

// Filter selects leads in Query. Zero-valued fields do not constrain.
type Filter struct {
	Category      lead.Category
	Status        lead.Status
	MinScore      *float64
	MaxScore      *float64
	HotOnly       bool
	Company       string
	Domain        string
	Timeline      lead.Timeline
	Source        string
	DecisionMaker *bool
	Tag           string

	SortByScore bool // best first
	Limit       int  // <= 0 means no limit
}

// Query returns the leads matching f. A score range or HotOnly excludes
// unscored leads.
func (m *Manager) Query(f Filter) []lead.Lead {
	company := storage.NormalizeCompany(f.Company)
	engine := m.Engine()
	out := m.store.Find(func(l lead.Lead) bool {
		if f.Category != "" && l.Category != f.Category {
			return false
		}
		if f.Status != "" && l.Status != f.Status {
			return false
		}
		if f.MinScore != nil && (l.Score == nil || *l.Score < *f.MinScore) {
			return false
		}
		if f.MaxScore != nil && (l.Score == nil || *l.Score > *f.MaxScore) {
			return false
		}
		if f.HotOnly && !engine.IsHot(l) {
			return false
		}
		if company != "" && storage.NormalizeCompany(l.Company) != company {
			return false
		}
		if f.Domain != "" && !strings.EqualFold(l.Domain, f.Domain) {
			return false
		}
		if f.Timeline != "" && l.Timeline != f.Timeline {
			return false
		}
		if f.Source != "" && !strings.EqualFold(l.Source, f.Source) {
			return false
		}
		if f.DecisionMaker != nil && (l.DecisionMaker == nil || *l.DecisionMaker != *f.DecisionMaker) {
			return false
		}
		if f.Tag != "" && !l.HasTag(f.Tag) {
			return false
		}
		return true
	})

	if f.SortByScore {
		sortByScore(out)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Count is the number of leads matching f, ignoring its Limit.
func (m *Manager) Count(f Filter) int {
	f.Limit = 0
	f.SortByScore = false
	return len(m.Query(f))
}
