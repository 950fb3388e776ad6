package scoring

import (
	"math"
	"strings"

	"github.com/leadscope/leadscope/pkg/lead"
)

// FactorScore is one factor's contribution to the total.
type FactorScore struct {
	Factor    string
	Points    float64
	Max       float64
	Defaulted bool
}

// Result is the outcome of scoring a single lead.
type Result struct {
	Score     float64
	Category  lead.Category
	Factors   []FactorScore
	Defaulted []string
}

// Engine maps a lead's profile to a score and category. It holds no state
// besides its criteria and is safe for concurrent use.
type Engine struct {
	criteria Criteria
}

// NewEngine validates the criteria and builds an engine.
func NewEngine(c Criteria) (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Engine{criteria: c}, nil
}

// NewDefaultEngine builds an engine with DefaultCriteria.
func NewDefaultEngine() *Engine {
	return &Engine{criteria: DefaultCriteria()}
}

// Criteria returns the engine configuration.
func (e *Engine) Criteria() Criteria {
	return e.criteria
}

// Categorize maps a score to its category.
func (e *Engine) Categorize(score float64) lead.Category {
	if score >= e.criteria.QualifiedThreshold {
		return lead.CategoryQualified
	}
	return lead.CategoryUnqualified
}

// IsHot reports whether a scored lead clears the hot threshold.
func (e *Engine) IsHot(l lead.Lead) bool {
	return l.Score != nil && *l.Score >= e.criteria.HotThreshold
}

// Score computes the qualification score. Missing or malformed inputs score
// the factor minimum and are listed in Result.Defaulted; it never fails.
func (e *Engine) Score(l lead.Lead) Result {
	w := e.criteria.Weights

	var res Result
	add := func(factor string, max, level float64, ok bool) {
		fs := FactorScore{Factor: factor, Max: max}
		if ok {
			fs.Points = max * level
		} else {
			fs.Defaulted = true
			res.Defaulted = append(res.Defaulted, factor)
		}
		res.Factors = append(res.Factors, fs)
		res.Score += fs.Points
	}

	level, ok := companySizeLevel(l.CompanySize)
	add(FactorCompanySize, w.CompanySize, level, ok)

	level, ok = budgetLevel(l.Budget, l.AnnualRevenue)
	add(FactorBudget, w.Budget, level, ok)

	level, ok = authorityLevel(l.DecisionMaker, l.Title)
	add(FactorAuthority, w.Authority, level, ok)

	level, ok = needLevel(l.PainPoints)
	add(FactorNeed, w.Need, level, ok)

	level, ok = timelineLevel(l.Timeline)
	add(FactorTimeline, w.Timeline, level, ok)

	res.Score = clamp(math.Round(res.Score*100) / 100)
	res.Category = e.Categorize(res.Score)
	return res
}

func clamp(s float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, s))
}

func companySizeLevel(size *int) (float64, bool) {
	if size == nil || *size < 0 {
		return 0, false
	}
	switch n := *size; {
	case n >= 1000:
		return 1.0, true
	case n >= 500:
		return 0.85, true
	case n >= 100:
		return 0.70, true
	case n >= 50:
		return 0.55, true
	case n >= 10:
		return 0.40, true
	case n > 0:
		return 0.25, true
	}
	return 0, true
}

// revenueBudgetShare estimates a budget from annual revenue when none is stated.
const revenueBudgetShare = 0.05

func budgetLevel(budget, revenue *float64) (float64, bool) {
	var b float64
	switch {
	case budget != nil && validAmount(*budget):
		b = *budget
	case revenue != nil && validAmount(*revenue):
		b = *revenue * revenueBudgetShare
	default:
		return 0, false
	}

	switch {
	case b >= 100000:
		return 1.0, true
	case b >= 50000:
		return 0.80, true
	case b >= 25000:
		return 0.60, true
	case b >= 10000:
		return 0.40, true
	case b > 0:
		return 0.20, true
	}
	return 0, true
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func authorityLevel(decisionMaker *bool, title string) (float64, bool) {
	if decisionMaker != nil && *decisionMaker {
		return 1.0, true
	}

	t := strings.ToLower(title)
	switch {
	case t == "":
		if decisionMaker == nil {
			return 0, false
		}
		return 0.25, true
	case containsWord(t, "ceo", "cto", "cfo", "cmo", "coo", "president", "founder", "owner"):
		return 0.95, true
	case containsWord(t, "director", "vp", "vice president", "head"):
		return 0.80, true
	case strings.Contains(t, "manager"):
		return 0.65, true
	case strings.Contains(t, "senior"):
		return 0.50, true
	}
	return 0.35, true
}

func containsWord(s string, words ...string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '/' || r == '-' || r == '.' || r == '&'
	})
	for _, w := range words {
		if strings.Contains(w, " ") {
			if strings.Contains(s, w) {
				return true
			}
			continue
		}
		for _, f := range fields {
			if f == w {
				return true
			}
		}
	}
	return false
}

var highValueKeywords = []string{
	"efficiency", "cost", "revenue", "growth", "scale",
	"competition", "manual", "time", "error",
}

func needLevel(painPoints []string) (float64, bool) {
	var points []string
	for _, p := range painPoints {
		if strings.TrimSpace(p) != "" {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return 0, false
	}

	base := math.Min(float64(len(points))*0.25, 1.0)

	text := strings.ToLower(strings.Join(points, " "))
	matches := 0
	for _, kw := range highValueKeywords {
		if strings.Contains(text, kw) {
			matches++
		}
	}
	bonus := math.Min(float64(matches)*0.10, 0.30)

	return math.Min(base+bonus, 1.0), true
}

func timelineLevel(t lead.Timeline) (float64, bool) {
	switch t {
	case lead.TimelineImmediate:
		return 1.0, true
	case lead.TimelineShort:
		return 0.80, true
	case lead.TimelineMedium:
		return 0.60, true
	case lead.TimelineLong:
		return 0.30, true
	}
	return 0, false
}
