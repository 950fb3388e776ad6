package scoring

import (
	"fmt"
	"math"
)

// Factor names, also used in the "defaulted:" note written on leads.
const (
	FactorCompanySize = "company_size"
	FactorBudget      = "budget"
	FactorAuthority   = "authority"
	FactorNeed        = "need"
	FactorTimeline    = "timeline"
)

// Weights are the maximum points each factor can contribute. They must sum
// to MaxScore.
type Weights struct {
	CompanySize float64 `mapstructure:"company_size" json:"company_size"`
	Budget      float64 `mapstructure:"budget" json:"budget"`
	Authority   float64 `mapstructure:"authority" json:"authority"`
	Need        float64 `mapstructure:"need" json:"need"`
	Timeline    float64 `mapstructure:"timeline" json:"timeline"`
}

type namedWeight struct {
	name   string
	weight float64
}

// factors lists the weights in scoring order.
func (w Weights) factors() []namedWeight {
	return []namedWeight{
		{FactorCompanySize, w.CompanySize},
		{FactorBudget, w.Budget},
		{FactorAuthority, w.Authority},
		{FactorNeed, w.Need},
		{FactorTimeline, w.Timeline},
	}
}

func (w Weights) total() float64 {
	return w.CompanySize + w.Budget + w.Authority + w.Need + w.Timeline
}

// Criteria configures the engine.
type Criteria struct {
	Weights            Weights `mapstructure:"weights" json:"weights"`
	QualifiedThreshold float64 `mapstructure:"qualified_threshold" json:"qualified_threshold"`
	HotThreshold       float64 `mapstructure:"hot_threshold" json:"hot_threshold"`
}

const (
	MinScore = 0.0
	MaxScore = 100.0

	DefaultQualifiedThreshold = 60.0
	DefaultHotThreshold       = 85.0
)

// DefaultCriteria splits the 100 points 25/30/20/15/10 across size, budget,
// authority, need and timeline.
func DefaultCriteria() Criteria {
	return Criteria{
		Weights: Weights{
			CompanySize: 25,
			Budget:      30,
			Authority:   20,
			Need:        15,
			Timeline:    10,
		},
		QualifiedThreshold: DefaultQualifiedThreshold,
		HotThreshold:       DefaultHotThreshold,
	}
}

// Validate rejects weights that do not add up to MaxScore and thresholds
// outside the score range.
func (c Criteria) Validate() error {
	for _, f := range c.Weights.factors() {
		if f.weight < 0 || math.IsNaN(f.weight) {
			return fmt.Errorf("scoring weight %s must not be negative", f.name)
		}
	}
	if math.Abs(c.Weights.total()-MaxScore) > 0.001 {
		return fmt.Errorf("scoring weights must sum to %.0f, got %.2f", MaxScore, c.Weights.total())
	}
	if c.QualifiedThreshold < MinScore || c.QualifiedThreshold > MaxScore {
		return fmt.Errorf("qualified threshold %.2f outside %.0f-%.0f", c.QualifiedThreshold, MinScore, MaxScore)
	}
	if c.HotThreshold < c.QualifiedThreshold || c.HotThreshold > MaxScore {
		return fmt.Errorf("hot threshold %.2f must be between the qualified threshold and %.0f", c.HotThreshold, MaxScore)
	}
	return nil
}
