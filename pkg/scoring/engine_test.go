package scoring

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leadscope/leadscope/pkg/lead"
)

func fullLead() lead.Lead {
	return lead.Lead{
		Company:       "Initech",
		Title:         "VP Engineering",
		CompanySize:   lead.Ptr(500),
		Budget:        lead.Ptr(100000.0),
		DecisionMaker: lead.Ptr(true),
		PainPoints:    []string{"manual processes", "data silos"},
		Timeline:      lead.TimelineShort,
	}
}

func TestScoreFullProfile(t *testing.T) {
	e := NewDefaultEngine()
	res := e.Score(fullLead())

	// 21.25 size + 30 budget + 20 authority + 9 need + 8 timeline
	if res.Score != 88.25 {
		t.Fatalf("score = %v, want 88.25", res.Score)
	}
	if res.Category != lead.CategoryQualified {
		t.Fatalf("category = %q", res.Category)
	}
	if len(res.Defaulted) != 0 {
		t.Fatalf("nothing should default, got %v", res.Defaulted)
	}
	if len(res.Factors) != 5 {
		t.Fatalf("expected 5 factors, got %d", len(res.Factors))
	}
	if !e.IsHot(lead.Lead{Score: lead.Ptr(res.Score)}) {
		t.Fatalf("88.25 should clear the hot threshold")
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	e := NewDefaultEngine()
	l := fullLead()
	first := e.Score(l)
	for i := 0; i < 10; i++ {
		if got := e.Score(l); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestScoreMissingAttributesDefaultToMinimum(t *testing.T) {
	e := NewDefaultEngine()
	res := e.Score(lead.Lead{Company: "Empty Co", Timeline: lead.TimelineUnknown})

	if res.Score != MinScore {
		t.Fatalf("score = %v, want minimum", res.Score)
	}
	if res.Category != lead.CategoryUnqualified {
		t.Fatalf("unscoreable lead must be unqualified, got %q", res.Category)
	}
	want := []string{FactorCompanySize, FactorBudget, FactorAuthority, FactorNeed, FactorTimeline}
	if !reflect.DeepEqual(res.Defaulted, want) {
		t.Fatalf("defaulted = %v, want %v", res.Defaulted, want)
	}
}

func TestCategoryFollowsThreshold(t *testing.T) {
	e := NewDefaultEngine()
	tests := []struct {
		score float64
		want  lead.Category
	}{
		{0, lead.CategoryUnqualified},
		{59.99, lead.CategoryUnqualified},
		{60, lead.CategoryQualified},
		{100, lead.CategoryQualified},
	}
	for _, tc := range tests {
		if got := e.Categorize(tc.score); got != tc.want {
			t.Fatalf("Categorize(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestBudgetFallsBackToRevenue(t *testing.T) {
	e := NewDefaultEngine()
	withRevenue := e.Score(lead.Lead{Company: "R", AnnualRevenue: lead.Ptr(2000000.0)})
	for _, f := range withRevenue.Factors {
		if f.Factor == FactorBudget {
			// 5% of 2M = 100k -> full budget points
			if f.Defaulted || f.Points != 30 {
				t.Fatalf("budget factor = %+v", f)
			}
		}
	}
}

func TestAuthorityLevels(t *testing.T) {
	tests := []struct {
		title string
		dm    *bool
		want  float64
		ok    bool
	}{
		{"", nil, 0, false},
		{"", lead.Ptr(false), 0.25, true},
		{"Chief of Staff", lead.Ptr(false), 0.35, true},
		{"CEO", nil, 0.95, true},
		{"Director, Marketing", nil, 0.80, true},
		{"Sales Manager", nil, 0.65, true},
		{"Senior Engineer", nil, 0.50, true},
		{"Intern", lead.Ptr(true), 1.0, true},
	}
	for _, tc := range tests {
		got, ok := authorityLevel(tc.dm, tc.title)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("authorityLevel(%v, %q) = %v,%v want %v,%v", tc.dm, tc.title, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCriteriaValidate(t *testing.T) {
	c := DefaultCriteria()
	if err := c.Validate(); err != nil {
		t.Fatalf("default criteria invalid: %v", err)
	}

	c.Weights.Budget = 40
	if err := c.Validate(); err == nil {
		t.Fatalf("weights summing to 110 must be rejected")
	}

	c = DefaultCriteria()
	c.HotThreshold = 50
	if _, err := NewEngine(c); err == nil {
		t.Fatalf("hot threshold below qualified threshold must be rejected")
	}
}

func TestCriteriaValidateNamesFirstNegativeWeight(t *testing.T) {
	c := DefaultCriteria()
	c.Weights.Budget = -10
	c.Weights.Timeline = -5
	c.Weights.CompanySize = 70

	for i := 0; i < 20; i++ {
		err := c.Validate()
		if err == nil || !strings.Contains(err.Error(), FactorBudget) {
			t.Fatalf("run %d: expected the budget weight to be named, got %v", i, err)
		}
	}
}
