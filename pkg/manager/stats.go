package manager

import (
	"fmt"
	"math"

	"github.com/leadscope/leadscope/pkg/lead"
)

// Bucket is one band of the score distribution. Low is inclusive; High is
// exclusive except for the top band.
type Bucket struct {
	Label string
	Low   float64
	High  float64
	Count int
}

// Stats summarizes the collection at one point in time.
type Stats struct {
	Total          int
	ByCategory     map[lead.Category]int
	ByStatus       map[lead.Status]int
	Hot            int
	Scored         int
	AverageScore   float64
	MinScore       float64
	MaxScore       float64
	Distribution   []Bucket
	DecisionMakers int
	WithBudget     int
	AverageBudget  float64
	BySource       map[string]int
	Contacted      int

	// QualificationRate is the qualified share of all leads, in percent.
	QualificationRate float64
}

const bucketWidth = 20

// Statistics computes the aggregate view from the current collection.
func (m *Manager) Statistics() Stats {
	leads := m.store.All()
	engine := m.Engine()

	st := Stats{
		Total: len(leads),
		ByCategory: map[lead.Category]int{
			lead.CategoryQualified:   0,
			lead.CategoryUnqualified: 0,
			lead.CategoryUnscored:    0,
		},
		ByStatus: make(map[lead.Status]int, len(lead.Statuses)),
		BySource: make(map[string]int),
	}
	for _, s := range lead.Statuses {
		st.ByStatus[s] = 0
	}
	for low := 0; low < 100; low += bucketWidth {
		st.Distribution = append(st.Distribution, Bucket{
			Label: fmt.Sprintf("%d-%d", low, low+bucketWidth),
			Low:   float64(low),
			High:  float64(low + bucketWidth),
		})
	}

	var scoreSum, budgetSum float64
	st.MinScore = math.Inf(1)
	st.MaxScore = math.Inf(-1)
	for _, l := range leads {
		st.ByCategory[l.Category]++
		st.ByStatus[l.Status]++
		if l.LastContacted != nil {
			st.Contacted++
		}
		if engine.IsHot(l) {
			st.Hot++
		}
		if l.DecisionMaker != nil && *l.DecisionMaker {
			st.DecisionMakers++
		}
		if l.Budget != nil {
			st.WithBudget++
			budgetSum += *l.Budget
		}
		source := l.Source
		if source == "" {
			source = "unknown"
		}
		st.BySource[source]++

		if l.Score == nil {
			continue
		}
		s := *l.Score
		st.Scored++
		scoreSum += s
		st.MinScore = math.Min(st.MinScore, s)
		st.MaxScore = math.Max(st.MaxScore, s)

		idx := int(s / bucketWidth)
		if idx >= len(st.Distribution) {
			idx = len(st.Distribution) - 1
		}
		st.Distribution[idx].Count++
	}

	if st.Scored > 0 {
		st.AverageScore = math.Round(scoreSum/float64(st.Scored)*100) / 100
	} else {
		st.MinScore, st.MaxScore = 0, 0
	}
	if st.Total > 0 {
		rate := float64(st.ByCategory[lead.CategoryQualified]) / float64(st.Total) * 100
		st.QualificationRate = math.Round(rate*100) / 100
	}
	if st.WithBudget > 0 {
		st.AverageBudget = budgetSum / float64(st.WithBudget)
	}
	return st
}
