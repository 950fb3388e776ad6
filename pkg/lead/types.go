package lead

import (
	"strings"
	"time"
)

// Category is the qualification state derived from a lead's score.
type Category string

const (
	CategoryQualified   Category = "qualified"
	CategoryUnqualified Category = "unqualified"
	CategoryUnscored    Category = "unscored"
)

// ParseCategory accepts the category names case-insensitively.
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryQualified:
		return CategoryQualified, true
	case CategoryUnqualified:
		return CategoryUnqualified, true
	case CategoryUnscored:
		return CategoryUnscored, true
	}
	return "", false
}

// Timeline is the stated purchase horizon.
type Timeline string

const (
	TimelineUnknown   Timeline = "unknown"
	TimelineImmediate Timeline = "immediate"
	TimelineShort     Timeline = "short"
	TimelineMedium    Timeline = "medium"
	TimelineLong      Timeline = "long"
)

var timelineAliases = map[string]Timeline{
	"":          TimelineUnknown,
	"unknown":   TimelineUnknown,
	"immediate": TimelineImmediate,
	"now":       TimelineImmediate,
	"short":     TimelineShort,
	"3_months":  TimelineShort,
	"3 months":  TimelineShort,
	"medium":    TimelineMedium,
	"6_months":  TimelineMedium,
	"6 months":  TimelineMedium,
	"long":      TimelineLong,
	"next_year": TimelineLong,
	"next year": TimelineLong,
}

// ParseTimeline maps the canonical names and the generator's aliases
// ("3_months", "6_months", "next_year") onto a Timeline.
func ParseTimeline(s string) (Timeline, bool) {
	t, ok := timelineAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Status is the lead's stage in the sales pipeline. It is set by people,
// never by scoring.
type Status string

const (
	StatusNew              Status = "new"
	StatusContacted        Status = "contacted"
	StatusMeetingScheduled Status = "meeting_scheduled"
	StatusProposalSent     Status = "proposal_sent"
	StatusClosedWon        Status = "closed_won"
	StatusClosedLost       Status = "closed_lost"
)

// Statuses lists the pipeline stages in order.
var Statuses = []Status{
	StatusNew,
	StatusContacted,
	StatusMeetingScheduled,
	StatusProposalSent,
	StatusClosedWon,
	StatusClosedLost,
}

// ParseStatus accepts stage names with underscores, spaces or dashes
// ("meeting scheduled", "closed-won").
func ParseStatus(s string) (Status, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for _, st := range Statuses {
		if Status(key) == st {
			return st, true
		}
	}
	return "", false
}

// Known lead sources. Anything else is rejected at the store boundary.
var Sources = []string{
	"website",
	"linkedin",
	"email_campaign",
	"referral",
	"cold_outreach",
	"trade_show",
	"webinar",
	"other",
}

// Lead is a single prospective customer record.
type Lead struct {
	ID int64 `json:"id"`

	// Profile
	Company       string   `json:"company"`
	ContactName   string   `json:"contact_name,omitempty"`
	Email         string   `json:"email,omitempty"`
	Title         string   `json:"title,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Source        string   `json:"source,omitempty"`
	CompanySize   *int     `json:"company_size,omitempty"`
	AnnualRevenue *float64 `json:"annual_revenue,omitempty"`
	Budget        *float64 `json:"budget,omitempty"`
	DecisionMaker *bool    `json:"decision_maker,omitempty"`
	PainPoints    []string `json:"pain_points,omitempty"`
	Timeline      Timeline `json:"timeline"`
	Tags          []string `json:"tags,omitempty"`

	// Pipeline
	Status        Status     `json:"status"`
	LastContacted *time.Time `json:"last_contacted,omitempty"`

	// Derived
	Score     *float64  `json:"score,omitempty"`
	Category  Category  `json:"category"`
	Notes     string    `json:"notes,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never share pointers or slices with
// the collection.
func (l Lead) Clone() Lead {
	out := l
	if l.CompanySize != nil {
		v := *l.CompanySize
		out.CompanySize = &v
	}
	if l.AnnualRevenue != nil {
		v := *l.AnnualRevenue
		out.AnnualRevenue = &v
	}
	if l.Budget != nil {
		v := *l.Budget
		out.Budget = &v
	}
	if l.DecisionMaker != nil {
		v := *l.DecisionMaker
		out.DecisionMaker = &v
	}
	if l.Score != nil {
		v := *l.Score
		out.Score = &v
	}
	if l.LastContacted != nil {
		v := *l.LastContacted
		out.LastContacted = &v
	}
	if l.PainPoints != nil {
		out.PainPoints = append([]string(nil), l.PainPoints...)
	}
	if l.Tags != nil {
		out.Tags = append([]string(nil), l.Tags...)
	}
	return out
}

// ScoreValue returns the score, or 0 when the lead was never scored.
func (l Lead) ScoreValue() float64 {
	if l.Score == nil {
		return 0
	}
	return *l.Score
}

// DisplayName is the contact name when known, otherwise the company.
func (l Lead) DisplayName() string {
	if l.ContactName != "" {
		return l.ContactName
	}
	return l.Company
}

// HasTag reports whether the lead carries tag (case-insensitive).
func (l Lead) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Ptr is a small helper for building optional attributes.
func Ptr[T any](v T) *T {
	return &v
}
