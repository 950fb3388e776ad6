package lead

import (
	"sort"
	"strconv"
	"strings"
)

// Patch carries the attributes supplied to an update. Nil fields are left
// untouched.
type Patch struct {
	Company       *string   `json:"company,omitempty"`
	ContactName   *string   `json:"contact_name,omitempty"`
	Email         *string   `json:"email,omitempty"`
	Title         *string   `json:"title,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	Source        *string   `json:"source,omitempty"`
	CompanySize   *int      `json:"company_size,omitempty"`
	AnnualRevenue *float64  `json:"annual_revenue,omitempty"`
	Budget        *float64  `json:"budget,omitempty"`
	DecisionMaker *bool     `json:"decision_maker,omitempty"`
	PainPoints    *[]string `json:"pain_points,omitempty"`
	Timeline      *Timeline `json:"timeline,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
	Status        *Status   `json:"status,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
}

// Empty reports whether the patch supplies nothing.
func (p Patch) Empty() bool {
	return p == (Patch{})
}

// TouchesProfile reports whether any scoring input is supplied.
func (p Patch) TouchesProfile() bool {
	return p.CompanySize != nil || p.AnnualRevenue != nil || p.Budget != nil ||
		p.DecisionMaker != nil || p.PainPoints != nil || p.Timeline != nil || p.Title != nil
}

// Apply returns a copy of l with the supplied fields replaced. It does not
// validate; callers validate the result before committing it.
func (p Patch) Apply(l Lead) Lead {
	out := l.Clone()
	if p.Company != nil {
		out.Company = strings.TrimSpace(*p.Company)
	}
	if p.ContactName != nil {
		out.ContactName = strings.TrimSpace(*p.ContactName)
	}
	if p.Email != nil {
		out.Email = strings.TrimSpace(*p.Email)
		out.Domain = EmailDomain(out.Email)
	}
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Phone != nil {
		out.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Source != nil {
		out.Source = strings.ToLower(strings.TrimSpace(*p.Source))
	}
	if p.CompanySize != nil {
		out.CompanySize = Ptr(*p.CompanySize)
	}
	if p.AnnualRevenue != nil {
		out.AnnualRevenue = Ptr(*p.AnnualRevenue)
	}
	if p.Budget != nil {
		out.Budget = Ptr(*p.Budget)
	}
	if p.DecisionMaker != nil {
		out.DecisionMaker = Ptr(*p.DecisionMaker)
	}
	if p.PainPoints != nil {
		out.PainPoints = append([]string(nil), (*p.PainPoints)...)
	}
	if p.Timeline != nil {
		out.Timeline = *p.Timeline
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	return out
}

// ParseAssignments builds a Patch from textual key=value pairs, as typed in
// the chat ("edit lead 4 budget=25000 timeline=short"). List attributes take
// values separated by ';'.
func ParseAssignments(kv map[string]string) (Patch, error) {
	var p Patch

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := strings.TrimSpace(kv[key])
		switch CanonicalKey(key) {
		case "company":
			p.Company = Ptr(val)
		case "contact_name":
			p.ContactName = Ptr(val)
		case "email":
			p.Email = Ptr(val)
		case "title":
			p.Title = Ptr(val)
		case "phone":
			p.Phone = Ptr(val)
		case "source":
			p.Source = Ptr(val)
		case "notes":
			p.Notes = Ptr(val)
		case "company_size":
			n, ok := parseSize(val)
			if !ok {
				return Patch{}, &ValidationError{"company_size", "must be a whole number"}
			}
			p.CompanySize = Ptr(n)
		case "annual_revenue":
			f, ok := parseAmount(val)
			if !ok {
				return Patch{}, &ValidationError{"annual_revenue", "must be a number"}
			}
			p.AnnualRevenue = Ptr(f)
		case "budget":
			f, ok := parseAmount(val)
			if !ok {
				return Patch{}, &ValidationError{"budget", "must be a number"}
			}
			p.Budget = Ptr(f)
		case "decision_maker":
			b, ok := parseBool(val)
			if !ok {
				return Patch{}, &ValidationError{"decision_maker", "must be yes or no"}
			}
			p.DecisionMaker = Ptr(b)
		case "pain_points":
			p.PainPoints = Ptr(splitList(val))
		case "tags":
			p.Tags = Ptr(splitList(val))
		case "timeline":
			t, ok := ParseTimeline(val)
			if !ok {
				return Patch{}, &ValidationError{"timeline", "must be one of immediate, short, medium, long, unknown"}
			}
			p.Timeline = Ptr(t)
		case "status":
			st, ok := ParseStatus(val)
			if !ok {
				return Patch{}, &ValidationError{"status", "must be one of " + joinStatuses()}
			}
			p.Status = Ptr(st)
		default:
			return Patch{}, &ValidationError{key, "is not an editable attribute"}
		}
	}
	return p, nil
}

// CanonicalKey maps the attribute aliases accepted in chat and raw input
// ("size", "revenue", "need", ...) onto their canonical names.
func CanonicalKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.ReplaceAll(k, "-", "_")
	switch k {
	case "name", "contact":
		return "contact_name"
	case "size", "employees":
		return "company_size"
	case "revenue":
		return "annual_revenue"
	case "authority":
		return "decision_maker"
	case "need", "pain":
		return "pain_points"
	case "lead_source":
		return "source"
	case "stage":
		return "status"
	}
	return k
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	if s == "" {
		return 0, false
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult, s = 1e3, s[:len(s)-1]
	case strings.HasSuffix(s, "m"), strings.HasSuffix(s, "M"):
		mult, s = 1e6, s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f * mult, true
}

func parseSize(s string) (int, bool) {
	f, ok := parseAmount(s)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true, true
	case "false", "no", "n", "0":
		return false, true
	}
	return false, false
}
