package lead

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawRecord is a loosely typed lead as produced by the generator or decoded
// from JSON: attribute name -> value.
type RawRecord map[string]any

var sizeBuckets = map[string]int{
	"micro":      1,
	"startup":    10,
	"small":      10,
	"smb":        10,
	"medium":     100,
	"mid-market": 100,
	"midmarket":  100,
	"large":      500,
	"enterprise": 1000,
}

// FromRaw converts a raw record into an unscored Lead. Values that are present
// but unreadable (a budget of "lots", a size of true) are dropped and their
// attribute names returned, so scoring can fall back to the factor minimum.
// Range checks are left to Validate.
func FromRaw(r RawRecord) (Lead, []string) {
	var (
		l       Lead
		ignored []string
	)
	l.Category = CategoryUnscored
	l.Timeline = TimelineUnknown
	l.Status = StatusNew

	l.Company = str(r, "company", "company_name")
	l.ContactName = str(r, "contact_name", "name")
	if l.ContactName == "" {
		l.ContactName = strings.TrimSpace(str(r, "first_name") + " " + str(r, "last_name"))
	}
	l.Email = str(r, "email")
	l.Domain = EmailDomain(l.Email)
	l.Title = str(r, "title")
	l.Phone = str(r, "phone")
	l.Source = strings.ToLower(str(r, "lead_source", "source"))
	l.Notes = str(r, "notes")
	// A status of "qualified" or "unqualified" is left to scoring.
	if v := str(r, "status", "stage"); v != "" {
		if st, ok := ParseStatus(v); ok {
			l.Status = st
		} else if _, ok := ParseCategory(v); !ok {
			ignored = append(ignored, "status")
		}
	}

	if v, ok := lookup(r, "company_size", "employees"); ok {
		if n, ok := toSize(v); ok {
			l.CompanySize = &n
		} else {
			ignored = append(ignored, "company_size")
		}
	}
	if v, ok := lookup(r, "annual_revenue", "revenue"); ok {
		if f, ok := toAmount(v); ok {
			l.AnnualRevenue = &f
		} else {
			ignored = append(ignored, "annual_revenue")
		}
	}
	if v, ok := lookup(r, "budget"); ok {
		if f, ok := toAmount(v); ok {
			l.Budget = &f
		} else {
			ignored = append(ignored, "budget")
		}
	}
	if v, ok := lookup(r, "decision_maker", "authority"); ok {
		if b, ok := toBool(v); ok {
			l.DecisionMaker = &b
		} else {
			ignored = append(ignored, "decision_maker")
		}
	}
	if v, ok := lookup(r, "pain_points", "need", "pain_point"); ok {
		if list, ok := toList(v); ok {
			l.PainPoints = list
		} else {
			ignored = append(ignored, "pain_points")
		}
	}
	if v, ok := lookup(r, "tags"); ok {
		if list, ok := toList(v); ok {
			l.Tags = list
		} else {
			ignored = append(ignored, "tags")
		}
	}
	if v, ok := lookup(r, "timeline"); ok {
		s, isStr := v.(string)
		t, known := ParseTimeline(s)
		if isStr && known {
			l.Timeline = t
		} else {
			ignored = append(ignored, "timeline")
		}
	}

	return l, ignored
}

func lookup(r RawRecord, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func str(r RawRecord, keys ...string) string {
	v, ok := lookup(r, keys...)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	}
	return ""
}

func toAmount(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		return parseAmount(n)
	}
	return 0, false
}

func toSize(v any) (int, bool) {
	if s, ok := v.(string); ok {
		key := strings.ToLower(strings.TrimSpace(s))
		if n, ok := sizeBuckets[key]; ok {
			return n, true
		}
		key = strings.TrimSuffix(key, "+")
		// "51-200" style buckets count as their lower bound.
		if lo, _, found := strings.Cut(key, "-"); found {
			key = strings.TrimSpace(lo)
		}
		n, err := strconv.Atoi(strings.ReplaceAll(key, ",", ""))
		return n, err == nil
	}
	f, ok := toAmount(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		return b != 0, b == 0 || b == 1
	case string:
		return parseBool(b)
	}
	return false, false
}

func toList(v any) ([]string, bool) {
	switch list := v.(type) {
	case string:
		if strings.Contains(list, ";") {
			return splitList(list), true
		}
		if s := strings.TrimSpace(list); s != "" {
			return []string{s}, true
		}
		return nil, true
	case []string:
		return append([]string(nil), list...), true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}
