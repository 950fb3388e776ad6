package lead

import (
	"math"
	"net/mail"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// Validate checks every attribute constraint and returns the first violation.
func Validate(l Lead) error {
	if strings.TrimSpace(l.Company) == "" {
		return &ValidationError{"company", "is required"}
	}
	if l.Email != "" {
		if _, err := mail.ParseAddress(l.Email); err != nil {
			return &ValidationError{"email", "is invalid"}
		}
	}
	if l.CompanySize != nil && *l.CompanySize < 0 {
		return &ValidationError{"company_size", "must not be negative"}
	}
	if err := checkAmount("budget", l.Budget); err != nil {
		return err
	}
	if err := checkAmount("annual_revenue", l.AnnualRevenue); err != nil {
		return err
	}
	if _, ok := ParseTimeline(string(l.Timeline)); !ok {
		return &ValidationError{"timeline", "must be one of immediate, short, medium, long, unknown"}
	}
	if l.Source != "" && !isKnownSource(l.Source) {
		return &ValidationError{"source", "must be one of " + strings.Join(Sources, ", ")}
	}
	if l.Status != "" {
		if st, ok := ParseStatus(string(l.Status)); !ok || st != l.Status {
			return &ValidationError{"status", "must be one of " + joinStatuses()}
		}
	}
	if l.Score != nil && (*l.Score < 0 || *l.Score > 100 || math.IsNaN(*l.Score)) {
		return &ValidationError{"score", "must be between 0 and 100"}
	}
	return checkCategory(l)
}

// checkCategory enforces that a lead is unscored exactly when it has no
// score. An empty category counts as unscored.
func checkCategory(l Lead) error {
	switch l.Category {
	case "", CategoryUnscored:
		if l.Score != nil {
			return &ValidationError{"category", "is unscored but the lead has a score"}
		}
	case CategoryQualified, CategoryUnqualified:
		if l.Score == nil {
			return &ValidationError{"category", "is " + string(l.Category) + " but the lead has no score"}
		}
	default:
		return &ValidationError{"category", "must be qualified, unqualified or unscored"}
	}
	return nil
}

func joinStatuses() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func checkAmount(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return &ValidationError{field, "must be a number"}
	}
	if *v < 0 {
		return &ValidationError{field, "must not be negative"}
	}
	return nil
}

func isKnownSource(s string) bool {
	for _, known := range Sources {
		if s == known {
			return true
		}
	}
	return false
}

// EmailDomain returns the registrable domain of an email address
// ("jane@mail.acme.co.uk" -> "acme.co.uk"), or "" when it cannot be derived.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	host := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(email[at+1:]), "."))
	if !strings.Contains(host, ".") {
		return ""
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return host
	}
	return domain
}
