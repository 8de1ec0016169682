package fetchers

import (
	"strings"
	"time"
	"unicode"
)

// BuildQuery renders keyword plus filters in the boolean syntax most search
// APIs accept: include terms become an OR group and exclude terms are
// negated. Multi-word terms are quoted.
func BuildQuery(keyword string, include, exclude []string) string {
	parts := []string{quoteTerm(keyword)}

	var inc []string
	for _, term := range include {
		if t := strings.TrimSpace(term); t != "" {
			inc = append(inc, quoteTerm(t))
		}
	}
	switch len(inc) {
	case 0:
	case 1:
		parts = append(parts, inc[0])
	default:
		parts = append(parts, "("+strings.Join(inc, " OR ")+")")
	}

	for _, term := range exclude {
		if t := strings.TrimSpace(term); t != "" {
			parts = append(parts, "-"+quoteTerm(t))
		}
	}
	return strings.Join(parts, " ")
}

func quoteTerm(term string) string {
	term = strings.TrimSpace(term)
	if strings.ContainsFunc(term, unicode.IsSpace) && !strings.HasPrefix(term, `"`) {
		return `"` + term + `"`
	}
	return term
}

// MatchesFilters is the client-side soft filter for providers that cannot
// express include/exclude terms. Matching is case-insensitive substring.
func MatchesFilters(text string, include, exclude []string) bool {
	lower := strings.ToLower(text)
	for _, term := range exclude {
		if t := strings.ToLower(strings.TrimSpace(term)); t != "" && strings.Contains(lower, t) {
			return false
		}
	}

	hasInclude := false
	for _, term := range include {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		hasInclude = true
		if strings.Contains(lower, t) {
			return true
		}
	}
	return !hasInclude
}

func ContainsKeyword(text, keyword string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(strings.TrimSpace(keyword)))
}

// InWindow reports whether t falls inside the requested window. A zero bound
// is open.
func (o FetchOptions) InWindow(t time.Time) bool {
	if !o.StartDate.IsZero() && t.Before(o.StartDate) {
		return false
	}
	if !o.EndDate.IsZero() && t.After(o.EndDate) {
		return false
	}
	return true
}

// Window returns the explicit bounds, defaulting to the trailing hour.
func (o FetchOptions) Window() (time.Time, time.Time) {
	end := o.EndDate
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := o.StartDate
	if start.IsZero() {
		start = end.Add(-time.Hour)
	}
	return start.UTC(), end.UTC()
}

func joinText(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
