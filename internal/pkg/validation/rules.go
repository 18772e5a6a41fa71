package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation rule patterns
var (
	// Email validation pattern, checked before the domain gate
	EmailPattern = `^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`

	// GitHub usernames: alphanumerics and single hyphens, at most 39 characters
	GithubUsernamePattern = `^[a-zA-Z0-9](?:[a-zA-Z0-9]|-[a-zA-Z0-9]){0,38}$`

	BioMaxLength      = 500
	InterestMaxLength = 40
	MaxInterests      = 20
	TextMaxLength     = 2000
	TitleMaxLength    = 200
)

// CompiledPatterns caches compiled regex patterns
var CompiledPatterns = struct {
	Email          *regexp.Regexp
	GithubUsername *regexp.Regexp
}{
	Email:          regexp.MustCompile(EmailPattern),
	GithubUsername: regexp.MustCompile(GithubUsernamePattern),
}

// IsInstitutionalEmail reports whether email is well formed and ends with
// domain (e.g. "@unikorestudent.it"), ignoring case.
func IsInstitutionalEmail(email, domain string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if !CompiledPatterns.Email.MatchString(email) {
		return false
	}
	return strings.HasSuffix(email, strings.ToLower(domain))
}

// StringValidation checks one string field
type StringValidation struct {
	Value    string
	MinLen   int
	MaxLen   int
	Required bool
	Pattern  *regexp.Regexp
}

// NewStringValidation creates a new string validation
func NewStringValidation(value string) *StringValidation {
	return &StringValidation{
		Value:    value,
		Required: true,
	}
}

// WithMinLength sets minimum length
func (v *StringValidation) WithMinLength(min int) *StringValidation {
	v.MinLen = min
	return v
}

// WithMaxLength sets maximum length
func (v *StringValidation) WithMaxLength(max int) *StringValidation {
	v.MaxLen = max
	return v
}

// WithPattern sets regex pattern
func (v *StringValidation) WithPattern(pattern *regexp.Regexp) *StringValidation {
	v.Pattern = pattern
	return v
}

// WithRequired sets if field is required
func (v *StringValidation) WithRequired(required bool) *StringValidation {
	v.Required = required
	return v
}

// Validate performs validation. Lengths count runes.
func (v *StringValidation) Validate() bool {
	if v.Required && strings.TrimSpace(v.Value) == "" {
		return false
	}

	if !v.Required && v.Value == "" {
		return true
	}

	n := utf8.RuneCountInString(v.Value)
	if v.MinLen > 0 && n < v.MinLen {
		return false
	}
	if v.MaxLen > 0 && n > v.MaxLen {
		return false
	}

	if v.Pattern != nil && !v.Pattern.MatchString(v.Value) {
		return false
	}

	return true
}

// ParseInterests splits a comma separated list, trimming blanks and duplicates.
func ParseInterests(raw string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[strings.ToLower(part)] {
			continue
		}
		seen[strings.ToLower(part)] = true
		out = append(out, part)
	}
	return out
}
