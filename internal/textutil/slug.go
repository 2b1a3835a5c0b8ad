package textutil

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Slug is a parsed directory path of the form state/city[/service].
type Slug struct {
	State   string
	City    string
	Service string
}

// ErrInvalidSlug reports a slug without at least a state and a city segment.
var ErrInvalidSlug = errors.New("invalid slug")

// ParseSlug splits a directory slug. Leading and trailing slashes are ignored
// and segments are lower-cased.
func ParseSlug(value string) (Slug, error) {
	trimmed := strings.Trim(strings.TrimSpace(value), "/")
	parts := strings.Split(trimmed, "/")
	if trimmed == "" || len(parts) < 2 || len(parts) > 3 {
		return Slug{}, fmt.Errorf("%w: %q", ErrInvalidSlug, value)
	}
	for i, part := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(part))
		if parts[i] == "" {
			return Slug{}, fmt.Errorf("%w: empty segment in %q", ErrInvalidSlug, value)
		}
	}
	slug := Slug{State: parts[0], City: parts[1]}
	if len(parts) == 3 {
		slug.Service = parts[2]
	}
	return slug, nil
}

// String renders the slug back into its path form.
func (s Slug) String() string {
	if s.Service == "" {
		return s.State + "/" + s.City
	}
	return s.State + "/" + s.City + "/" + s.Service
}

// LocationLabel renders "City, State" for display.
func (s Slug) LocationLabel() string {
	return TitleFromSlug(s.City) + ", " + TitleFromSlug(s.State)
}

// TitleFromSlug turns "dubai-marina" into "Dubai Marina".
func TitleFromSlug(segment string) string {
	words := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Slugify lower-cases a display name and joins its alphanumeric runs with
// hyphens: "Teeth Whitening & Veneers" becomes "teeth-whitening-veneers".
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
