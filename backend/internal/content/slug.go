package content

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	nonWordPattern   = regexp.MustCompile(`[^\w\s-]`)
	separatorPattern = regexp.MustCompile(`[-\s]+`)
)

// Slugify folds s to lowercase ASCII words joined by hyphens.
// Characters without an ASCII decomposition are dropped, so a title in a
// non-Latin script can produce an empty slug.
func Slugify(s string) string {
	decomposed := norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}

	slug := nonWordPattern.ReplaceAllString(strings.ToLower(b.String()), "")
	slug = separatorPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-_")
}

// ValidSlug reports whether s is already in the form Slugify produces
func ValidSlug(s string) bool {
	return s != "" && Slugify(s) == s
}

// SlugTaken reports whether candidate is already used by another row
type SlugTaken func(candidate string) (bool, error)

// UniqueSlug slugifies title and appends -1, -2, ... until taken reports the
// candidate as free. An empty slug falls back to fallback.
func UniqueSlug(title, fallback string, taken SlugTaken) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = fallback
	}

	candidate := base
	for i := 1; ; i++ {
		used, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
