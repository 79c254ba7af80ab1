// Package slugs derives URL-safe identifiers from display names.
package slugs

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Fallback is used when a name contains nothing that survives slugification.
const Fallback = "genre"

// maxAttempts bounds the suffix search so a broken lookup cannot spin forever.
const maxAttempts = 10000

// Slugify transliterates name to ASCII, lowercases it and collapses every run of
// non-alphanumeric characters into a single hyphen.
func Slugify(name string) string {
	ascii := unidecode.Unidecode(name)

	var b strings.Builder
	b.Grow(len(ascii))
	pendingDash := false
	for _, r := range strings.ToLower(ascii) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	if b.Len() == 0 {
		return Fallback
	}
	return b.String()
}

// TakenFunc reports whether a candidate slug is already in use.
type TakenFunc func(ctx context.Context, candidate string) (bool, error)

// Allocate returns the slug for name, appending -1, -2, ... until taken reports
// the candidate is free.
func Allocate(ctx context.Context, name string, taken TakenFunc) (string, error) {
	base := Slugify(name)
	candidate := base
	for i := 1; i <= maxAttempts; i++ {
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("allocate slug for %q: no free suffix after %d attempts", name, maxAttempts)
}
