package unit

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugPlaceholder is used when a name normalizes to nothing.
const slugPlaceholder = "unit"

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// asciiFold decomposes accented characters and drops everything outside
// ASCII, so "Zuidoost Ö" becomes "Zuidoost O".
func asciiFold() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
}

// Slugify turns a display name into an identifier: diacritics stripped,
// runs of non-alphanumerics collapsed to "_", trimmed and lower-cased.
func Slugify(name string) string {
	folded, _, err := transform.String(asciiFold(), name)
	if err != nil {
		folded = name
	}
	slug := strings.ToLower(strings.Trim(nonAlnum.ReplaceAllString(folded, "_"), "_"))
	if slug == "" {
		return slugPlaceholder
	}
	return slug
}

// UniqueIDs slugifies names in order. The first occurrence of a slug keeps
// it; later ones get _2, _3, ... A suffixed id that is already taken moves
// on to the next free suffix.
func UniqueIDs(names []string) []string {
	seen := make(map[string]int, len(names))
	used := make(map[string]bool, len(names))
	ids := make([]string, 0, len(names))
	for _, name := range names {
		base := Slugify(name)
		n := seen[base]
		id := base
		if n > 0 || used[id] {
			for {
				n++
				id = fmt.Sprintf("%s_%d", base, n)
				if n > 1 && !used[id] {
					break
				}
			}
		}
		seen[base] = max(n, 1)
		used[id] = true
		ids = append(ids, id)
	}
	return ids
}
