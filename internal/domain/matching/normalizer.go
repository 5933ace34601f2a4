// Package matching holds the pure parts of the menu matching engine:
// normalization, candidate retrieval, scoring and acceptance policy.
package matching

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultStoplist holds filler tokens (sizes, promo labels) dropped from keys.
var DefaultStoplist = []string{
	"세트", "특", "大", "中", "小", "대", "중", "소",
	"신메뉴", "추천", "인기", "best", "new", "hot",
}

// DefaultStripPatterns remove bracketed asides, portion counts, weights and prices.
// Patterns run on case-folded text, so units are lowercase. A pattern must not
// match across whitespace, otherwise a second pass could find new matches.
var DefaultStripPatterns = []string{
	`\([^)]*\)`,
	`\[[^\]]*\]`,
	`<[^>]*>`,
	`\d+(?:인분|개입)`,
	`\d+인(?:[^\pL]|$)`,
	`\d+(?:\.\d+)?(?:kg|g|ml|l)(?:[^\pL]|$)`,
	`[\d,]+원`,
}

// Normalizer canonicalizes raw menu names into comparable keys.
// It is safe for concurrent use.
type Normalizer struct {
	patterns []*regexp.Regexp
	stoplist map[string]struct{}
}

// NewNormalizer compiles the strip patterns and prepares the stoplist.
func NewNormalizer(stoplist, stripPatterns []string) (*Normalizer, error) {
	n := &Normalizer{
		patterns: make([]*regexp.Regexp, 0, len(stripPatterns)),
		stoplist: make(map[string]struct{}, len(stoplist)),
	}

	for _, p := range stripPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling strip pattern %q: %w", p, err)
		}
		n.patterns = append(n.patterns, re)
	}

	for _, token := range stoplist {
		for _, t := range strings.Fields(separate(fold(token))) {
			n.stoplist[t] = struct{}{}
		}
	}

	return n, nil
}

// NewDefaultNormalizer returns a normalizer with the built-in stoplist and patterns.
func NewDefaultNormalizer() *Normalizer {
	n, err := NewNormalizer(DefaultStoplist, DefaultStripPatterns)
	if err != nil {
		panic(err) // built-in patterns are constant
	}
	return n
}

// Normalize returns the matching key for raw. It never fails and
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(raw string) string {
	s := fold(raw)
	for _, re := range n.patterns {
		s = re.ReplaceAllString(s, " ")
	}
	s = separate(s)

	tokens := strings.Fields(s)
	kept := tokens[:0]
	for _, t := range tokens {
		if _, stop := n.stoplist[t]; !stop {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

// IsStopword reports whether token is dropped by the stoplist.
func (n *Normalizer) IsStopword(token string) bool {
	_, ok := n.stoplist[token]
	return ok
}

// fold applies compatibility normalization around Unicode case folding.
// cases.Caser is stateful, so a fresh one is used per call.
func fold(s string) string {
	return norm.NFKC.String(cases.Fold().String(norm.NFKC.String(s)))
}

// separate turns every rune that is not a letter, number or mark into a space.
func separate(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
			return r
		}
		return ' '
	}, s)
}

// Compact removes the separators from a normalized key.
func Compact(key string) string {
	return strings.ReplaceAll(key, " ", "")
}

// Tokens splits a normalized key into its tokens.
func Tokens(key string) []string {
	return strings.Fields(key)
}
