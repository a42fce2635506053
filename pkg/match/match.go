// Package match provides query canonicalization and tag matching for the
// durable fallback search path. A single Aho-Corasick automaton built from
// note tags scans free-text queries in O(n), so fallback results can include
// notes whose tags appear in the query even when the substring search misses
// them.
package match

import (
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
)

// isJoiner returns true for punctuation that commonly appears inside tags
// and terms. These are preserved during canonicalization so multiword tags
// like "jean-luc" or "v1.2" stay coherent.
func isJoiner(r rune) bool {
	switch r {
	case '\'', '-', '.', '_', '/', '#', '&':
		return true
	default:
		return false
	}
}

// Canonicalize transforms text into a normalized form used for both pattern
// compilation and query scanning: lowercase, letters/digits/joiners kept,
// every other run of characters collapsed to a single space, trimmed.
// Patterns and haystacks MUST go through the same canonicalizer.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteByte(' ')
			lastWasSpace = true
		}
	}

	return strings.TrimSpace(out.String())
}

var englishStopwords = stopwords.MustGet("en")

// StripStopwords canonicalizes a query and drops common English words, so
// "how does graph theory work" narrows to "graph theory work". Returns the
// empty string when nothing survives.
func StripStopwords(query string) string {
	words := strings.Fields(Canonicalize(query))
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if englishStopwords.Contains(w) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// TagMatcher scans free text for known tags.
type TagMatcher struct {
	ac   *ahocorasick.Automaton
	tags []string // canonical pattern index -> original tag
}

// NewTagMatcher compiles an automaton from the given tags. Duplicate and
// empty tags (after canonicalization) are dropped.
func NewTagMatcher(tags []string) (*TagMatcher, error) {
	m := &TagMatcher{}

	seen := make(map[string]bool, len(tags))
	var patterns []string
	for _, tag := range tags {
		key := Canonicalize(tag)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		patterns = append(patterns, key)
		m.tags = append(m.tags, tag)
	}

	if len(patterns) == 0 {
		return m, nil
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	m.ac = automaton

	return m, nil
}

// Match returns the tags found in text, in first-occurrence order, each at
// most once. Only whole-token matches count: "go" does not match inside
// "gone".
func (m *TagMatcher) Match(text string) []string {
	if m.ac == nil {
		return nil
	}

	haystack := Canonicalize(text)
	raw := m.ac.FindAllOverlapping([]byte(haystack))

	var found []string
	emitted := make(map[int]bool, len(raw))
	for _, hit := range raw {
		if emitted[hit.PatternID] {
			continue
		}
		if !wholeToken(haystack, hit.Start, hit.End) {
			continue
		}
		emitted[hit.PatternID] = true
		found = append(found, m.tags[hit.PatternID])
	}

	return found
}

// wholeToken reports whether [start, end) sits on token boundaries of the
// canonicalized haystack, where the only separator is a space.
func wholeToken(s string, start, end int) bool {
	if start > 0 && s[start-1] != ' ' {
		return false
	}
	if end < len(s) && s[end] != ' ' {
		return false
	}
	return true
}
