package rag

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// Language models tend to normalize foreign or unusual proper nouns.
// This pass forces the answer back to the exact spellings present in the
// retrieved context. It is a deterministic, stateless text transform.
const (
	// spellingMatchThreshold is the minimum sequence-alignment ratio for
	// a span to be replaced by a context spelling. Balances correcting
	// minor diacritic/letter drift against rewriting genuinely distinct
	// names.
	spellingMatchThreshold = 0.86
	// minNormalizedLength is the shortest normalized key considered,
	// avoiding false positives on short names.
	minNormalizedLength = 8
	// maxSpellingHints caps how many candidate phrases are extracted
	// from the context.
	maxSpellingHints = 20
)

var (
	// Two or more capitalized words, optionally with a parenthetical
	// capitalized aside after the first.
	hintPattern = regexp.MustCompile(`\b\p{Lu}[\p{L}'-]+(?:\s+\(\p{Lu}[\p{L}'-]+\))?(?:\s+\p{Lu}[\p{L}'-]+)+\b`)
	// Capitalized spans of 2-5 words inside a generated answer.
	spanPattern       = regexp.MustCompile(`\b\p{Lu}[\p{L}'-]+(?:\s+\p{Lu}[\p{L}'-]+){1,4}\b`)
	parenPattern      = regexp.MustCompile(`\([^)]*\)`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// ExtractSpellingHints pulls candidate proper-noun phrases out of the
// context text, de-duplicated, in first-seen order, capped at
// maxSpellingHints.
func ExtractSpellingHints(context string) []string {
	seen := make(map[string]struct{})
	var hints []string
	for _, match := range hintPattern.FindAllString(context, -1) {
		value := strings.TrimSpace(whitespacePattern.ReplaceAllString(match, " "))
		if utf8.RuneCountInString(value) < 4 {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		hints = append(hints, value)
		if len(hints) >= maxSpellingHints {
			break
		}
	}
	return hints
}

// CorrectAnswerSpelling replaces near-miss spellings in the answer with
// the exact context spelling of the best-matching hint.
func CorrectAnswerSpelling(answer string, hints []string) string {
	type candidate struct {
		variant    string
		normalized string
	}
	var candidates []candidate
	for _, hint := range hints {
		for _, variant := range nameVariants(hint) {
			normalized := normalizeForMatch(variant)
			if len(normalized) >= minNormalizedLength {
				candidates = append(candidates, candidate{variant: variant, normalized: normalized})
			}
		}
	}
	if len(candidates) == 0 {
		return answer
	}

	return spanPattern.ReplaceAllStringFunc(answer, func(span string) string {
		normalizedSpan := normalizeForMatch(span)
		if len(normalizedSpan) < minNormalizedLength {
			return span
		}
		best := span
		bestScore := 0.0
		for _, c := range candidates {
			if score := similarityRatio(normalizedSpan, c.normalized); score > bestScore {
				bestScore = score
				best = c.variant
			}
		}
		if bestScore >= spellingMatchThreshold {
			return best
		}
		return span
	})
}

// nameVariants returns the hint itself plus a parenthetical-stripped
// variant when they differ.
func nameVariants(value string) []string {
	variants := []string{value}
	stripped := parenPattern.ReplaceAllString(value, "")
	stripped = strings.TrimSpace(whitespacePattern.ReplaceAllString(stripped, " "))
	if stripped != "" && stripped != value {
		variants = append(variants, stripped)
	}
	return variants
}

// normalizeForMatch strips everything but lowercase ASCII letters and
// digits, so diacritics and punctuation do not dominate the comparison.
func normalizeForMatch(value string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, strings.ToLower(value))
}

// similarityRatio is a sequence-alignment ratio in [0,1], computed the
// same way difflib's SequenceMatcher does.
func similarityRatio(a, b string) float64 {
	return difflib.NewMatcher(splitChars(a), splitChars(b)).Ratio()
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
