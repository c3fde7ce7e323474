package ranking

import (
	"regexp"
	"strings"
)

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
	monoRe     = regexp.MustCompile(`\b(mono|code|console|terminal)\b`)
	scriptRe   = regexp.MustCompile(`\b(script|hand|cursive|brush)\b`)
	serifRe    = regexp.MustCompile(`\b(serif|roman|garamond|times|tiempos)\b`)
	displayRe  = regexp.MustCompile(`\b(display|headline|poster|impact|blackletter)\b`)
)

var stopWords = map[string]struct{}{
	"variable": {},
	"vf":       {},
	"roman":    {},
	"display":  {},
	"text":     {},
	"std":      {},
	"pro":      {},
	"web":      {},
}

// normalizeFamily lowercases and reduces a name to alphanumeric words.
func normalizeFamily(s string) string {
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(strings.ToLower(s), " "))
}

// canonicalFamily drops stop words unless that would leave nothing.
func canonicalFamily(s string) string {
	normalized := normalizeFamily(s)
	if normalized == "" {
		return ""
	}
	tokens := contentTokens(normalized)
	if len(tokens) == 0 {
		return normalized
	}
	return strings.Join(tokens, " ")
}

func familyTokens(s string) []string {
	return contentTokens(canonicalFamily(s))
}

func contentTokens(s string) []string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; !stop {
			out = append(out, f)
		}
	}
	return out
}

func jaccard(left, right []string) float64 {
	l := make(map[string]struct{}, len(left))
	for _, t := range left {
		l[t] = struct{}{}
	}
	r := make(map[string]struct{}, len(right))
	for _, t := range right {
		r[t] = struct{}{}
	}
	if len(l) == 0 && len(r) == 0 {
		return 1
	}

	intersection := 0
	for t := range l {
		if _, ok := r[t]; ok {
			intersection++
		}
	}
	union := len(l) + len(r) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// dice is the bigram Dice coefficient, counting repeated bigrams.
func dice(left, right string) float64 {
	if left == right {
		return 1
	}
	if len(left) < 2 || len(right) < 2 {
		return 0
	}

	counts := make(map[string]int, len(right)-1)
	for i := 0; i < len(right)-1; i++ {
		counts[right[i:i+2]]++
	}
	matches := 0
	for i := 0; i < len(left)-1; i++ {
		pair := left[i : i+2]
		if counts[pair] > 0 {
			matches++
			counts[pair]--
		}
	}
	return 2 * float64(matches) / float64(len(left)-1+len(right)-1)
}

// levenshteinSimilarity is 1 - distance/max(len).
func levenshteinSimilarity(left, right string) float64 {
	if left == right {
		return 1
	}
	if left == "" || right == "" {
		return 0
	}

	prev := make([]int, len(right)+1)
	curr := make([]int, len(right)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(left); i++ {
		curr[0] = i
		for j := 1; j <= len(right); j++ {
			cost := 1
			if left[i-1] == right[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j-1]+cost, curr[j-1]+1, prev[j]+1)
		}
		prev, curr = curr, prev
	}
	return 1 - float64(prev[len(right)])/float64(max(len(left), len(right)))
}

// nameScore blends token overlap, character similarity, and containment.
func nameScore(source, candidate string) float64 {
	tokenScore := jaccard(familyTokens(source), familyTokens(candidate))

	sc := canonicalFamily(source)
	cc := canonicalFamily(candidate)
	charScore := max(dice(sc, cc), levenshteinSimilarity(sc, cc))

	contains := 0.0
	if strings.Contains(sc, cc) || strings.Contains(cc, sc) {
		contains = 1
	}
	return clamp(tokenScore*0.45 + charScore*0.45 + contains*0.1)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
