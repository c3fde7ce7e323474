package crawler

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

var familyQuoteRe = regexp.MustCompile(`["']`)

// Deduplicate keeps one source per (family, style, weight). Among duplicates
// the preferred source covers more of the preview text, then overlaps
// Latin-1, then has the better format, then the shorter URL. Output keeps
// the order in which each key was first seen.
func Deduplicate(fonts []fontutil.FontSource) []fontutil.FontSource {
	index := make(map[string]int, len(fonts))
	out := make([]fontutil.FontSource, 0, len(fonts))
	for _, f := range fonts {
		key := dedupKey(f)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, f)
			continue
		}
		if preferCandidate(out[i], f) {
			out[i] = f
		}
	}
	return out
}

func dedupKey(f fontutil.FontSource) string {
	return familyKey(f.Family) + "|" + string(f.Style) + "|" + weightKey(f.Weight)
}

func familyKey(family string) string {
	k := strings.ToLower(strings.TrimSpace(family))
	k = familyQuoteRe.ReplaceAllString(k, "")
	return fontutil.CollapseSpaces(k)
}

// weightKey canonicalizes a weight so "bold" and 700, or "100 900" and
// "100  900", land in the same bucket.
func weightKey(w fontutil.Weight) string {
	switch w.Kind {
	case fontutil.WeightUnset:
		return "400"
	case fontutil.WeightNumber:
		return strconv.Itoa(w.Number)
	}
	raw := strings.ToLower(strings.TrimSpace(w.Raw))
	switch raw {
	case "", "normal":
		return "400"
	case "bold", "bolder":
		return "700"
	case "lighter":
		return "300"
	}
	var nums []float64
	for _, part := range strings.Fields(raw) {
		if n, err := strconv.ParseFloat(part, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return fontutil.CollapseSpaces(raw)
	}
	lo, hi := nums[0], nums[0]
	for _, n := range nums[1:] {
		lo = math.Min(lo, n)
		hi = math.Max(hi, n)
	}
	if lo == hi {
		return formatNumber(lo)
	}
	return formatNumber(lo) + " " + formatNumber(hi)
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func preferCandidate(best, candidate fontutil.FontSource) bool {
	bestCovered, bestLatin := unicodeCoverage(best.UnicodeRange)
	candCovered, candLatin := unicodeCoverage(candidate.UnicodeRange)
	if candCovered != bestCovered {
		return candCovered > bestCovered
	}
	if candLatin != bestLatin {
		return candLatin
	}
	if bp, cp := best.Format.Priority(), candidate.Format.Priority(); bp != cp {
		return cp < bp
	}
	return comparableURLLength(candidate.URL) < comparableURLLength(best.URL)
}

func comparableURLLength(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return len(raw)
	}
	return len(u.Scheme + "://" + u.Host + u.EscapedPath())
}
