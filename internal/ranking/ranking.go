// Package ranking scores open catalog families as substitutes for a given
// font using name, category, style, and weight similarity.
package ranking

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/JakeFAU/fontsnatcher/internal/catalog"
	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

// MaxAlternatives caps the number of candidates returned.
const MaxAlternatives = 5

// Component weights of the raw score.
const (
	nameWeight     = 0.27
	categoryWeight = 0.27
	styleWeight    = 0.16
	weightWeight   = 0.20
	monoWeight     = 0.10
)

// Query describes the font to replace.
type Query struct {
	Family string
	Style  fontutil.Style
	Weight fontutil.Weight
	// SourceCategory is the known category of the font; empty means infer it
	// from the family name.
	SourceCategory  string
	ExcludeFamilies []string
}

// Candidate is one suggested alternative. Score is 0-100.
type Candidate struct {
	Family         string `json:"family"`
	Score          int    `json:"score"`
	Category       string `json:"category"`
	GoogleFontsURL string `json:"googleFontsUrl"`
}

type scored struct {
	entry catalog.Entry
	raw   float64
}

// Rank returns up to MaxAlternatives candidates from c, best first, ties
// broken by family name. Excluded families never appear.
func Rank(q Query, c *catalog.Catalog) []Candidate {
	sourceCategory := q.SourceCategory
	if sourceCategory == "" {
		sourceCategory = InferCategory(q.Family)
	}
	sourceMono := monoRe.MatchString(normalizeFamily(q.Family))
	targetMin, targetMax := weightRange(q.Weight)

	excluded := make(map[string]struct{}, len(q.ExcludeFamilies))
	for _, f := range q.ExcludeFamilies {
		excluded[normalizeFamily(f)] = struct{}{}
	}

	ranked := make([]scored, 0, c.Len())
	for _, e := range c.Entries() {
		if _, skip := excluded[normalizeFamily(e.Family)]; skip {
			continue
		}
		mono := 0.5
		if sourceMono {
			mono = 0.15
			if e.Category == catalog.CategoryMonospace {
				mono = 1
			}
		}
		raw := nameScore(q.Family, e.Family)*nameWeight +
			categoryScore(sourceCategory, e.Category)*categoryWeight +
			styleScore(q.Style, e)*styleWeight +
			weightScore(targetMin, targetMax, e.Weights)*weightWeight +
			mono*monoWeight
		ranked = append(ranked, scored{entry: e, raw: raw})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].raw != ranked[j].raw {
			return ranked[i].raw > ranked[j].raw
		}
		return ranked[i].entry.Family < ranked[j].entry.Family
	})
	if len(ranked) > MaxAlternatives {
		ranked = ranked[:MaxAlternatives]
	}

	out := make([]Candidate, 0, len(ranked))
	if len(ranked) == 0 {
		return out
	}
	top := ranked[0].raw
	for _, s := range ranked {
		relative := 0.0
		if top > 0 {
			relative = s.raw / top
		}
		blended := clamp(s.raw*0.45 + relative*0.55)
		out = append(out, Candidate{
			Family:         s.entry.Family,
			Score:          int(math.Round(clamp(0.2+blended*0.78) * 100)),
			Category:       s.entry.Category,
			GoogleFontsURL: SpecimenURL(s.entry.Family),
		})
	}
	return out
}

// InferCategory guesses a category from keywords in a family name. An empty
// name yields an empty category.
func InferCategory(family string) string {
	normalized := normalizeFamily(family)
	switch {
	case normalized == "":
		return ""
	case monoRe.MatchString(normalized):
		return catalog.CategoryMonospace
	case scriptRe.MatchString(normalized):
		return catalog.CategoryHandwriting
	case serifRe.MatchString(normalized):
		return catalog.CategorySerif
	case displayRe.MatchString(normalized):
		return catalog.CategoryDisplay
	}
	return catalog.CategorySansSerif
}

// SpecimenURL links to the family's Google Fonts specimen page.
func SpecimenURL(family string) string {
	return "https://fonts.google.com/specimen/" + url.QueryEscape(family)
}

func categoryScore(source, candidate string) float64 {
	if source == "" {
		return 0.5
	}
	if source == candidate {
		return 1
	}
	pair := func(a, b string) bool {
		return (source == a && candidate == b) || (source == b && candidate == a)
	}
	switch {
	case pair(catalog.CategorySansSerif, catalog.CategoryDisplay):
		return 0.75
	case pair(catalog.CategorySerif, catalog.CategoryDisplay):
		return 0.55
	case pair(catalog.CategorySansSerif, catalog.CategoryHandwriting):
		return 0.45
	case pair(catalog.CategoryMonospace, catalog.CategorySansSerif):
		return 0.55
	}
	return 0.3
}

func styleScore(style fontutil.Style, e catalog.Entry) float64 {
	if e.SupportsStyle(style) {
		return 1
	}
	if style != fontutil.StyleNormal && e.SupportsStyle(fontutil.StyleNormal) {
		return 0.6
	}
	return 0.25
}

func weightScore(targetMin, targetMax float64, weights []int) float64 {
	if len(weights) == 0 {
		return 0.4
	}
	lo, hi := float64(weights[0]), float64(weights[0])
	for _, w := range weights[1:] {
		lo = math.Min(lo, float64(w))
		hi = math.Max(hi, float64(w))
	}
	if math.Max(targetMin, lo) <= math.Min(targetMax, hi) {
		return 1
	}

	gap := targetMin - hi
	if targetMax < lo {
		gap = lo - targetMax
	}
	switch {
	case gap <= 100:
		return 0.8
	case gap <= 200:
		return 0.6
	case gap <= 300:
		return 0.4
	}
	return 0.2
}

// weightRange reads a numeric weight or a "min max" range; anything else is
// treated as 400.
func weightRange(w fontutil.Weight) (float64, float64) {
	switch w.Kind {
	case fontutil.WeightNumber:
		return float64(w.Number), float64(w.Number)
	case fontutil.WeightRaw:
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, piece := range strings.Fields(w.Raw) {
			n, err := strconv.ParseFloat(piece, 64)
			if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
				continue
			}
			lo = math.Min(lo, n)
			hi = math.Max(hi, n)
		}
		if !math.IsInf(lo, 1) {
			return lo, hi
		}
	}
	return 400, 400
}
