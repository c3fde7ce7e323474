package assembler

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"

	"github.com/JakeFAU/fontsnatcher/internal/catalog"
	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
	"github.com/JakeFAU/fontsnatcher/internal/ranking"
)

// MatchMethod names the matching strategy reported to clients.
const MatchMethod = "feature-similarity"

// Match ranks catalog alternatives for req. Weight defaults to "400" and
// style to normal.
func (a *Assembler) Match(req MatchRequest) MatchResponse {
	family := strings.TrimSpace(req.Family)
	weight := strings.TrimSpace(req.Weight)
	if weight == "" {
		weight = "400"
	}
	style := req.Style
	if !style.Valid() {
		style = fontutil.StyleNormal
	}

	category := a.categoryOf(family)
	candidates := ranking.Rank(ranking.Query{
		Family:          family,
		Style:           style,
		Weight:          fontutil.ParseWeight(weight),
		SourceCategory:  category,
		ExcludeFamilies: []string{catalog.NormalizeFamilyKey(family)},
	}, a.catalog)

	alternatives := make([]MatchAlternative, 0, len(candidates))
	for _, c := range candidates {
		alternatives = append(alternatives, MatchAlternative{
			Family:      c.Family,
			Category:    c.Category,
			Similarity:  c.Score,
			Reason:      fmt.Sprintf("%d%% visual match", c.Score),
			DownloadURL: c.GoogleFontsURL,
		})
	}

	return MatchResponse{
		Original:     MatchOriginal{Family: family, Weight: weight, Style: style},
		Method:       MatchMethod,
		Features:     featureProfile(family, style, weight, category),
		Alternatives: alternatives,
	}
}

// featureProfile derives a deterministic placeholder profile. Jitter comes
// from an FNV-1a hash of the request so equal inputs give equal output.
func featureProfile(family string, style fontutil.Style, weight, category string) MatchFeatures {
	lower := strings.ToLower(family)
	w := averageWeight(weight)

	h := fnv.New32a()
	_, _ = h.Write([]byte(lower + ":" + string(style) + ":" + weight))
	sum := uint64(h.Sum32())
	jitter := func(offset uint64) float64 {
		return float64((sum+offset)%101) / 100
	}

	serif := category == catalog.CategorySerif
	mono := strings.Contains(lower, "mono") || strings.Contains(lower, "code")
	pick := func(cond bool, yes, no float64) float64 {
		if cond {
			return yes
		}
		return no
	}

	return MatchFeatures{
		WeightClass:    clamp(w / 900),
		WidthClass:     clamp(0.4 + jitter(17)*0.3),
		XHeightRatio:   clamp(0.45 + jitter(29)*0.2),
		CapHeightRatio: clamp(0.65 + jitter(43)*0.2),
		AscenderRatio:  clamp(0.85 + jitter(59)*0.15),
		DescenderRatio: clamp(0.18 + jitter(71)*0.2),
		AvgWidthRatio:  clamp(0.48 + jitter(83)*0.25),
		SerifScore:     pick(serif, 0.75, 0.18),
		ContrastRatio:  pick(serif, 0.24, 0.1),
		Roundness:      clamp(0.45 + jitter(97)*0.3),
		IsMonospace:    pick(mono, 1, 0),
		ItalicAngle:    pick(style == fontutil.StyleItalic, 0.22, 0),
		PanoseSerif:    pick(serif, 0.7, 0),
		PanoseWeight:   clamp(w / 900),
		Complexity:     clamp(0.25 + jitter(109)*0.3),
	}
}

// averageWeight is the mean of the numeric tokens in weight, or 400.
func averageWeight(weight string) float64 {
	var sum float64
	n := 0
	for _, piece := range strings.Fields(weight) {
		v, err := strconv.ParseFloat(piece, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 400
	}
	return sum / float64(n)
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
