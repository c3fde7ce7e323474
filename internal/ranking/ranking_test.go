package ranking

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/fontsnatcher/internal/catalog"
	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load()
	require.NoError(t, err)
	return c
}

func TestRankInvariants(t *testing.T) {
	t.Parallel()

	c := loadCatalog(t)
	queries := []Query{
		{Family: "Proxima Nova", Style: fontutil.StyleNormal, Weight: fontutil.NumberWeight(400)},
		{Family: "Inter Variable", Style: fontutil.StyleItalic, Weight: fontutil.RawWeight("100 900"), ExcludeFamilies: []string{"inter"}},
		{Family: "Tiempos Headline", Style: fontutil.StyleNormal, Weight: fontutil.NumberWeight(700), ExcludeFamilies: []string{"Playfair  Display"}},
		{Family: "", Style: fontutil.StyleOblique},
	}

	for _, q := range queries {
		got := Rank(q, c)
		require.LessOrEqual(t, len(got), MaxAlternatives)
		require.NotEmpty(t, got)
		for i, cand := range got {
			for _, ex := range q.ExcludeFamilies {
				require.NotEqual(t, normalizeFamily(ex), normalizeFamily(cand.Family))
			}
			require.GreaterOrEqual(t, cand.Score, 20)
			require.LessOrEqual(t, cand.Score, 100)
			if i > 0 {
				require.LessOrEqual(t, cand.Score, got[i-1].Score)
			}
		}
	}
}

func TestRankExactFamilyScoresBelowSaturation(t *testing.T) {
	t.Parallel()

	got := Rank(Query{Family: "Inter", Style: fontutil.StyleNormal, Weight: fontutil.NumberWeight(400)}, loadCatalog(t))
	require.Equal(t, "Inter", got[0].Family)
	// raw 0.95, relative 1: round((0.2 + (0.95*0.45 + 0.55) * 0.78) * 100)
	require.Equal(t, 96, got[0].Score)
	require.Equal(t, "https://fonts.google.com/specimen/Inter", got[0].GoogleFontsURL)
}

func TestRankPrefersMonospaceForMonoSources(t *testing.T) {
	t.Parallel()

	got := Rank(Query{Family: "Berkeley Mono", Style: fontutil.StyleNormal, Weight: fontutil.NumberWeight(400)}, loadCatalog(t))
	require.Len(t, got, MaxAlternatives)
	for _, cand := range got {
		require.Equal(t, catalog.CategoryMonospace, cand.Category, cand.Family)
	}
}

func TestRankTieBreaksAlphabetically(t *testing.T) {
	t.Parallel()

	entry := func(family string) catalog.Entry {
		return catalog.Entry{
			Family:   family,
			Category: catalog.CategorySerif,
			Styles:   []fontutil.Style{fontutil.StyleNormal},
			Weights:  []int{400},
		}
	}
	c := catalog.New([]catalog.Entry{entry("Zeta"), entry("Alpha"), entry("Mu")})

	got := Rank(Query{Style: fontutil.StyleNormal}, c)
	require.Equal(t, []string{"Alpha", "Mu", "Zeta"}, []string{got[0].Family, got[1].Family, got[2].Family})
	require.Equal(t, got[0].Score, got[2].Score)
}

func TestRankEmptyCatalog(t *testing.T) {
	t.Parallel()

	got := Rank(Query{Family: "Inter"}, catalog.New(nil))
	require.NotNil(t, got)
	require.Empty(t, got)

	got = Rank(Query{Family: "Inter"}, nil)
	require.Empty(t, got)
}

func TestInferCategory(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                 "",
		"Berkeley Mono":    catalog.CategoryMonospace,
		"Source Code Pro":  catalog.CategoryMonospace,
		"Brush Script":     catalog.CategoryHandwriting,
		"Times New Roman":  catalog.CategorySerif,
		"Tiempos Headline": catalog.CategorySerif,
		"GT Super Display": catalog.CategoryDisplay,
		"Proxima Nova":     catalog.CategorySansSerif,
		"Monolith":         catalog.CategorySansSerif,
	}
	for family, want := range tests {
		require.Equal(t, want, InferCategory(family), family)
	}
}

func TestCategoryScore(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0.5, categoryScore("", catalog.CategorySerif), 1e-9)
	require.InDelta(t, 1.0, categoryScore(catalog.CategorySerif, catalog.CategorySerif), 1e-9)
	require.InDelta(t, 0.75, categoryScore(catalog.CategoryDisplay, catalog.CategorySansSerif), 1e-9)
	require.InDelta(t, 0.55, categoryScore(catalog.CategorySerif, catalog.CategoryDisplay), 1e-9)
	require.InDelta(t, 0.45, categoryScore(catalog.CategoryHandwriting, catalog.CategorySansSerif), 1e-9)
	require.InDelta(t, 0.55, categoryScore(catalog.CategorySansSerif, catalog.CategoryMonospace), 1e-9)
	require.InDelta(t, 0.3, categoryScore(catalog.CategoryMonospace, catalog.CategorySerif), 1e-9)
}

func TestWeightAndStyleScores(t *testing.T) {
	t.Parallel()

	lo, hi := weightRange(fontutil.RawWeight("900 100"))
	require.InDelta(t, 100.0, lo, 1e-9)
	require.InDelta(t, 900.0, hi, 1e-9)
	lo, hi = weightRange(fontutil.RawWeight("bold"))
	require.InDelta(t, 400.0, lo, 1e-9)
	require.InDelta(t, 400.0, hi, 1e-9)
	lo, _ = weightRange(fontutil.Weight{})
	require.InDelta(t, 400.0, lo, 1e-9)

	require.InDelta(t, 0.4, weightScore(400, 400, nil), 1e-9)
	require.InDelta(t, 1.0, weightScore(100, 900, []int{700}), 1e-9)
	require.InDelta(t, 0.8, weightScore(500, 500, []int{300, 400}), 1e-9)
	require.InDelta(t, 0.6, weightScore(100, 100, []int{300}), 1e-9)
	require.InDelta(t, 0.4, weightScore(700, 700, []int{400}), 1e-9)
	require.InDelta(t, 0.2, weightScore(900, 900, []int{400, 500}), 1e-9)

	normalOnly := catalog.Entry{Styles: []fontutil.Style{fontutil.StyleNormal}}
	italicOnly := catalog.Entry{Styles: []fontutil.Style{fontutil.StyleItalic}}
	require.InDelta(t, 1.0, styleScore(fontutil.StyleNormal, normalOnly), 1e-9)
	require.InDelta(t, 0.6, styleScore(fontutil.StyleItalic, normalOnly), 1e-9)
	require.InDelta(t, 0.25, styleScore(fontutil.StyleNormal, italicOnly), 1e-9)
}

func TestNameSimilarity(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0.25, dice("night", "nacht"), 1e-9)
	require.InDelta(t, 1-3.0/7.0, levenshteinSimilarity("kitten", "sitting"), 1e-9)
	require.InDelta(t, 1.0, jaccard(nil, nil), 1e-9)
	require.Equal(t, "inter", canonicalFamily("Inter Variable"))
	require.Equal(t, "display pro", canonicalFamily("Display Pro"))
	require.Empty(t, familyTokens("Display Pro"))

	require.InDelta(t, 1.0, nameScore("Inter Display", "Inter"), 1e-9)
	require.Greater(t, nameScore("Proxima Nova", "Proza Libre"), nameScore("Proxima Nova", "Lobster"))
}

func TestSpecimenURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://fonts.google.com/specimen/Exo+2", SpecimenURL("Exo 2"))
	require.Equal(t, "https://fonts.google.com/specimen/Source+Sans+3", SpecimenURL("Source Sans 3"))
}
