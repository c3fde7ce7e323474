package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

func font(family, url string, format fontutil.Format, weight fontutil.Weight, unicodeRange string) fontutil.FontSource {
	return fontutil.FontSource{
		Family:       family,
		URL:          url,
		Format:       format,
		Style:        fontutil.StyleNormal,
		Weight:       weight,
		UnicodeRange: unicodeRange,
	}
}

func TestDeduplicatePrefersCoverageThenFormat(t *testing.T) {
	t.Parallel()

	fonts := []fontutil.FontSource{
		font("Inter", "https://x.test/inter-cyrillic.woff2", fontutil.FormatWOFF2, fontutil.NumberWeight(400), "U+0400-045F"),
		font("Inter", "https://x.test/inter-latin.woff", fontutil.FormatWOFF, fontutil.NumberWeight(400), "U+0000-00FF"),
		font("'Inter'", "https://x.test/inter-latin.woff2", fontutil.FormatWOFF2, fontutil.ParseWeight("normal"), "U+0000-00FF"),
		font("Inter", "https://x.test/inter.ttf", fontutil.FormatTTF, fontutil.Weight{}, "U+0000-00FF"),
	}
	out := Deduplicate(fonts)
	require.Len(t, out, 1)
	require.Equal(t, "https://x.test/inter-latin.woff2", out[0].URL)
}

func TestDeduplicatePrefersRangedFaceOverUnranged(t *testing.T) {
	t.Parallel()

	latin := font("Brand", "https://c.example/latin.woff", fontutil.FormatWOFF, fontutil.NumberWeight(400), "U+0000-00FF")
	unranged := font("Brand", "https://c.example/norange.woff2", fontutil.FormatWOFF2, fontutil.NumberWeight(400), "")

	for _, order := range [][]fontutil.FontSource{{latin, unranged}, {unranged, latin}} {
		out := Deduplicate(order)
		require.Len(t, out, 1)
		require.Equal(t, latin.URL, out[0].URL)
	}
}

func TestDeduplicateKeysOnStyleAndWeight(t *testing.T) {
	t.Parallel()

	bold := font("Brand", "https://x.test/b.woff2", fontutil.FormatWOFF2, fontutil.RawWeight("bold"), "")
	seven := font("brand", "https://x.test/7.woff2", fontutil.FormatWOFF2, fontutil.NumberWeight(700), "")
	italic := font("Brand", "https://x.test/i.woff2", fontutil.FormatWOFF2, fontutil.NumberWeight(700), "")
	italic.Style = fontutil.StyleItalic
	rangeA := font("Brand", "https://x.test/var.woff2", fontutil.FormatWOFF2, fontutil.RawWeight("900 100"), "")
	rangeB := font("Brand", "https://x.test/var.ttf", fontutil.FormatTTF, fontutil.RawWeight("100   900"), "")

	out := Deduplicate([]fontutil.FontSource{bold, seven, italic, rangeA, rangeB})
	require.Len(t, out, 3)
	require.Equal(t, "https://x.test/b.woff2", out[0].URL)
	require.Equal(t, "https://x.test/i.woff2", out[1].URL)
	require.Equal(t, "https://x.test/var.woff2", out[2].URL)
}

func TestDeduplicateShorterURLBreaksTies(t *testing.T) {
	t.Parallel()

	long := font("Mono", "https://x.test/assets/fonts/v2/mono.woff2?cache=1", fontutil.FormatWOFF2, fontutil.NumberWeight(400), "")
	short := font("Mono", "https://x.test/mono.woff2?cache=very-long-query-string", fontutil.FormatWOFF2, fontutil.NumberWeight(400), "")
	out := Deduplicate([]fontutil.FontSource{long, short})
	require.Equal(t, short.URL, out[0].URL)
}

func TestWeightKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "400", weightKey(fontutil.Weight{}))
	require.Equal(t, "400", weightKey(fontutil.RawWeight("Normal")))
	require.Equal(t, "700", weightKey(fontutil.RawWeight("bolder")))
	require.Equal(t, "300", weightKey(fontutil.RawWeight("lighter")))
	require.Equal(t, "350", weightKey(fontutil.NumberWeight(350)))
	require.Equal(t, "100 900", weightKey(fontutil.RawWeight("900 100")))
	require.Equal(t, "500", weightKey(fontutil.RawWeight("500 500")))
	require.Equal(t, "450.5", weightKey(fontutil.RawWeight("450.5")))
	require.Equal(t, "var(--w)", weightKey(fontutil.RawWeight("var(--w)")))
}

func TestUnicodeCoverage(t *testing.T) {
	t.Parallel()

	covered, latin := unicodeCoverage("")
	require.Zero(t, covered)
	require.False(t, latin)

	covered, latin = unicodeCoverage("U+0000-00FF, U+0131")
	require.Equal(t, len(previewCodePoints), covered)
	require.True(t, latin)

	covered, latin = unicodeCoverage("U+0400-045F")
	require.Zero(t, covered)
	require.False(t, latin)

	covered, _ = unicodeCoverage("U+006?")
	require.Equal(t, 15, covered)

	covered, latin = unicodeCoverage("garbage, U+ZZZZ, U+00FF-0000")
	require.Zero(t, covered)
	require.False(t, latin)
}

func TestInferFamilyFromURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Brand Sans", InferFamilyFromURL("https://x.test/fonts/Brand-Sans-Bold.woff2"))
	require.Equal(t, "Berkeley Mono", InferFamilyFromURL("https://x.test/Berkeley-Mono-Regular.woff2"))
	require.Equal(t, "Geist", InferFamilyFromURL("https://x.test/_next/static/media/geist_variable-400.woff2"))
	require.Equal(t, "Intervariable", InferFamilyFromURL("https://x.test/InterVariable.woff2"))
	require.Equal(t, "Unknown Font", InferFamilyFromURL("https://x.test/"))
	require.Equal(t, "Unknown Font", InferFamilyFromURL("https://x.test/-bold.woff2"))
}
