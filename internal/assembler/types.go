package assembler

import (
	"github.com/JakeFAU/fontsnatcher/internal/crawler"
	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
	"github.com/JakeFAU/fontsnatcher/internal/licensing"
	"github.com/JakeFAU/fontsnatcher/internal/ranking"
)

// ExtractedFont is one unique font in the detailed response.
type ExtractedFont struct {
	ID            string              `json:"id"`
	Family        string              `json:"family"`
	Style         fontutil.Style      `json:"style"`
	Weight        fontutil.Weight     `json:"weight"`
	Format        fontutil.Format     `json:"format"`
	SourceURL     string              `json:"sourceUrl"`
	SourceHost    string              `json:"sourceHost"`
	PreviewURL    string              `json:"previewUrl"`
	DownloadURL   string              `json:"downloadUrl"`
	LicenseStatus licensing.Status    `json:"licenseStatus"`
	LicenseNote   string              `json:"licenseNote"`
	LicenseURL    string              `json:"licenseUrl,omitempty"`
	Alternatives  []ranking.Candidate `json:"alternatives"`
}

// Site describes the crawled page.
type Site struct {
	InputURL      string   `json:"inputUrl"`
	NormalizedURL string   `json:"normalizedUrl"`
	Referer       string   `json:"referer"`
	DurationMs    int64    `json:"durationMs"`
	Warnings      []string `json:"warnings"`
}

// ExtractFontsResponse is the detailed extraction response.
type ExtractFontsResponse struct {
	Site  Site            `json:"site"`
	Stats crawler.Stats   `json:"stats"`
	Fonts []ExtractedFont `json:"fonts"`
}

// FontEntry is one font in the compact extraction response. Format is upper
// case and Weight is always a string.
type FontEntry struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Family        string              `json:"family"`
	Format        string              `json:"format"`
	URL           string              `json:"url"`
	Weight        string              `json:"weight"`
	Style         fontutil.Style      `json:"style"`
	Referer       string              `json:"referer"`
	PreviewURL    string              `json:"previewUrl"`
	DownloadURL   string              `json:"downloadUrl"`
	LicenseStatus licensing.Status    `json:"licenseStatus"`
	LicenseNote   string              `json:"licenseNote"`
	LicenseURL    string              `json:"licenseUrl,omitempty"`
	Alternatives  []ranking.Candidate `json:"alternatives"`
}

// ExtractResponse is the compact extraction response.
type ExtractResponse struct {
	Fonts      []FontEntry `json:"fonts"`
	TotalFound int         `json:"totalFound"`
	SourceURL  string      `json:"sourceUrl"`
	Warnings   []string    `json:"warnings"`
}

// MatchRequest asks for alternatives to one font.
type MatchRequest struct {
	Family string
	Weight string
	Style  fontutil.Style
}

// MatchOriginal echoes the request.
type MatchOriginal struct {
	Family string         `json:"family"`
	Weight string         `json:"weight"`
	Style  fontutil.Style `json:"style"`
}

// MatchFeatures is a heuristic metric profile in the 0-1 range. The values
// are stable placeholders derived from the request, not measured glyphs.
type MatchFeatures struct {
	WeightClass    float64 `json:"weightClass"`
	WidthClass     float64 `json:"widthClass"`
	XHeightRatio   float64 `json:"xHeightRatio"`
	CapHeightRatio float64 `json:"capHeightRatio"`
	AscenderRatio  float64 `json:"ascenderRatio"`
	DescenderRatio float64 `json:"descenderRatio"`
	AvgWidthRatio  float64 `json:"avgWidthRatio"`
	SerifScore     float64 `json:"serifScore"`
	ContrastRatio  float64 `json:"contrastRatio"`
	Roundness      float64 `json:"roundness"`
	IsMonospace    float64 `json:"isMonospace"`
	ItalicAngle    float64 `json:"italicAngle"`
	PanoseSerif    float64 `json:"panoseSerif"`
	PanoseWeight   float64 `json:"panoseWeight"`
	Complexity     float64 `json:"complexity"`
}

// MatchAlternative is one suggested replacement.
type MatchAlternative struct {
	Family      string `json:"family"`
	Category    string `json:"category"`
	Similarity  int    `json:"similarity"`
	Reason      string `json:"reason"`
	DownloadURL string `json:"downloadUrl"`
}

// MatchResponse is the /api/match response.
type MatchResponse struct {
	Original     MatchOriginal      `json:"original"`
	Method       string             `json:"method"`
	Features     MatchFeatures      `json:"features"`
	Alternatives []MatchAlternative `json:"alternatives"`
}
