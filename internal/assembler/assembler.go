// Package assembler combines extraction, licensing, ranking, and proxy
// signing into the public API responses.
package assembler

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/JakeFAU/fontsnatcher/internal/catalog"
	"github.com/JakeFAU/fontsnatcher/internal/clock/system"
	"github.com/JakeFAU/fontsnatcher/internal/crawler"
	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
	"github.com/JakeFAU/fontsnatcher/internal/licensing"
	"github.com/JakeFAU/fontsnatcher/internal/ranking"
)

// Extractor finds the fonts served by a page. *crawler.Extractor satisfies it.
type Extractor interface {
	Extract(ctx context.Context, pageURL *url.URL) (crawler.Result, error)
}

// Signer issues proxy URLs. *signing.Signer satisfies it.
type Signer interface {
	CreateSignedProxyURL(fontURL, referer string, download bool) (string, error)
}

// Classifier assigns license verdicts. *licensing.Classifier satisfies it.
type Classifier interface {
	Classify(family, sourceURL string) licensing.Classification
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Assembler is safe for concurrent use.
type Assembler struct {
	extractor  Extractor
	signer     Signer
	classifier Classifier
	catalog    *catalog.Catalog
	clock      crawler.Clock
}

// New returns an Assembler. A nil clock uses the wall clock.
func New(extractor Extractor, signer Signer, classifier Classifier, c *catalog.Catalog, clock crawler.Clock) *Assembler {
	if clock == nil {
		clock = system.New()
	}
	return &Assembler{
		extractor:  extractor,
		signer:     signer,
		classifier: classifier,
		catalog:    c,
		clock:      clock,
	}
}

// ExtractFonts crawls target and builds the detailed response. input is the
// URL as the caller typed it.
func (a *Assembler) ExtractFonts(ctx context.Context, input string, target *url.URL) (ExtractFontsResponse, error) {
	start := a.clock.Now()
	result, err := a.extractor.Extract(ctx, target)
	if err != nil {
		return ExtractFontsResponse{}, err //nolint:wrapcheck // message is shown to API callers as is
	}

	fonts := make([]ExtractedFont, 0, len(result.Fonts))
	for i, src := range result.Fonts {
		font, err := a.buildFont(i, src, result.Referer)
		if err != nil {
			return ExtractFontsResponse{}, err
		}
		fonts = append(fonts, font)
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return ExtractFontsResponse{
		Site: Site{
			InputURL:      input,
			NormalizedURL: target.String(),
			Referer:       result.Referer,
			DurationMs:    a.clock.Now().Sub(start).Milliseconds(),
			Warnings:      warnings,
		},
		Stats: result.Stats,
		Fonts: fonts,
	}, nil
}

func (a *Assembler) buildFont(index int, src fontutil.FontSource, referer string) (ExtractedFont, error) {
	license := a.classifier.Classify(src.Family, src.URL)

	alternatives := []ranking.Candidate{}
	if license.Status != licensing.StatusFreeOpen {
		alternatives = ranking.Rank(ranking.Query{
			Family:          src.Family,
			Style:           src.Style,
			Weight:          src.Weight,
			SourceCategory:  a.categoryOf(src.Family),
			ExcludeFamilies: []string{src.Family},
		}, a.catalog)
	}

	preview, err := a.signer.CreateSignedProxyURL(src.URL, referer, false)
	if err != nil {
		return ExtractedFont{}, fmt.Errorf("sign preview url: %w", err)
	}
	download := license.LicenseURL
	if license.Status != licensing.StatusKnownPaid || download == "" {
		download, err = a.signer.CreateSignedProxyURL(src.URL, referer, true)
		if err != nil {
			return ExtractedFont{}, fmt.Errorf("sign download url: %w", err)
		}
	}

	note := license.Note
	if license.Status == licensing.StatusUnknownOrPaid {
		note = licensing.LegalWarningCopy
	}

	return ExtractedFont{
		ID:            fontID(src.Family, index),
		Family:        src.Family,
		Style:         src.Style,
		Weight:        src.Weight,
		Format:        src.Format,
		SourceURL:     src.URL,
		SourceHost:    hostOf(src.URL),
		PreviewURL:    preview,
		DownloadURL:   download,
		LicenseStatus: license.Status,
		LicenseNote:   note,
		LicenseURL:    license.LicenseURL,
		Alternatives:  alternatives,
	}, nil
}

// Extract builds the compact response from the detailed one.
func (a *Assembler) Extract(ctx context.Context, input string, target *url.URL) (ExtractResponse, error) {
	rich, err := a.ExtractFonts(ctx, input, target)
	if err != nil {
		return ExtractResponse{}, err
	}

	entries := make([]FontEntry, 0, len(rich.Fonts))
	for _, f := range rich.Fonts {
		entries = append(entries, FontEntry{
			ID:            f.ID,
			Name:          fileName(f.SourceURL, f.Family),
			Family:        f.Family,
			Format:        strings.ToUpper(string(f.Format)),
			URL:           f.SourceURL,
			Weight:        f.Weight.String(),
			Style:         f.Style,
			Referer:       rich.Site.Referer,
			PreviewURL:    f.PreviewURL,
			DownloadURL:   f.DownloadURL,
			LicenseStatus: f.LicenseStatus,
			LicenseNote:   f.LicenseNote,
			LicenseURL:    f.LicenseURL,
			Alternatives:  f.Alternatives,
		})
	}
	return ExtractResponse{
		Fonts:      entries,
		TotalFound: rich.Stats.UniqueFontCount,
		SourceURL:  rich.Site.NormalizedURL,
		Warnings:   rich.Site.Warnings,
	}, nil
}

func (a *Assembler) categoryOf(family string) string {
	if e, ok := a.catalog.Lookup(family); ok {
		return e.Category
	}
	return ""
}

func fontID(family string, index int) string {
	return fmt.Sprintf("%s-%d", whitespaceRe.ReplaceAllString(strings.ToLower(family), "-"), index+1)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// fileName is the decoded last path segment of raw, or fallback.
func fileName(raw, fallback string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return fallback
	}
	return name
}
