package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PreloadLink is a <link rel="preload" as="font"> reference.
type PreloadLink struct {
	URL  string
	Type string
}

// Document is what the crawler needs from a page's HTML.
type Document struct {
	InlineStyles []string
	Stylesheets  []string
	Preloads     []PreloadLink
}

// ParseDocument collects inline <style> blocks, stylesheet links and font
// preloads. Relative hrefs resolve against pageURL; non-http(s) links drop out.
func ParseDocument(html string, pageURL *url.URL) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Document{}, fmt.Errorf("parse html: %w", err)
	}

	var out Document
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if css := s.Text(); strings.TrimSpace(css) != "" {
			out.InlineStyles = append(out.InlineStyles, css)
		}
	})
	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved := resolveLink(pageURL, href)
		if resolved == "" {
			return
		}
		rel := relTokens(s)
		if _, ok := rel["stylesheet"]; ok {
			out.Stylesheets = append(out.Stylesheets, resolved)
		}
		if _, ok := rel["preload"]; ok && strings.EqualFold(strings.TrimSpace(s.AttrOr("as", "")), "font") {
			out.Preloads = append(out.Preloads, PreloadLink{URL: resolved, Type: s.AttrOr("type", "")})
		}
	})
	return out, nil
}

func relTokens(s *goquery.Selection) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
