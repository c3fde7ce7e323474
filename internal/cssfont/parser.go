// Package cssfont pulls @font-face sources and @import targets out of a stylesheet.
package cssfont

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"

	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

// Result is everything of interest found in one stylesheet.
type Result struct {
	Imports []string
	Fonts   []fontutil.FontSource
}

var (
	urlFuncRe    = regexp.MustCompile(`(?i)url\(\s*([^)]*?)\s*\)`)
	formatFuncRe = regexp.MustCompile(`(?i)format\(\s*([^)]*?)\s*\)`)
	quotedRe     = regexp.MustCompile(`^\s*(?:"([^"]*)"|'([^']*)')`)
)

// Parse extracts font faces and imports from cssText. Relative URLs resolve
// against baseURL; only http(s) results are kept. When the sheet does not
// tokenize, each @font-face and @import rule is parsed on its own and broken
// rules are dropped. Parse returns an error only if that recovers nothing.
func Parse(cssText, baseURL string) (Result, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return Result{}, fmt.Errorf("parse base url: %w", err)
	}
	sheet, err := parser.Parse(cssText)
	if err != nil {
		return recoverRules(cssText, base, err)
	}
	return collect(sheet.Rules, base), nil
}

func collect(rules []*css.Rule, base *url.URL) Result {
	var result Result
	for _, rule := range flatten(rules) {
		if rule.Kind != css.AtRule {
			continue
		}
		switch strings.ToLower(rule.Name) {
		case "@import":
			if target := importTarget(rule.Prelude, base); target != "" {
				result.Imports = append(result.Imports, target)
			}
		case "@font-face":
			result.Fonts = append(result.Fonts, fontFaceSources(rule.Declarations, base)...)
		}
	}
	return result
}

// flatten walks nested rule blocks (@media, @supports, ...) depth-first in
// document order.
func flatten(rules []*css.Rule) []*css.Rule {
	out := make([]*css.Rule, 0, len(rules))
	var walk func([]*css.Rule)
	walk = func(rs []*css.Rule) {
		for _, r := range rs {
			if r == nil {
				continue
			}
			out = append(out, r)
			if len(r.Rules) > 0 {
				walk(r.Rules)
			}
		}
	}
	walk(rules)
	return out
}

func importTarget(prelude string, base *url.URL) string {
	var raw string
	if m := urlFuncRe.FindStringSubmatch(prelude); m != nil && strings.HasPrefix(strings.ToLower(strings.TrimSpace(prelude)), "url(") {
		raw = unquote(m[1])
	} else if m := quotedRe.FindStringSubmatch(prelude); m != nil {
		raw = m[1] + m[2]
	}
	return resolveHTTP(raw, base)
}

func fontFaceSources(decls []*css.Declaration, base *url.URL) []fontutil.FontSource {
	var family, src, style, weight, unicodeRange string
	for _, d := range decls {
		if d == nil {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(d.Property)) {
		case "font-family":
			family = fontutil.NormalizeFamilyName(d.Value)
		case "src":
			src = d.Value
		case "font-style":
			style = d.Value
		case "font-weight":
			weight = d.Value
		case "unicode-range":
			unicodeRange = strings.TrimSpace(d.Value)
		}
	}
	if family == "" || strings.TrimSpace(src) == "" {
		return nil
	}

	var fonts []fontutil.FontSource
	for _, item := range splitTopLevel(src) {
		m := urlFuncRe.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		resolved := resolveHTTP(unquote(m[1]), base)
		if resolved == "" {
			continue
		}
		var hint string
		if fm := formatFuncRe.FindStringSubmatch(item); fm != nil {
			hint = unquote(fm[1])
		}
		fonts = append(fonts, fontutil.FontSource{
			Family:       family,
			URL:          resolved,
			Format:       fontutil.DetectFormat(resolved, hint),
			Style:        fontutil.ParseStyle(style),
			Weight:       fontutil.ParseWeight(weight),
			UnicodeRange: unicodeRange,
			SourceCSSURL: base.String(),
		})
	}
	return fonts
}

// splitTopLevel splits a src list on commas outside parentheses and quotes.
func splitTopLevel(value string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range value {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			parts = append(parts, value[start:i])
			start = i + 1
		}
	}
	parts = append(parts, value[start:])
	return parts
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func resolveHTTP(raw string, base *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
