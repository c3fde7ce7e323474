package cssfont

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/aymerick/douceur/parser"
)

var fontAtRuleRe = regexp.MustCompile(`(?i)@(?:font-face|import)\b`)

// recoverRules parses the @font-face and @import rules of a sheet that failed
// as a whole one at a time. A rule cut off by truncation or broken by a stray
// quote is skipped; the rest of the sheet still counts.
func recoverRules(cssText string, base *url.URL, cause error) (Result, error) {
	var (
		result  Result
		dropped int
	)
	for _, fragment := range fontRuleFragments(cssText) {
		sheet, err := parser.Parse(fragment)
		if err != nil {
			dropped++
			continue
		}
		partial := collect(sheet.Rules, base)
		result.Imports = append(result.Imports, partial.Imports...)
		result.Fonts = append(result.Fonts, partial.Fonts...)
	}
	if dropped > 0 && len(result.Imports) == 0 && len(result.Fonts) == 0 {
		return Result{}, fmt.Errorf("parse stylesheet: %w", cause)
	}
	return result, nil
}

// fontRuleFragments cuts the text of each @font-face and @import rule out of
// cssText in document order, looking through nested blocks. A rule that runs
// off the end of the text is returned unterminated.
func fontRuleFragments(cssText string) []string {
	text := stripComments(cssText)
	var (
		out    []string
		cursor int
	)
	for _, loc := range fontAtRuleRe.FindAllStringIndex(text, -1) {
		start := loc[0]
		if start < cursor || !atRuleBoundary(text[:start]) {
			continue
		}
		statement := strings.EqualFold(text[start:loc[1]], "@import")
		end := ruleEnd(text, loc[1], statement)
		out = append(out, text[start:end])
		cursor = end
	}
	return out
}

// atRuleBoundary reports whether an at-keyword preceded by before starts a
// rule rather than sitting inside a selector or value.
func atRuleBoundary(before string) bool {
	trimmed := strings.TrimRight(before, " \t\r\n\f")
	if trimmed == "" {
		return true
	}
	switch trimmed[len(trimmed)-1] {
	case '{', '}', ';':
		return true
	}
	return false
}

// ruleEnd returns the index just past the rule whose prelude starts at from.
// Statement rules end at the first top-level semicolon; block rules end at
// the brace closing their block.
func ruleEnd(text string, from int, statement bool) int {
	braces, parens := 0, 0
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '"', '\'':
			i = quoteEnd(text, i) - 1
		case '\\':
			i++
		case '(':
			parens++
		case ')':
			if parens > 0 {
				parens--
			}
		case ';':
			if statement && parens == 0 {
				return i + 1
			}
		case '{':
			if statement {
				return i
			}
			braces++
		case '}':
			if statement {
				return i
			}
			braces--
			if braces <= 0 {
				return i + 1
			}
		}
	}
	return len(text)
}

// quoteEnd returns the index just past the string opened at start. Like a CSS
// tokenizer, an unescaped newline ends an unclosed string.
func quoteEnd(text string, start int) int {
	quote := text[start]
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		case '\n', '\r', '\f':
			return i
		}
	}
	return len(text)
}

func stripComments(cssText string) string {
	if !strings.Contains(cssText, "/*") {
		return cssText
	}
	var b strings.Builder
	b.Grow(len(cssText))
	for i := 0; i < len(cssText); {
		c := cssText[i]
		switch {
		case c == '"' || c == '\'':
			end := quoteEnd(cssText, i)
			b.WriteString(cssText[i:end])
			i = end
		case c == '\\' && i+1 < len(cssText):
			b.WriteString(cssText[i : i+2])
			i += 2
		case c == '/' && strings.HasPrefix(cssText[i:], "/*"):
			end := strings.Index(cssText[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			b.WriteByte(' ')
			i += end + 4
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
