package crawler

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const unknownFamily = "Unknown Font"

var (
	styleTokenRe   = regexp.MustCompile(`(?i)[-_](regular|bold|italic|light|medium|semibold|thin|black|variable|wght|ital)`)
	numericTokenRe = regexp.MustCompile(`[-_]\d+`)
	separatorRe    = regexp.MustCompile(`[-_]+`)
)

// InferFamilyFromURL guesses a family name from a font file name, e.g.
// "/fonts/Brand-Sans-Bold.woff2" becomes "Brand Sans".
func InferFamilyFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return unknownFamily
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return unknownFamily
	}
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	name = styleTokenRe.ReplaceAllString(name, "")
	name = numericTokenRe.ReplaceAllString(name, "")

	caser := cases.Title(language.Und)
	words := make([]string, 0, 4)
	for _, w := range separatorRe.Split(name, -1) {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, caser.String(w))
		}
	}
	if len(words) == 0 {
		return unknownFamily
	}
	return strings.Join(words, " ")
}
