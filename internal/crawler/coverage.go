package crawler

import (
	"strconv"
	"strings"
)

const previewText = "The quick brown fox jumps over the lazy dog"

var previewCodePoints = func() []rune {
	seen := make(map[rune]struct{})
	var out []rune
	for _, r := range previewText {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}()

type codeRange struct {
	start, end rune
}

// parseUnicodeRange reads a comma separated unicode-range value. Malformed
// tokens are skipped.
func parseUnicodeRange(value string) []codeRange {
	var out []codeRange
	for _, token := range strings.Split(value, ",") {
		token = strings.ToUpper(strings.TrimSpace(token))
		if !strings.HasPrefix(token, "U+") {
			continue
		}
		body := token[2:]
		if strings.Contains(body, "?") {
			lo, errLo := parseHex(strings.ReplaceAll(body, "?", "0"))
			hi, errHi := parseHex(strings.ReplaceAll(body, "?", "F"))
			if errLo == nil && errHi == nil {
				out = append(out, codeRange{lo, hi})
			}
			continue
		}
		startRaw, endRaw, isRange := strings.Cut(body, "-")
		start, err := parseHex(startRaw)
		if err != nil {
			continue
		}
		end := start
		if isRange {
			if end, err = parseHex(endRaw); err != nil {
				continue
			}
		}
		if end < start {
			continue
		}
		out = append(out, codeRange{start, end})
	}
	return out
}

func parseHex(s string) (rune, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 6 {
		return 0, strconv.ErrSyntax
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err //nolint:wrapcheck // callers only test for failure
	}
	return rune(n), nil
}

// unicodeCoverage returns how many preview code points the range covers and
// whether it overlaps Latin-1. A face with no usable unicode-range scores
// zero, so an explicitly Latin subset beats it.
func unicodeCoverage(unicodeRange string) (covered int, basicLatin bool) {
	ranges := parseUnicodeRange(unicodeRange)
	if len(ranges) == 0 {
		return 0, false
	}
	for _, cp := range previewCodePoints {
		for _, r := range ranges {
			if cp >= r.start && cp <= r.end {
				covered++
				break
			}
		}
	}
	for _, r := range ranges {
		if r.start <= 0xFF {
			basicLatin = true
			break
		}
	}
	return covered, basicLatin
}
