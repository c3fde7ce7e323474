package fontutil

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// Input URL rejections, worded for API callers.
var (
	ErrEmptyURL        = errors.New("Please provide a website URL.")     //nolint:staticcheck // surfaced verbatim
	ErrUnsupportedURL  = errors.New("Only http/https URLs are supported.") //nolint:staticcheck // surfaced verbatim
	ErrInvalidURLInput = errors.New("Invalid URL format.")                 //nolint:staticcheck // surfaced verbatim
)

var (
	anySchemeRe  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z\d+.\-]*://`)
	httpSchemeRe = regexp.MustCompile(`(?i)^https?://`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeInputURL turns user input into an absolute http(s) URL without a
// fragment. Bare hosts get https; Unicode hostnames are converted to ASCII.
func NormalizeInputURL(input string) (*url.URL, error) {
	value := strings.TrimSpace(input)
	if value == "" {
		return nil, ErrEmptyURL
	}
	if anySchemeRe.MatchString(value) && !httpSchemeRe.MatchString(value) {
		return nil, ErrUnsupportedURL
	}
	if !httpSchemeRe.MatchString(value) {
		value = "https://" + value
	}

	u, err := url.Parse(value)
	if err != nil || u.Hostname() == "" {
		return nil, ErrInvalidURLInput
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrUnsupportedURL
	}

	host := u.Hostname()
	if _, ipErr := netip.ParseAddr(host); ipErr != nil {
		host, err = idna.Lookup.ToASCII(host)
		if err != nil {
			return nil, ErrInvalidURLInput
		}
	}
	host = strings.ToLower(host)
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}

// NormalizeFamilyName trims whitespace and surrounding quotes.
func NormalizeFamilyName(value string) string {
	v := strings.TrimSpace(value)
	v = strings.Trim(v, `"'`)
	return strings.TrimSpace(v)
}

// ParseWeight reads a CSS font-weight value. Empty input is unset; normal and
// bold map to 400 and 700; integers stay numeric; anything else is kept raw.
func ParseWeight(value string) Weight {
	v := strings.TrimSpace(value)
	if v == "" {
		return Weight{}
	}
	switch strings.ToLower(v) {
	case "normal":
		return NumberWeight(400)
	case "bold":
		return NumberWeight(700)
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(n, 0) && n == math.Trunc(n) {
		return NumberWeight(int(n))
	}
	return RawWeight(v)
}

// ParseStyle maps a CSS font-style to a Style, defaulting to normal.
func ParseStyle(value string) Style {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.Contains(v, "italic"):
		return StyleItalic
	case strings.Contains(v, "oblique"):
		return StyleOblique
	}
	return StyleNormal
}

// DetectFormat picks a format from a CSS format() or MIME hint, falling back
// to the URL's file extension.
func DetectFormat(rawURL, hint string) Format {
	h := strings.ToLower(hint)
	switch {
	case strings.Contains(h, "woff2"):
		return FormatWOFF2
	case strings.Contains(h, "woff"):
		return FormatWOFF
	case strings.Contains(h, "truetype"), strings.Contains(h, "ttf"):
		return FormatTTF
	case strings.Contains(h, "embedded-opentype"), strings.Contains(h, "fontobject"), strings.Contains(h, "eot"):
		return FormatEOT
	case strings.Contains(h, "opentype"), strings.Contains(h, "otf"):
		return FormatOTF
	case strings.Contains(h, "svg"):
		return FormatSVG
	}
	return formatFromExtension(rawURL)
}

// FormatFromURL detects a format from the URL extension alone.
func FormatFromURL(rawURL string) Format {
	return formatFromExtension(rawURL)
}

func formatFromExtension(rawURL string) Format {
	clean, _, _ := strings.Cut(rawURL, "#")
	clean, _, _ = strings.Cut(clean, "?")
	idx := strings.LastIndex(clean, ".")
	if idx < 0 {
		return FormatUnknown
	}
	switch strings.ToLower(clean[idx+1:]) {
	case "woff2":
		return FormatWOFF2
	case "woff":
		return FormatWOFF
	case "ttf":
		return FormatTTF
	case "otf":
		return FormatOTF
	case "eot":
		return FormatEOT
	case "svg":
		return FormatSVG
	}
	return FormatUnknown
}

// Base64URLEncode encodes s as unpadded URL-safe base64.
func Base64URLEncode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// Base64URLDecode reverses Base64URLEncode. Trailing padding is tolerated.
func Base64URLDecode(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", fmt.Errorf("decode base64url: %w", err)
	}
	return string(b), nil
}

// CollapseSpaces replaces whitespace runs with a single space and trims.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Origin returns scheme://host for u.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
