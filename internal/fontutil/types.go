// Package fontutil holds the font value types shared across the service and
// the small URL and format helpers that operate on them.
package fontutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Style is a CSS font-style.
type Style string

// Known styles.
const (
	StyleNormal  Style = "normal"
	StyleItalic  Style = "italic"
	StyleOblique Style = "oblique"
)

// Valid reports whether s is one of the known styles.
func (s Style) Valid() bool {
	switch s {
	case StyleNormal, StyleItalic, StyleOblique:
		return true
	}
	return false
}

// Format is a web font container format.
type Format string

// Known formats.
const (
	FormatWOFF2   Format = "woff2"
	FormatWOFF    Format = "woff"
	FormatTTF     Format = "ttf"
	FormatOTF     Format = "otf"
	FormatEOT     Format = "eot"
	FormatSVG     Format = "svg"
	FormatUnknown Format = "unknown"
)

// Priority orders formats for deduplication; lower wins.
func (f Format) Priority() int {
	switch f {
	case FormatWOFF2:
		return 0
	case FormatWOFF:
		return 1
	case FormatOTF:
		return 2
	case FormatTTF:
		return 3
	case FormatEOT:
		return 4
	case FormatSVG:
		return 5
	}
	return 6
}

// WeightKind tags the variant held by a Weight.
type WeightKind int

// Weight variants.
const (
	WeightUnset WeightKind = iota
	WeightNumber
	WeightRaw
)

// Weight is an absent, numeric, or raw textual font-weight such as "100 900".
type Weight struct {
	Kind   WeightKind
	Number int
	Raw    string
}

// NumberWeight returns a numeric weight.
func NumberWeight(n int) Weight { return Weight{Kind: WeightNumber, Number: n} }

// RawWeight returns a textual weight.
func RawWeight(s string) Weight { return Weight{Kind: WeightRaw, Raw: s} }

// IsSet reports whether the weight carries a value.
func (w Weight) IsSet() bool { return w.Kind != WeightUnset }

// String renders the weight as the API reports it; an unset weight is "400".
func (w Weight) String() string {
	switch w.Kind {
	case WeightNumber:
		return strconv.Itoa(w.Number)
	case WeightRaw:
		return w.Raw
	}
	return "400"
}

// MarshalJSON encodes null, a number, or a string.
func (w Weight) MarshalJSON() ([]byte, error) {
	switch w.Kind {
	case WeightNumber:
		return []byte(strconv.Itoa(w.Number)), nil
	case WeightRaw:
		b, err := json.Marshal(w.Raw)
		if err != nil {
			return nil, fmt.Errorf("marshal weight: %w", err)
		}
		return b, nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts null, a number, or a string.
func (w *Weight) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*w = Weight{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal weight: %w", err)
		}
		*w = ParseWeight(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unmarshal weight: %w", err)
	}
	*w = NumberWeight(int(n))
	return nil
}

// FontSource is one downloadable font file found on a site.
type FontSource struct {
	Family       string `json:"family"`
	URL          string `json:"url"`
	Format       Format `json:"format"`
	Style        Style  `json:"style"`
	Weight       Weight `json:"weight"`
	UnicodeRange string `json:"unicodeRange,omitempty"`
	SourceCSSURL string `json:"sourceCssUrl"`
}
