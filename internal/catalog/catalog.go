// Package catalog holds the bundled snapshot of open-licensed font families
// used for license classification and alternative ranking.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

//go:embed snapshot.json
var snapshot []byte

// Categories used by the snapshot.
const (
	CategorySansSerif   = "sans-serif"
	CategorySerif       = "serif"
	CategoryMonospace   = "monospace"
	CategoryHandwriting = "handwriting"
	CategoryDisplay     = "display"
)

// ErrInvalidSnapshot is returned when the snapshot is not a JSON array.
var ErrInvalidSnapshot = errors.New("invalid font catalog snapshot format")

// Entry is one open font family.
type Entry struct {
	Family   string           `json:"family"`
	Category string           `json:"category"`
	Styles   []fontutil.Style `json:"styles"`
	Weights  []int            `json:"weights"`
	Subsets  []string         `json:"subsets"`
}

// SupportsStyle reports whether the family ships the given style.
func (e Entry) SupportsStyle(style fontutil.Style) bool {
	for _, s := range e.Styles {
		if s == style {
			return true
		}
	}
	return false
}

// Catalog is an immutable family list with a normalized-name index.
// It is safe for concurrent use.
type Catalog struct {
	entries []Entry
	index   map[string]Entry
}

// New builds a catalog from entries. Later duplicates replace earlier ones in
// the index but every entry is kept in the list.
func New(entries []Entry) *Catalog {
	c := &Catalog{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]Entry, len(entries)),
	}
	copy(c.entries, entries)
	for _, e := range c.entries {
		c.index[NormalizeFamilyKey(e.Family)] = e
	}
	return c
}

// Load parses the bundled snapshot.
func Load() (*Catalog, error) {
	return Parse(snapshot)
}

// LoadFile parses a snapshot from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a snapshot. The document must be a JSON array; elements that
// are not well-formed entries are dropped.
func Parse(data []byte) (*Catalog, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		if e, ok := decodeEntry(item); ok {
			entries = append(entries, e)
		}
	}
	return New(entries), nil
}

type rawEntry struct {
	Family   *string   `json:"family"`
	Category *string   `json:"category"`
	Styles   []string  `json:"styles"`
	Weights  []float64 `json:"weights"`
	Subsets  []string  `json:"subsets"`
}

func decodeEntry(item json.RawMessage) (Entry, bool) {
	var r rawEntry
	if err := json.Unmarshal(item, &r); err != nil {
		return Entry{}, false
	}
	// Missing arrays decode to nil; present but empty ones do not.
	if r.Family == nil || r.Category == nil || r.Styles == nil || r.Weights == nil || r.Subsets == nil {
		return Entry{}, false
	}
	if strings.TrimSpace(*r.Family) == "" {
		return Entry{}, false
	}

	e := Entry{
		Family:   *r.Family,
		Category: *r.Category,
		Styles:   make([]fontutil.Style, 0, len(r.Styles)),
		Weights:  make([]int, 0, len(r.Weights)),
		Subsets:  r.Subsets,
	}
	for _, s := range r.Styles {
		style := fontutil.Style(s)
		if !style.Valid() {
			return Entry{}, false
		}
		e.Styles = append(e.Styles, style)
	}
	for _, w := range r.Weights {
		e.Weights = append(e.Weights, int(w))
	}
	sort.Ints(e.Weights)
	return e, true
}

// Entries returns the families in snapshot order. Callers must not modify
// the returned slice.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	return c.entries
}

// Len returns the number of families.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Lookup finds a family by its normalized name.
func (c *Catalog) Lookup(family string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.index[NormalizeFamilyKey(family)]
	return e, ok
}

// NormalizeFamilyKey lowercases and collapses whitespace.
func NormalizeFamilyKey(family string) string {
	return strings.ToLower(fontutil.CollapseSpaces(family))
}
