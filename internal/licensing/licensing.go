// Package licensing classifies discovered font families as open, known
// commercial, or unknown.
package licensing

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/JakeFAU/fontsnatcher/internal/catalog"
)

// Status is a license classification.
type Status string

// Classification outcomes.
const (
	StatusFreeOpen      Status = "free_open"
	StatusKnownPaid     Status = "known_paid"
	StatusUnknownOrPaid Status = "unknown_or_paid"
)

// Notes shown to users.
const (
	OpenLicenseNote    = "Found in Google Fonts metadata (open-source family). Verify exact files and license terms before redistribution."
	UnknownLicenseNote = "This font might not be free to use. Download at your own risk. Check the foundry license before commercial use."
	LegalWarningCopy   = "This font might not be free to use. Download at your own risk."
)

// Classification is the license verdict for one font.
type Classification struct {
	Status     Status `json:"status"`
	Note       string `json:"note"`
	Provider   string `json:"provider,omitempty"`
	LicenseURL string `json:"licenseUrl,omitempty"`
}

var variableTokenRe = regexp.MustCompile(`\b(variable|vf)\b`)

// Classifier applies the catalog, then paid family patterns, then paid hosts.
// Family rules run before host rules so self-hosted commercial fonts are
// still caught.
type Classifier struct {
	catalog  *catalog.Catalog
	families []PaidFamily
	hosts    []PaidHost
}

// NewClassifier returns a classifier over an open catalog and a paid table.
// A nil catalog classifies nothing as open.
func NewClassifier(c *catalog.Catalog, table PaidTable) *Classifier {
	return &Classifier{catalog: c, families: table.Families, hosts: table.Hosts}
}

// Classify returns the verdict for a family served from sourceURL. The URL may
// be empty.
func (c *Classifier) Classify(family, sourceURL string) Classification {
	for _, key := range lookupKeys(family) {
		if _, ok := c.catalog.Lookup(key); ok {
			return Classification{Status: StatusFreeOpen, Note: OpenLicenseNote}
		}
	}

	key := matchKey(family)
	stripped := matchKey(variableTokenRe.ReplaceAllString(key, " "))
	for _, f := range c.families {
		if f.matches(key) || f.matches(stripped) {
			return Classification{
				Status:     StatusKnownPaid,
				Note:       fmt.Sprintf("Commercial family licensed by %s. Buy a license before using or redistributing it.", f.Provider),
				Provider:   f.Provider,
				LicenseURL: f.LicenseURL,
			}
		}
	}

	if host := hostOf(sourceURL); host != "" {
		for _, h := range c.hosts {
			if h.matches(host) {
				return Classification{
					Status:     StatusKnownPaid,
					Note:       fmt.Sprintf("Served by %s, a commercial font service. Buy a license before using or redistributing it.", h.Provider),
					Provider:   h.Provider,
					LicenseURL: h.LicenseURL,
				}
			}
		}
	}

	return Classification{Status: StatusUnknownOrPaid, Note: UnknownLicenseNote}
}

// lookupKeys returns the catalog keys to try: the normalized name and the
// name with variable-font tokens removed.
func lookupKeys(family string) []string {
	normalized := catalog.NormalizeFamilyKey(family)
	withoutVariable := catalog.NormalizeFamilyKey(variableTokenRe.ReplaceAllString(normalized, " "))

	keys := make([]string, 0, 2)
	if normalized != "" {
		keys = append(keys, normalized)
	}
	if withoutVariable != "" && withoutVariable != normalized {
		keys = append(keys, withoutVariable)
	}
	return keys
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}
