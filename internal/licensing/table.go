package licensing

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed paid.yaml
var defaultPaidTable []byte

// PaidFamily is a commercial family name pattern.
type PaidFamily struct {
	Pattern    string `yaml:"pattern"`
	Provider   string `yaml:"provider"`
	LicenseURL string `yaml:"license_url"`
}

// PaidHost is a commercial font hosting domain.
type PaidHost struct {
	Domain     string `yaml:"domain"`
	Provider   string `yaml:"provider"`
	LicenseURL string `yaml:"license_url"`
}

// PaidTable is the curated list of commercial families and hosts.
type PaidTable struct {
	Families []PaidFamily `yaml:"families"`
	Hosts    []PaidHost   `yaml:"hosts"`
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// DefaultPaidTable returns the bundled table.
func DefaultPaidTable() (PaidTable, error) {
	return ParsePaidTable(defaultPaidTable)
}

// LoadPaidTable reads a table from a YAML file.
func LoadPaidTable(path string) (PaidTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PaidTable{}, fmt.Errorf("read paid table %s: %w", path, err)
	}
	return ParsePaidTable(data)
}

// ParsePaidTable decodes and normalizes a YAML table. Unknown keys and
// entries without a pattern or domain are rejected.
func ParsePaidTable(data []byte) (PaidTable, error) {
	var table PaidTable
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&table); err != nil && !errors.Is(err, io.EOF) {
		return PaidTable{}, fmt.Errorf("decode paid table: %w", err)
	}

	for i := range table.Families {
		f := &table.Families[i]
		f.Pattern = matchKey(f.Pattern)
		if f.Pattern == "" {
			return PaidTable{}, fmt.Errorf("paid family %d: empty pattern", i)
		}
	}
	for i := range table.Hosts {
		h := &table.Hosts[i]
		h.Domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h.Domain)), ".")
		if h.Domain == "" {
			return PaidTable{}, fmt.Errorf("paid host %d: empty domain", i)
		}
	}
	return table, nil
}

// matchKey reduces a family name to lowercase alphanumeric words.
func matchKey(s string) string {
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(strings.ToLower(s), " "))
}

func (f PaidFamily) matches(key string) bool {
	return key == f.Pattern ||
		strings.HasPrefix(key, f.Pattern+" ") ||
		strings.HasSuffix(key, " "+f.Pattern)
}

func (h PaidHost) matches(host string) bool {
	return host == h.Domain || strings.HasSuffix(host, "."+h.Domain)
}
