package crawler

import (
	"errors"
	"time"
)

// Extraction limits.
const (
	DefaultTimeout          = 12 * time.Second
	DefaultMaxHTMLBytes     = 6_000_000
	DefaultMaxCSSBytes      = 750_000
	DefaultMaxStylesheets   = 80
	DefaultMaxImportDepth   = 3
	DefaultFetchConcurrency = 4
)

// Config bounds a single extraction.
type Config struct {
	Timeout          time.Duration
	MaxHTMLBytes     int64
	MaxCSSBytes      int64
	MaxStylesheets   int
	MaxImportDepth   int
	FetchConcurrency int
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		Timeout:          DefaultTimeout,
		MaxHTMLBytes:     DefaultMaxHTMLBytes,
		MaxCSSBytes:      DefaultMaxCSSBytes,
		MaxStylesheets:   DefaultMaxStylesheets,
		MaxImportDepth:   DefaultMaxImportDepth,
		FetchConcurrency: DefaultFetchConcurrency,
	}
}

// Validate checks for obviously bad limits.
func (c Config) Validate() error {
	switch {
	case c.Timeout <= 0:
		return errors.New("crawler timeout must be > 0")
	case c.MaxHTMLBytes <= 0 || c.MaxCSSBytes <= 0:
		return errors.New("crawler byte caps must be > 0")
	case c.MaxStylesheets <= 0:
		return errors.New("crawler max stylesheets must be > 0")
	case c.MaxImportDepth < 0:
		return errors.New("crawler max import depth must be >= 0")
	case c.FetchConcurrency <= 0:
		return errors.New("crawler fetch concurrency must be > 0")
	}
	return nil
}
