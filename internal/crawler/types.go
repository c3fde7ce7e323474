package crawler

import (
	"net/http"
	"time"

	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

// FetchRequest describes one upstream GET.
type FetchRequest struct {
	URL      string
	Accept   string
	Referer  string
	MaxBytes int64
}

// FetchResponse is the (possibly truncated) result of a FetchRequest.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Truncated  bool
	Duration   time.Duration
}

// OK reports a 2xx status.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Stats counts what an extraction looked at.
type Stats struct {
	StylesheetCount int `json:"stylesheetCount"`
	FontFaceCount   int `json:"fontFaceCount"`
	UniqueFontCount int `json:"uniqueFontCount"`
}

// Result is the outcome of extracting fonts from one page.
type Result struct {
	PageURL  string                `json:"pageUrl"`
	Referer  string                `json:"referer"`
	Warnings []string              `json:"warnings"`
	Stats    Stats                 `json:"stats"`
	Fonts    []fontutil.FontSource `json:"fonts"`
}
