// Package fontproxy fetches font binaries on behalf of browsers, checking
// every redirect hop against the SSRF guard and capping the streamed size.
package fontproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

// Limits and request headers.
const (
	DefaultMaxBytes     = 15_000_000
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) FontSnatcher/1.0 Safari/537.36"
	acceptFonts = "font/woff2,font/woff,font/ttf,font/otf,*/*;q=0.1"
)

var fontContentTypes = []string{
	"font/woff2",
	"font/woff",
	"font/ttf",
	"font/otf",
	"font/sfnt",
	"application/font-woff",
	"application/font-woff2",
	"application/font-sfnt",
	"application/octet-stream",
}

// ErrTooLarge is returned by LimitedReader once the cap is exceeded.
var ErrTooLarge = errors.New("font response exceeded size limit")

// StatusError is an upstream failure with the HTTP status to report.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string { return e.Message }

func statusErr(code int, format string, args ...any) *StatusError {
	return &StatusError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Guard vets outbound URLs. *ssrf.Guard satisfies it.
type Guard interface {
	AssertSafeTargetURL(ctx context.Context, u *url.URL) error
}

// Doer sends one HTTP request without following redirects.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config holds proxy limits.
type Config struct {
	MaxBytes     int64
	MaxRedirects int
	UserAgent    string
}

// Proxy is safe for concurrent use.
type Proxy struct {
	cfg    Config
	client Doer
	guard  Guard
	logger *zap.Logger
}

// NewClient returns an http.Client that hands redirects back to the caller.
func NewClient(transport http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// New returns a Proxy. client must not follow redirects itself; see NewClient.
func New(cfg Config, client Doer, guard Guard, logger *zap.Logger) *Proxy {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{cfg: cfg, client: client, guard: guard, logger: logger.Named("fontproxy")}
}

// Fetch requests fontURL, following at most MaxRedirects redirects. The
// guard runs before every request, so an unsafe Location is rejected before
// it is contacted. Guard failures are returned unchanged; other failures are
// *StatusError values.
func (p *Proxy) Fetch(ctx context.Context, fontURL *url.URL, referer string) (*Upstream, error) {
	current := fontURL
	for hop := 0; hop <= p.cfg.MaxRedirects; hop++ {
		if err := p.guard.AssertSafeTargetURL(ctx, current); err != nil {
			return nil, err
		}

		resp, err := p.get(ctx, current, referer)
		if err != nil {
			p.logger.Warn("upstream font fetch failed", zap.String("url", current.String()), zap.Error(err))
			return nil, statusErr(http.StatusBadGateway, "Unable to fetch upstream font.")
		}
		if !isRedirect(resp.StatusCode) {
			return &Upstream{resp: resp, FinalURL: current, maxBytes: p.cfg.MaxBytes}, nil
		}

		location := resp.Header.Get("Location")
		drain(resp)
		if location == "" {
			return nil, statusErr(http.StatusBadGateway, "Upstream redirect missing location header.")
		}
		next, err := current.Parse(location)
		if err != nil {
			return nil, statusErr(http.StatusBadGateway, "Upstream redirect location is invalid.")
		}
		p.logger.Debug("following font redirect", zap.String("from", current.String()), zap.String("to", next.String()))
		current = next
	}
	return nil, statusErr(http.StatusBadGateway, "Upstream redirected too many times.")
}

func (p *Proxy) get(ctx context.Context, u *url.URL, referer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", acceptFonts)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// Upstream is a non-redirect response. The caller must Close it.
type Upstream struct {
	resp     *http.Response
	maxBytes int64
	// FinalURL is the URL that produced the response.
	FinalURL *url.URL
}

// StatusCode returns the upstream status.
func (u *Upstream) StatusCode() int { return u.resp.StatusCode }

// Validate rejects failed, non-font, and declared-oversize responses.
func (u *Upstream) Validate() error {
	if u.resp.StatusCode < 200 || u.resp.StatusCode > 299 {
		return statusErr(http.StatusBadGateway, "Unable to fetch upstream font (%d).", u.resp.StatusCode)
	}
	if !looksLikeFont(u.ContentType(), u.FinalURL.String()) {
		return statusErr(http.StatusUnsupportedMediaType, "Upstream response is not a recognized font file.")
	}
	if u.resp.ContentLength > u.maxBytes {
		return statusErr(http.StatusRequestEntityTooLarge, "Font file too large.")
	}
	return nil
}

// ContentType returns the upstream content type, defaulting to
// application/octet-stream.
func (u *Upstream) ContentType() string {
	if ct := u.resp.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ContentLength returns the declared length, or -1.
func (u *Upstream) ContentLength() int64 { return u.resp.ContentLength }

// Filename returns the last path segment of the final URL.
func (u *Upstream) Filename() string {
	name := path.Base(u.FinalURL.Path)
	if name == "." || name == "/" || name == "" {
		return "font-file"
	}
	return name
}

// Body returns the response body capped at the configured size.
func (u *Upstream) Body() io.Reader {
	return NewLimitedReader(u.resp.Body, u.maxBytes)
}

// Close releases the upstream connection.
func (u *Upstream) Close() error {
	if err := u.resp.Body.Close(); err != nil {
		return fmt.Errorf("close upstream body: %w", err)
	}
	return nil
}

func looksLikeFont(contentType, rawURL string) bool {
	ct := strings.ToLower(contentType)
	for _, allowed := range fontContentTypes {
		if strings.Contains(ct, allowed) {
			return true
		}
	}
	return fontutil.FormatFromURL(rawURL) != fontutil.FormatUnknown
}

// LimitedReader passes through at most max bytes and fails with ErrTooLarge
// as soon as more are available.
type LimitedReader struct {
	r    io.Reader
	max  int64
	read int64
}

// NewLimitedReader wraps r.
func NewLimitedReader(r io.Reader, maxBytes int64) *LimitedReader {
	return &LimitedReader{r: r, max: maxBytes}
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.read > l.max {
		return 0, ErrTooLarge
	}
	// One byte past the cap is enough to detect overflow.
	if room := l.max - l.read + 1; int64(len(p)) > room {
		p = p[:room]
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.max {
		return n - int(l.read-l.max), ErrTooLarge
	}
	return n, err //nolint:wrapcheck // io.Reader contract
}
