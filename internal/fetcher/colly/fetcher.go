// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/fontsnatcher/internal/crawler"
)

// DefaultUserAgent identifies the service upstream.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) FontSnatcher/1.0 Safari/537.36"

const maxRedirects = 10

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// RedirectChecker vets each redirect hop. *ssrf.Guard satisfies it.
type RedirectChecker interface {
	CheckRedirect(maxHops int) func(*http.Request, []*http.Request) error
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher whose connections all go through transport and whose
// redirects are vetted by redirects. Both are shared by every fetch.
func New(cfg Config, transport http.RoundTripper, redirects RedirectChecker) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = crawler.DefaultTimeout
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.UserAgent = cfg.UserAgent
	if transport != nil {
		c.WithTransport(transport)
	}
	c.SetRequestTimeout(cfg.Timeout)
	if redirects != nil {
		c.SetRedirectHandler(redirects.CheckRedirect(maxRedirects))
	}

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. Bodies longer than
// request.MaxBytes are cut to MaxBytes and flagged as truncated.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx, request)
	f.configureCollectorHooks(collector, request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request, &fetchErr); err != nil {
		return crawler.FetchResponse{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(ctx context.Context, request crawler.FetchRequest) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	if request.MaxBytes > 0 {
		// One byte past the cap tells truncation apart from an exact fit.
		collector.MaxBodySize = int(request.MaxBytes) + 1
	}
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		body := r.Body
		truncated := false
		if request.MaxBytes > 0 && int64(len(body)) > request.MaxBytes {
			body = body[:request.MaxBytes]
			truncated = true
		}
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		finalURL := request.URL
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
		*result = crawler.FetchResponse{
			URL:        finalURL,
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), body...),
			Truncated:  truncated,
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	request crawler.FetchRequest,
	fetchErr *error,
) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Request(http.MethodGet, request.URL, nil, nil, requestHeaders(request))
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func requestHeaders(request crawler.FetchRequest) http.Header {
	h := http.Header{}
	if request.Accept != "" {
		h.Set("Accept", request.Accept)
	}
	if request.Referer != "" {
		h.Set("Referer", request.Referer)
	}
	return h
}
