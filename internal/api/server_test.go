package api

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/fontsnatcher/internal/assembler"
	"github.com/JakeFAU/fontsnatcher/internal/fontproxy"
	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
	"github.com/JakeFAU/fontsnatcher/internal/ratelimit"
	"github.com/JakeFAU/fontsnatcher/internal/signing"
	"github.com/JakeFAU/fontsnatcher/internal/ssrf"
)

const testSecret = "test-secret-0123456789"

// --- helpers/fakes ---

type fakeAssembler struct {
	mu         sync.Mutex
	err        error
	fonts      int
	lastInput  string
	lastTarget *url.URL
	lastMatch  assembler.MatchRequest
}

func (f *fakeAssembler) record(input string, target *url.URL) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastInput = input
	f.lastTarget = target
	return f.err
}

func (f *fakeAssembler) Extract(_ context.Context, input string, target *url.URL) (assembler.ExtractResponse, error) {
	if err := f.record(input, target); err != nil {
		return assembler.ExtractResponse{}, err
	}
	entries := make([]assembler.FontEntry, 0, f.fonts)
	for i := range f.fonts {
		entries = append(entries, assembler.FontEntry{
			ID:     fmt.Sprintf("font-%d", i+1),
			Name:   fmt.Sprintf("Font %d.woff2", i+1),
			Family: fmt.Sprintf("Font %d", i+1),
			Format: "WOFF2",
			URL:    fmt.Sprintf("https://cdn.example.com/fonts/font-%d.woff2", i+1),
			Weight: "400",
			Style:  fontutil.StyleNormal,
		})
	}
	return assembler.ExtractResponse{
		Fonts:      entries,
		TotalFound: len(entries),
		SourceURL:  target.String(),
		Warnings:   []string{},
	}, nil
}

func (f *fakeAssembler) ExtractFonts(_ context.Context, input string, target *url.URL) (assembler.ExtractFontsResponse, error) {
	if err := f.record(input, target); err != nil {
		return assembler.ExtractFontsResponse{}, err
	}
	return assembler.ExtractFontsResponse{
		Site:  assembler.Site{InputURL: input, NormalizedURL: target.String(), Warnings: []string{}},
		Fonts: []assembler.ExtractedFont{},
	}, nil
}

func (f *fakeAssembler) Match(req assembler.MatchRequest) assembler.MatchResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMatch = req
	return assembler.MatchResponse{
		Original:     assembler.MatchOriginal{Family: req.Family, Weight: req.Weight, Style: req.Style},
		Method:       assembler.MatchMethod,
		Alternatives: []assembler.MatchAlternative{},
	}
}

// hostGuard blocks internal hostnames, fails to resolve .invalid names and
// lets the loopback test servers through.
type hostGuard struct{}

func (hostGuard) AssertSafeTargetURL(_ context.Context, u *url.URL) error {
	if ssrf.IsBlockedHostname(u.Hostname()) {
		return ssrf.ErrBlockedHost
	}
	if strings.HasSuffix(u.Hostname(), ".invalid") {
		return ssrf.ErrUnresolvable
	}
	return nil
}

type testEnv struct {
	server    *Server
	assembler *fakeAssembler
	signer    *signing.Signer
}

func newTestEnv(t *testing.T, upstream *httptest.Server, limiter RateLimiter) *testEnv {
	t.Helper()

	transport := http.DefaultTransport
	if upstream != nil {
		transport = upstream.Client().Transport
	}
	fonts := fontproxy.New(fontproxy.Config{MaxBytes: 64}, fontproxy.NewClient(transport), hostGuard{}, zap.NewNop())
	signer := signing.New(testSecret, false)
	fa := &fakeAssembler{fonts: 1}

	server := NewServer(Deps{
		Assembler: fa,
		Guard:     hostGuard{},
		Verifier:  signer,
		Fonts:     fonts,
		Limiter:   limiter,
		Ready:     func() error { return nil },
	}, Options{}, zap.NewNop())
	return &testEnv{server: server, assembler: fa, signer: signer}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, code int, msg string) {
	t.Helper()
	require.Equal(t, code, rec.Code, rec.Body.String())
	require.JSONEq(t, fmt.Sprintf(`{"error":%q}`, msg), rec.Body.String())
}

// --- probes ---

func TestHealthzAndRequestID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil)
	rec := env.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzReportsFailure(t *testing.T) {
	t.Parallel()

	server := NewServer(Deps{Ready: func() error { return errors.New("catalog is empty") }}, Options{}, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "catalog is empty")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil)
	env.do(http.MethodGet, "/healthz", "")
	rec := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- extraction ---

func TestExtractValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil)
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "malformed", body: "{invalid", msg: msgInvalidJSON},
		{name: "empty body", body: "", msg: msgInvalidJSON},
		{name: "array", body: `["https://example.com"]`, msg: msgInvalidPayload},
		{name: "null", body: `null`, msg: msgInvalidPayload},
		{name: "numeric url", body: `{"url":5}`, msg: msgInvalidPayload},
		{name: "null url", body: `{"url":null}`, msg: msgInvalidPayload},
		{name: "missing url", body: `{}`, msg: "Please provide a website URL."},
		{name: "unsupported scheme", body: `{"url":"ftp://example.com"}`, msg: "Only http/https URLs are supported."},
		{name: "blocked host", body: `{"url":"http://localhost:3000"}`, msg: "Blocked target host."},
	}
	for _, tc := range tests {
		for _, route := range []string{"/api/extract", "/api/extract-fonts"} {
			rec := env.do(http.MethodPost, route, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, "%s %s", tc.name, route)
			require.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tc.msg), rec.Body.String(), "%s %s", tc.name, route)
		}
	}
}

func TestExtractSucceeds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil)
	rec := env.do(http.MethodPost, "/api/extract", `{"url":"  Example.com/about#team "}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `"totalFound":1`)
	require.Contains(t, rec.Body.String(), `"sourceUrl":"https://example.com/about"`)
	require.Equal(t, "  Example.com/about#team ", env.assembler.lastInput)
	require.Equal(t, "https://example.com/about", env.assembler.lastTarget.String())
}

func TestExtractFontsSucceeds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil)
	rec := env.do(http.MethodPost, "/api/extract-fonts", `{"url":"https://example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"normalizedUrl":"https://example.com/"`)
	require.Contains(t, rec.Body.String(), `"inputUrl":"https://example.com"`)
}

func TestExtractFailureIs500(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil)
	env.assembler.err = errors.New("Website fetch failed (503).")
	rec := env.do(http.MethodPost, "/api/extract", `{"url":"https://example.com"}`)
	requireError(t, rec, http.StatusInternalServerError, "Failed to extract fonts: Website fetch failed (503).")

	env.assembler.err = fmt.Errorf("website fetch failed: %w", ssrf.ErrBlockedIP)
	rec = env.do(http.MethodPost, "/api/extract-fonts", `{"url":"https://example.com"}`)
	requireError(t, rec, http.StatusBadRequest, "Blocked private target IP.")
}

func TestExtractResponsesAreCompressed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil)
	env.assembler.fonts = 50

	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"url":"https://example.com"}`))
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

// --- match ---

func TestMatchValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil)
	tests := []struct {
		body string
		msg  string
	}{
		{body: "nope", msg: msgInvalidJSON},
		{body: `"Inter"`, msg: msgInvalidMatch},
		{body: `{"family":42}`, msg: msgInvalidMatch},
		{body: `{"family":"Inter","weight":700}`, msg: msgInvalidMatch},
		{body: `{"family":"Inter","style":"slanted"}`, msg: msgInvalidMatch},
		{body: `{"family":"Inter","referer":false}`, msg: msgInvalidMatch},
		{body: `{}`, msg: msgFamilyRequired},
		{body: `{"family":"   "}`, msg: msgFamilyRequired},
	}
	for _, tc := range tests {
		rec := env.do(http.MethodPost, "/api/match", tc.body)
		requireError(t, rec, http.StatusBadRequest, tc.msg)
	}
}

func TestMatchSucceeds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil)
	rec := env.do(http.MethodPost, "/api/match", `{"family":"Proxima Nova","weight":"600","style":"italic","url":"https://x.test/a.woff2"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"method":"feature-similarity"`)
	require.Equal(t, assembler.MatchRequest{Family: "Proxima Nova", Weight: "600", Style: fontutil.StyleItalic}, env.assembler.lastMatch)
}

func TestRateLimitedEndpoints(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: 0.001, Burst: 1})
	env := newTestEnv(t, nil, limiter)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/match", `{"family":"Inter"}`).Code)
	rec := env.do(http.MethodPost, "/api/match", `{"family":"Inter"}`)
	requireError(t, rec, http.StatusTooManyRequests, ratelimit.TooManyRequestsMessage)

	// Probes and the font proxy are not throttled.
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "").Code)
	requireError(t, env.do(http.MethodGet, "/api/font", ""), http.StatusBadRequest, msgMissingParams)
}

// --- font proxy ---

func newFontUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fonts/Brand Sans.woff2":
			if r.Header.Get("Referer") != "https://site.test/" {
				http.Error(w, "missing referer", http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "font/woff2")
			_, _ = w.Write([]byte("wOF2-font-bytes"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		case "/fonts/huge.woff2":
			w.Header().Set("Content-Type", "font/woff2")
			w.Header().Set("Content-Length", "128")
			_, _ = w.Write(bytes.Repeat([]byte("x"), 128))
		case "/fonts/stream.woff2":
			w.Header().Set("Content-Type", "font/woff2")
			for range 4 {
				_, _ = w.Write(bytes.Repeat([]byte("y"), 32))
				w.(http.Flusher).Flush()
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signedPath(t *testing.T, env *testEnv, fontURL string, download bool) string {
	t.Helper()
	p, err := env.signer.CreateSignedProxyURL(fontURL, "https://site.test/", download)
	require.NoError(t, err)
	return p
}

func TestProxyFontStreamsPreview(t *testing.T) {
	t.Parallel()

	upstream := newFontUpstream(t)
	env := newTestEnv(t, upstream, nil)

	rec := env.do(http.MethodGet, signedPath(t, env, upstream.URL+"/fonts/Brand%20Sans.woff2", false), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "wOF2-font-bytes", rec.Body.String())
	require.Equal(t, "font/woff2", rec.Header().Get("Content-Type"))
	require.Equal(t, fontCacheControl, rec.Header().Get("Cache-Control"))
	require.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestProxyFontDownloadSetsDisposition(t *testing.T) {
	t.Parallel()

	upstream := newFontUpstream(t)
	env := newTestEnv(t, upstream, nil)

	rec := env.do(http.MethodGet, signedPath(t, env, upstream.URL+"/fonts/Brand%20Sans.woff2", true), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `attachment; filename="Brand Sans.woff2"`, rec.Header().Get("Content-Disposition"))
}

func TestProxyFontRejectsBadRequests(t *testing.T) {
	t.Parallel()

	upstream := newFontUpstream(t)
	env := newTestEnv(t, upstream, nil)
	valid := signedPath(t, env, upstream.URL+"/fonts/Brand%20Sans.woff2", false)
	parsed, err := url.Parse(valid)
	require.NoError(t, err)
	q := parsed.Query()

	with := func(key, value string) string {
		clone := url.Values{}
		for k, v := range q {
			clone[k] = v
		}
		clone.Set(key, value)
		return signing.ProxyPath + "?" + clone.Encode()
	}
	without := func(key string) string {
		clone := url.Values{}
		for k, v := range q {
			clone[k] = v
		}
		clone.Del(key)
		return signing.ProxyPath + "?" + clone.Encode()
	}

	requireError(t, env.do(http.MethodGet, without("t"), ""), http.StatusBadRequest, msgMissingParams)
	requireError(t, env.do(http.MethodGet, without("r"), ""), http.StatusBadRequest, msgMissingParams)
	requireError(t, env.do(http.MethodGet, with("d", "2"), ""), http.StatusBadRequest, msgInvalidDownload)
	requireError(t, env.do(http.MethodGet, with("d", "1"), ""), http.StatusForbidden, msgInvalidToken)
	requireError(t, env.do(http.MethodGet, with("t", "garbage"), ""), http.StatusForbidden, msgInvalidToken)
	requireError(t, env.do(http.MethodGet, with("u", fontutil.Base64URLEncode("https://evil.test/x.woff2")), ""), http.StatusForbidden, msgInvalidToken)
}

func TestProxyFontTargetErrors(t *testing.T) {
	t.Parallel()

	upstream := newFontUpstream(t)
	env := newTestEnv(t, upstream, nil)

	requireError(t, env.do(http.MethodGet, signedPath(t, env, "fonts/relative.woff2", false), ""),
		http.StatusBadRequest, msgInvalidFontURL)
	requireError(t, env.do(http.MethodGet, signedPath(t, env, "http://localhost/internal.woff2", false), ""),
		http.StatusBadRequest, "Blocked target host.")
	requireError(t, env.do(http.MethodGet, signedPath(t, env, "https://gone.invalid/font.woff2", false), ""),
		http.StatusBadGateway, "Unable to resolve target host.")
	requireError(t, env.do(http.MethodGet, signedPath(t, env, upstream.URL+"/fonts/missing.woff2", false), ""),
		http.StatusBadGateway, "Unable to fetch upstream font (404).")
	requireError(t, env.do(http.MethodGet, signedPath(t, env, upstream.URL+"/page.html", false), ""),
		http.StatusUnsupportedMediaType, "Upstream response is not a recognized font file.")
	requireError(t, env.do(http.MethodGet, signedPath(t, env, upstream.URL+"/fonts/huge.woff2", false), ""),
		http.StatusRequestEntityTooLarge, "Font file too large.")
}

func TestProxyFontAbortsOversizedStream(t *testing.T) {
	t.Parallel()

	upstream := newFontUpstream(t)
	env := newTestEnv(t, upstream, nil)
	req := httptest.NewRequest(http.MethodGet, signedPath(t, env, upstream.URL+"/fonts/stream.woff2", false), nil)
	rec := httptest.NewRecorder()

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		env.server.Handler().ServeHTTP(rec, req)
	})
	require.LessOrEqual(t, rec.Body.Len(), 64)
}

// --- middleware ---

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := &Server{logger: zap.NewNop()}
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	abort := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.EqualError(t, err, "hijacker not supported")

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.NoError(t, conn.Close())
	require.NoError(t, h.client.Close())
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}
