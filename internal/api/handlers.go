package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/fontsnatcher/internal/assembler"
	"github.com/JakeFAU/fontsnatcher/internal/fontproxy"
	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
	"github.com/JakeFAU/fontsnatcher/internal/signing"
	"github.com/JakeFAU/fontsnatcher/internal/ssrf"
	"github.com/JakeFAU/fontsnatcher/internal/telemetry"
)

// Client-facing error messages.
const (
	msgInvalidJSON       = "Request body must be valid JSON."
	msgInvalidPayload    = "Invalid request payload."
	msgInvalidMatch      = "Invalid match request payload."
	msgFamilyRequired    = "Font family is required."
	msgExtractFailed     = "Failed to extract fonts: "
	msgMissingParams     = "Missing required query parameters."
	msgInvalidDownload   = "Invalid download mode."
	msgInvalidToken      = "Invalid or expired font token."
	msgInvalidEncoding   = "Invalid encoded font params."
	msgInvalidFontURL    = "Invalid target font URL."
	msgUpstreamFetchFail = "Unable to fetch upstream font."
)

const fontCacheControl = "public, max-age=600"

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	input, target, ok := s.validateExtract(w, r)
	if !ok {
		return
	}
	resp, err := s.deps.Assembler.Extract(r.Context(), input, target)
	if err != nil {
		s.extractFailed(w, r, target, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) extractFonts(w http.ResponseWriter, r *http.Request) {
	input, target, ok := s.validateExtract(w, r)
	if !ok {
		return
	}
	resp, err := s.deps.Assembler.ExtractFonts(r.Context(), input, target)
	if err != nil {
		s.extractFailed(w, r, target, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// validateExtract decodes the body, normalizes the URL and runs the guard.
// On failure the response has already been written.
func (s *Server) validateExtract(w http.ResponseWriter, r *http.Request) (string, *url.URL, bool) {
	var req extractRequest
	if err := decodeBody(w, r, &req); err != nil {
		if errors.Is(err, errMalformedBody) {
			writeError(w, http.StatusBadRequest, msgInvalidJSON)
		} else {
			writeError(w, http.StatusBadRequest, msgInvalidPayload)
		}
		return "", nil, false
	}

	target, err := fontutil.NormalizeInputURL(req.URL.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	if err := s.deps.Guard.AssertSafeTargetURL(r.Context(), target); err != nil {
		s.logger.Info("rejected unsafe target",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("url", target.String()),
			zap.Error(err),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	return req.URL.Value, target, true
}

func (s *Server) extractFailed(w http.ResponseWriter, r *http.Request, target *url.URL, err error) {
	var unsafe *ssrf.UnsafeTargetError
	if errors.As(err, &unsafe) {
		writeError(w, http.StatusBadRequest, unsafe.Reason)
		return
	}
	s.logger.Warn("extraction failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("url", target.String()),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, msgExtractFailed+err.Error())
}

func (s *Server) match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeBody(w, r, &req); err != nil {
		if errors.Is(err, errMalformedBody) {
			writeError(w, http.StatusBadRequest, msgInvalidJSON)
		} else {
			writeError(w, http.StatusBadRequest, msgInvalidMatch)
		}
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidMatch)
		return
	}

	mr := assembler.MatchRequest{
		Family: req.Family.Value,
		Weight: req.Weight.Value,
		Style:  fontutil.Style(req.Style.Value),
	}
	if fontutil.CollapseSpaces(mr.Family) == "" {
		writeError(w, http.StatusBadRequest, msgFamilyRequired)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Assembler.Match(mr))
}

func (s *Server) proxyFont(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := signing.Params{
		EncodedURL:     q.Get("u"),
		EncodedReferer: q.Get("r"),
		Download:       q.Get("d"),
		Token:          q.Get("t"),
	}
	if params.EncodedURL == "" || params.EncodedReferer == "" || params.Token == "" || params.Download == "" {
		s.proxyError(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	if params.Download != "0" && params.Download != "1" {
		s.proxyError(w, http.StatusBadRequest, msgInvalidDownload)
		return
	}
	if err := s.deps.Verifier.Verify(params); err != nil {
		level := zap.DebugLevel
		if errors.Is(err, signing.ErrMissingSecret) {
			level = zap.ErrorLevel
		}
		s.logger.Log(level, "font token rejected",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		s.proxyError(w, http.StatusForbidden, msgInvalidToken)
		return
	}

	rawURL, referer, err := signing.Decode(params)
	if err != nil {
		s.proxyError(w, http.StatusBadRequest, msgInvalidEncoding)
		return
	}
	fontURL, err := url.Parse(rawURL)
	if err != nil || !fontURL.IsAbs() || fontURL.Host == "" {
		s.proxyError(w, http.StatusBadRequest, msgInvalidFontURL)
		return
	}

	upstream, err := s.deps.Fonts.Fetch(r.Context(), fontURL, referer)
	if err != nil {
		s.upstreamError(w, r, fontURL, err)
		return
	}
	defer upstream.Close() //nolint:errcheck

	if err := upstream.Validate(); err != nil {
		s.upstreamError(w, r, fontURL, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", upstream.ContentType())
	h.Set("Cache-Control", fontCacheControl)
	if n := upstream.ContentLength(); n >= 0 {
		h.Set("Content-Length", strconv.FormatInt(n, 10))
	}
	if params.Download == "1" {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": upstream.Filename()}))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, upstream.Body())
	telemetry.ObserveFetchBytes("font", int(n))
	switch {
	case errors.Is(err, fontproxy.ErrTooLarge):
		telemetry.ObserveProxyRequest(http.StatusRequestEntityTooLarge)
		s.logger.Warn("font stream exceeded size cap",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("url", fontURL.String()),
			zap.Int64("bytes", n),
		)
		// Headers are gone; dropping the connection is the only way to
		// tell the client the body is incomplete.
		panic(http.ErrAbortHandler)
	case err != nil:
		telemetry.ObserveProxyRequest(http.StatusBadGateway)
		s.logger.Debug("font stream interrupted",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
	default:
		telemetry.ObserveProxyRequest(http.StatusOK)
	}
}

func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, fontURL *url.URL, err error) {
	var (
		unsafe *ssrf.UnsafeTargetError
		status *fontproxy.StatusError
	)
	switch {
	case errors.Is(err, ssrf.ErrUnresolvable):
		s.proxyError(w, http.StatusBadGateway, ssrf.ErrUnresolvable.Reason)
	case errors.As(err, &unsafe):
		s.proxyError(w, http.StatusBadRequest, unsafe.Reason)
	case errors.As(err, &status):
		s.proxyError(w, status.Code, status.Message)
	default:
		s.proxyError(w, http.StatusBadGateway, msgUpstreamFetchFail)
	}
	s.logger.Info("font proxy upstream rejected",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("url", fontURL.String()),
		zap.Error(err),
	)
}

func (s *Server) proxyError(w http.ResponseWriter, code int, msg string) {
	telemetry.ObserveProxyRequest(code)
	writeError(w, code, msg)
}
