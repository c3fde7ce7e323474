package crawler

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/fontsnatcher/internal/clock/system"
	"github.com/JakeFAU/fontsnatcher/internal/cssfont"
	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
	"github.com/JakeFAU/fontsnatcher/internal/telemetry"
)

// Accept headers sent upstream.
const (
	AcceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	AcceptCSS  = "text/css,*/*;q=0.1"
)

// Extractor runs single-page font extractions.
type Extractor struct {
	cfg     Config
	fetcher Fetcher
	guard   Guard
	clock   Clock
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewExtractor wires an Extractor. A nil logger or clock falls back to a no-op
// logger and the system clock.
func NewExtractor(cfg Config, fetcher Fetcher, guard Guard, clock Clock, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Extractor{
		cfg:     cfg,
		fetcher: fetcher,
		guard:   guard,
		clock:   clock,
		logger:  logger.Named("crawler"),
		tracer:  telemetry.Tracer("crawler"),
	}
}

type queuedSheet struct {
	url   string
	depth int
}

// crawlState is the mutable state of one extraction. It is only touched by
// the goroutine running Extract.
type crawlState struct {
	referer    string
	refererURL *url.URL
	queue      []queuedSheet
	visited    map[string]struct{}
	warnings   []string
	fonts      []fontutil.FontSource
	sheetCount int
	fontFaces  int
	stopped    bool
}

func (s *crawlState) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

func (s *crawlState) addFonts(fonts []fontutil.FontSource) {
	s.fontFaces += len(fonts)
	s.fonts = append(s.fonts, fonts...)
}

// Extract fetches pageURL, crawls its stylesheets and returns the unique font
// sources found. Only a failed page fetch is fatal; everything else degrades
// to a warning.
func (e *Extractor) Extract(ctx context.Context, pageURL *url.URL) (Result, error) {
	start := e.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	ctx, span := e.tracer.Start(ctx, "crawler.Extract", trace.WithAttributes(attribute.String("page.url", pageURL.String())))
	defer span.End()

	result, err := e.extract(ctx, pageURL)
	elapsed := e.clock.Now().Sub(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.ObserveExtraction("failure", 0, elapsed)
		e.logger.Warn("extraction failed", zap.String("url", pageURL.String()), zap.Error(err))
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Int("stylesheets", result.Stats.StylesheetCount),
		attribute.Int("fonts.unique", result.Stats.UniqueFontCount),
	)
	telemetry.ObserveExtraction("success", result.Stats.UniqueFontCount, elapsed)
	e.logger.Info("extraction finished",
		zap.String("url", pageURL.String()),
		zap.Int("stylesheets", result.Stats.StylesheetCount),
		zap.Int("font_faces", result.Stats.FontFaceCount),
		zap.Int("unique_fonts", result.Stats.UniqueFontCount),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}

func (e *Extractor) extract(ctx context.Context, pageURL *url.URL) (Result, error) {
	state := &crawlState{
		referer:    refererFor(pageURL),
		refererURL: pageURL,
		visited:    make(map[string]struct{}),
		warnings:   []string{},
	}

	page, err := e.fetcher.Fetch(ctx, FetchRequest{
		URL:      pageURL.String(),
		Accept:   AcceptHTML,
		MaxBytes: e.cfg.MaxHTMLBytes,
	})
	if err != nil {
		return Result{}, fmt.Errorf("website fetch failed: %w", err)
	}
	if !page.OK() {
		return Result{}, fmt.Errorf("Website fetch failed (%d).", page.StatusCode) //nolint:staticcheck // surfaced verbatim
	}
	telemetry.ObserveFetchBytes("html", len(page.Body))
	if page.Truncated {
		state.warn("Truncated HTML at %d bytes; extracted from partial document.", e.cfg.MaxHTMLBytes)
	}

	doc, err := ParseDocument(string(page.Body), pageURL)
	if err != nil {
		return Result{}, err
	}
	for _, href := range doc.Stylesheets {
		state.queue = append(state.queue, queuedSheet{url: href})
	}
	for _, inline := range doc.InlineStyles {
		parsed, perr := cssfont.Parse(inline, pageURL.String())
		if perr != nil {
			state.warn("Skipped inline style: %s", perr.Error())
			continue
		}
		state.addFonts(parsed.Fonts)
		for _, imported := range parsed.Imports {
			state.queue = append(state.queue, queuedSheet{url: imported})
		}
	}

	e.crawl(ctx, state)
	e.addPreloads(state, doc.Preloads)

	unique := Deduplicate(state.fonts)
	return Result{
		PageURL:  pageURL.String(),
		Referer:  state.referer,
		Warnings: state.warnings,
		Stats: Stats{
			StylesheetCount: state.sheetCount,
			FontFaceCount:   state.fontFaces,
			UniqueFontCount: len(unique),
		},
		Fonts: unique,
	}, nil
}

// planStep is one queue entry after admission: either a warning to emit or a
// stylesheet to fetch. Steps are folded in queue order so concurrent fetching
// produces the same output as a sequential crawl.
type planStep struct {
	sheet   queuedSheet
	warning string
	fetch   bool
	outcome sheetOutcome
}

type sheetOutcome struct {
	parsed    cssfont.Result
	truncated bool
	err       error
}

// crawl processes the queue breadth first, one import depth per round.
func (e *Extractor) crawl(ctx context.Context, state *crawlState) {
	for len(state.queue) > 0 && !state.stopped {
		level := state.queue
		state.queue = nil

		plan := e.admit(ctx, state, level)
		e.fetchPlan(ctx, state.referer, plan)

		for i := range plan {
			step := &plan[i]
			if !step.fetch {
				state.warnings = append(state.warnings, step.warning)
				continue
			}
			out := step.outcome
			if out.err != nil {
				telemetry.ObserveStylesheet("failed")
				state.warn("Skipped stylesheet %s: %s", step.sheet.url, out.err.Error())
				continue
			}
			if out.truncated {
				telemetry.ObserveStylesheet("truncated")
				state.warn("Truncated stylesheet at %d bytes: %s", e.cfg.MaxCSSBytes, step.sheet.url)
			} else {
				telemetry.ObserveStylesheet("fetched")
			}
			state.addFonts(out.parsed.Fonts)
			for _, imported := range out.parsed.Imports {
				if !state.seen(imported) {
					state.queue = append(state.queue, queuedSheet{url: imported, depth: step.sheet.depth + 1})
				}
			}
		}
		if state.stopped {
			state.warn("Stopped crawl at %d stylesheets.", e.cfg.MaxStylesheets)
		}
	}
}

func (s *crawlState) seen(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	_, ok := s.visited[visitKey(u)]
	return ok
}

// admit applies the depth, safety, revisit and count limits to one level of
// the queue, marking admitted sheets visited.
func (e *Extractor) admit(ctx context.Context, state *crawlState, level []queuedSheet) []planStep {
	plan := make([]planStep, 0, len(level))
	for _, next := range level {
		if next.depth > e.cfg.MaxImportDepth {
			telemetry.ObserveStylesheet("too_deep")
			plan = append(plan, planStep{warning: fmt.Sprintf("Skipped deep @import chain: %s", next.url)})
			continue
		}
		target, err := url.Parse(next.url)
		if err == nil && !sameHost(target, state.refererURL) {
			err = e.guard.AssertSafeTargetURL(ctx, target)
		}
		if err != nil {
			telemetry.ObserveStylesheet("unsafe")
			plan = append(plan, planStep{warning: fmt.Sprintf("Skipped unsafe stylesheet %s: %s", next.url, err.Error())})
			continue
		}
		key := visitKey(target)
		if _, ok := state.visited[key]; ok {
			continue
		}
		if state.sheetCount >= e.cfg.MaxStylesheets {
			state.stopped = true
			break
		}
		state.visited[key] = struct{}{}
		state.sheetCount++
		plan = append(plan, planStep{sheet: next, fetch: true})
	}
	return plan
}

// fetchPlan fetches and parses every admitted sheet with bounded concurrency.
func (e *Extractor) fetchPlan(ctx context.Context, referer string, plan []planStep) {
	var g errgroup.Group
	g.SetLimit(e.cfg.FetchConcurrency)
	for i := range plan {
		if !plan[i].fetch {
			continue
		}
		step := &plan[i]
		g.Go(func() error {
			step.outcome = e.fetchSheet(ctx, referer, step.sheet.url)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Extractor) fetchSheet(ctx context.Context, referer, sheetURL string) sheetOutcome {
	ctx, span := e.tracer.Start(ctx, "crawler.fetchStylesheet", trace.WithAttributes(attribute.String("stylesheet.url", sheetURL)))
	defer span.End()

	resp, err := e.fetcher.Fetch(ctx, FetchRequest{
		URL:      sheetURL,
		Accept:   AcceptCSS,
		Referer:  referer,
		MaxBytes: e.cfg.MaxCSSBytes,
	})
	if err != nil {
		span.RecordError(err)
		return sheetOutcome{err: err}
	}
	if !resp.OK() {
		return sheetOutcome{err: fmt.Errorf("Stylesheet fetch failed (%d).", resp.StatusCode)} //nolint:staticcheck // surfaced verbatim
	}
	telemetry.ObserveFetchBytes("css", len(resp.Body))
	parsed, err := cssfont.Parse(string(resp.Body), sheetURL)
	if err != nil {
		span.RecordError(err)
		return sheetOutcome{err: err, truncated: resp.Truncated}
	}
	return sheetOutcome{parsed: parsed, truncated: resp.Truncated}
}

// addPreloads adds font preloads that no @font-face rule already covers.
func (e *Extractor) addPreloads(state *crawlState, preloads []PreloadLink) {
	existing := make(map[string]struct{}, len(state.fonts))
	for _, f := range state.fonts {
		existing[f.URL] = struct{}{}
	}
	for _, p := range preloads {
		if _, ok := existing[p.URL]; ok {
			continue
		}
		format := fontutil.DetectFormat(p.URL, p.Type)
		if format == fontutil.FormatUnknown {
			continue
		}
		state.addFonts([]fontutil.FontSource{{
			Family:       InferFamilyFromURL(p.URL),
			URL:          p.URL,
			Format:       format,
			Style:        fontutil.StyleNormal,
			SourceCSSURL: state.refererURL.String(),
		}})
	}
}
