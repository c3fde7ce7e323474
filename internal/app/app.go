// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/fontsnatcher/internal/api"
	"github.com/JakeFAU/fontsnatcher/internal/assembler"
	"github.com/JakeFAU/fontsnatcher/internal/catalog"
	"github.com/JakeFAU/fontsnatcher/internal/clock/system"
	"github.com/JakeFAU/fontsnatcher/internal/config"
	"github.com/JakeFAU/fontsnatcher/internal/crawler"
	collyfetcher "github.com/JakeFAU/fontsnatcher/internal/fetcher/colly"
	"github.com/JakeFAU/fontsnatcher/internal/fontproxy"
	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
	"github.com/JakeFAU/fontsnatcher/internal/licensing"
	"github.com/JakeFAU/fontsnatcher/internal/ratelimit"
	"github.com/JakeFAU/fontsnatcher/internal/signing"
	"github.com/JakeFAU/fontsnatcher/internal/ssrf"
	"github.com/JakeFAU/fontsnatcher/internal/telemetry"
)

// ServiceName identifies the service in traces.
const ServiceName = "fontsnatcher"

// ErrEmptyCatalog is reported by Ready when no catalog entries loaded.
var ErrEmptyCatalog = errors.New("font catalog is empty")

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and passed to the commands that need it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	catalog   *catalog.Catalog
	guard     *ssrf.Guard
	signer    *signing.Signer
	assembler *assembler.Assembler
	proxy     *fontproxy.Proxy
	limiter   *ratelimit.Limiter
	tracer    *sdktrace.TracerProvider
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// New creates and initializes the App from cfg. It fails fast when the
// catalog or the paid table cannot be loaded.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, version string) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initializing application services...")

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("Font catalog loaded", zap.Int("families", cat.Len()), zap.String("path", cfg.Catalog.Path))

	table, err := loadPaidTable(cfg.Licensing.PaidTablePath)
	if err != nil {
		return nil, err
	}
	logger.Info("Paid font table loaded",
		zap.Int("families", len(table.Families)),
		zap.Int("hosts", len(table.Hosts)),
	)

	tp, err := telemetry.InitTracerProvider(ctx, ServiceName, version, cfg.TracingOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	clock := system.New()
	guard := ssrf.NewGuard(ssrf.NewDNSCache(
		ssrf.WithTTL(cfg.DNSCacheTTL()),
		ssrf.WithClock(clock),
	), ssrf.WithDeniedHosts(cfg.DNS.DeniedHosts))
	transport := ssrf.NewTransport(guard)

	limits := cfg.CrawlerLimits()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   limits.Timeout,
	}, transport, guard)
	extractor := crawler.NewExtractor(limits, fetcher, guard, clock, logger)

	if len(cfg.Proxy.Secret) < signing.MinSecretLength && !cfg.Production() {
		logger.Warn("No proxy secret configured; font URLs are signed with a per-process key")
	}
	signer := signing.New(cfg.Proxy.Secret, cfg.Production(), signing.WithTTL(cfg.ProxyTTL()))

	proxy := fontproxy.New(fontproxy.Config{
		MaxBytes:     cfg.Proxy.MaxBytes,
		MaxRedirects: cfg.Proxy.MaxRedirects,
		UserAgent:    cfg.Proxy.UserAgent,
	}, fontproxy.NewClient(transport), guard, logger)

	classifier := licensing.NewClassifier(cat, table)
	asm := assembler.New(extractor, signer, classifier, cat, clock)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})

	logger.Info("Application services initialized successfully.")
	return &App{
		cfg:       cfg,
		logger:    logger,
		catalog:   cat,
		guard:     guard,
		signer:    signer,
		assembler: asm,
		proxy:     proxy,
		limiter:   limiter,
		tracer:    tp,
	}, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		cat, err := catalog.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load bundled catalog: %w", err)
		}
		return cat, nil
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

func loadPaidTable(path string) (licensing.PaidTable, error) {
	if path == "" {
		table, err := licensing.DefaultPaidTable()
		if err != nil {
			return licensing.PaidTable{}, fmt.Errorf("failed to load bundled paid table: %w", err)
		}
		return table, nil
	}
	table, err := licensing.LoadPaidTable(path)
	if err != nil {
		return licensing.PaidTable{}, fmt.Errorf("failed to load paid table: %w", err)
	}
	return table, nil
}

// ExtractFonts applies the same URL normalization and target checks as the
// HTTP API, then crawls raw and returns the detailed response.
func (a *App) ExtractFonts(ctx context.Context, raw string) (assembler.ExtractFontsResponse, error) {
	target, err := fontutil.NormalizeInputURL(raw)
	if err != nil {
		return assembler.ExtractFontsResponse{}, fmt.Errorf("normalize url: %w", err)
	}
	if err := a.guard.AssertSafeTargetURL(ctx, target); err != nil {
		return assembler.ExtractFontsResponse{}, fmt.Errorf("check target: %w", err)
	}
	return a.assembler.ExtractFonts(ctx, raw, target) //nolint:wrapcheck
}

// Match ranks open alternatives for one family.
func (a *App) Match(req assembler.MatchRequest) assembler.MatchResponse {
	return a.assembler.Match(req)
}

// Ready reports whether the catalog is usable.
func (a *App) Ready() error {
	if a.catalog.Len() == 0 {
		return ErrEmptyCatalog
	}
	return nil
}

// Handler builds the HTTP API over the app's services.
func (a *App) Handler() http.Handler {
	server := api.NewServer(api.Deps{
		Assembler: a.assembler,
		Guard:     a.guard,
		Verifier:  a.signer,
		Fonts:     a.proxy,
		Limiter:   a.limiter,
		Ready:     a.Ready,
	}, api.Options{
		RequestTimeout: a.cfg.RequestTimeout(),
		TrustProxy:     a.cfg.Server.TrustProxy,
	}, a.logger)
	return server.Handler()
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("Shutting down application services...")
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("Error shutting down tracer provider", zap.Error(err))
		}
	}
	// Sync returns an error for stderr on most platforms.
	_ = a.logger.Sync()
}
