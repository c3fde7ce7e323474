// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/fontsnatcher/internal/crawler"
	"github.com/JakeFAU/fontsnatcher/internal/fontproxy"
	"github.com/JakeFAU/fontsnatcher/internal/signing"
	"github.com/JakeFAU/fontsnatcher/internal/telemetry"
)

// EnvPrefix is prepended to every environment override, e.g.
// FONTSNATCHER_SERVER_PORT.
const EnvPrefix = "FONTSNATCHER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	DNS       DNSConfig       `mapstructure:"dns"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Licensing LicensingConfig `mapstructure:"licensing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int  `mapstructure:"port"`
	ReadTimeoutSeconds    int  `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds   int  `mapstructure:"write_timeout_seconds"`
	RequestTimeoutSeconds int  `mapstructure:"request_timeout_seconds"`
	TrustProxy            bool `mapstructure:"trust_proxy"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig bounds a single extraction.
type CrawlerConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxHTMLBytes   int64  `mapstructure:"max_html_bytes"`
	MaxCSSBytes    int64  `mapstructure:"max_css_bytes"`
	MaxStylesheets int    `mapstructure:"max_stylesheets"`
	MaxImportDepth int    `mapstructure:"max_import_depth"`
	Concurrency    int    `mapstructure:"concurrency"`
	UserAgent      string `mapstructure:"user_agent"`
}

// ProxyConfig configures the signed font proxy.
type ProxyConfig struct {
	Secret          string `mapstructure:"secret"`
	TokenTTLSeconds int    `mapstructure:"token_ttl_seconds"`
	MaxBytes        int64  `mapstructure:"max_bytes"`
	MaxRedirects    int    `mapstructure:"max_redirects"`
	UserAgent       string `mapstructure:"user_agent"`
}

// DNSConfig controls the guard's resolution cache and extra host denials.
type DNSConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
	// DeniedHosts are exact hostnames or "*.suffix" patterns that are never
	// crawled or proxied.
	DeniedHosts []string `mapstructure:"denied_hosts"`
}

// CatalogConfig optionally replaces the bundled catalog snapshot.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// LicensingConfig optionally replaces the bundled paid-font table.
type LicensingConfig struct {
	PaidTablePath string `mapstructure:"paid_table_path"`
}

// RateLimitConfig sets per-client API limits. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// TracingConfig picks the span exporter: none, stdout, or otlp.
type TracingConfig struct {
	Exporter   string  `mapstructure:"exporter"`
	Protocol   string  `mapstructure:"protocol"`
	Endpoint   string  `mapstructure:"endpoint"`
	Insecure   bool    `mapstructure:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 120)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("crawler.timeout_seconds", int(crawler.DefaultTimeout/time.Second))
	v.SetDefault("crawler.max_html_bytes", crawler.DefaultMaxHTMLBytes)
	v.SetDefault("crawler.max_css_bytes", crawler.DefaultMaxCSSBytes)
	v.SetDefault("crawler.max_stylesheets", crawler.DefaultMaxStylesheets)
	v.SetDefault("crawler.max_import_depth", crawler.DefaultMaxImportDepth)
	v.SetDefault("crawler.concurrency", crawler.DefaultFetchConcurrency)
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("proxy.secret", "")
	v.SetDefault("proxy.token_ttl_seconds", int(signing.DefaultTTL/time.Second))
	v.SetDefault("proxy.max_bytes", fontproxy.DefaultMaxBytes)
	v.SetDefault("proxy.max_redirects", fontproxy.DefaultMaxRedirects)
	v.SetDefault("proxy.user_agent", "")
	v.SetDefault("dns.cache_ttl_seconds", 300)
	v.SetDefault("catalog.path", "")
	v.SetDefault("licensing.paid_table_path", "")
	v.SetDefault("ratelimit.requests_per_second", 2.0)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("tracing.exporter", telemetry.ExporterNone)
	v.SetDefault("tracing.protocol", "grpc")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_rate", 1.0)
}

// bindLegacyEnv keeps the unprefixed variable names deployments already set.
func bindLegacyEnv(v *viper.Viper) error {
	if err := v.BindEnv("proxy.secret", EnvPrefix+"_PROXY_SECRET", "FONT_PROXY_SECRET"); err != nil {
		return fmt.Errorf("bind proxy secret env: %w", err)
	}
	if err := v.BindEnv("app.environment", EnvPrefix+"_APP_ENVIRONMENT", "APP_ENV"); err != nil {
		return fmt.Errorf("bind environment env: %w", err)
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return errors.New("server.request_timeout_seconds must be > 0")
	}
	if err := c.CrawlerLimits().Validate(); err != nil {
		return fmt.Errorf("crawler: %w", err)
	}
	if c.Proxy.MaxBytes <= 0 {
		return errors.New("proxy.max_bytes must be > 0")
	}
	if c.Proxy.MaxRedirects < 0 {
		return errors.New("proxy.max_redirects must be >= 0")
	}
	if c.Proxy.TokenTTLSeconds <= 0 {
		return errors.New("proxy.token_ttl_seconds must be > 0")
	}
	if c.Production() && len(c.Proxy.Secret) < signing.MinSecretLength {
		return fmt.Errorf("proxy.secret must be at least %d characters in production", signing.MinSecretLength)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("ratelimit values must be >= 0")
	}
	if !telemetry.ValidExporter(c.Tracing.Exporter) {
		return fmt.Errorf("tracing.exporter %q must be none, stdout, or otlp", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.New("tracing.sample_rate must be between 0 and 1")
	}
	return nil
}

// Production reports whether the service runs with production safeguards.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.App.Environment), "production")
}

// CrawlerLimits converts the crawler section into extractor limits.
func (c Config) CrawlerLimits() crawler.Config {
	return crawler.Config{
		Timeout:          time.Duration(c.Crawler.TimeoutSeconds) * time.Second,
		MaxHTMLBytes:     c.Crawler.MaxHTMLBytes,
		MaxCSSBytes:      c.Crawler.MaxCSSBytes,
		MaxStylesheets:   c.Crawler.MaxStylesheets,
		MaxImportDepth:   c.Crawler.MaxImportDepth,
		FetchConcurrency: c.Crawler.Concurrency,
	}
}

// ProxyTTL is the signed URL lifetime.
func (c Config) ProxyTTL() time.Duration {
	return time.Duration(c.Proxy.TokenTTLSeconds) * time.Second
}

// DNSCacheTTL is how long resolved addresses are reused.
func (c Config) DNSCacheTTL() time.Duration {
	return time.Duration(c.DNS.CacheTTLSeconds) * time.Second
}

// TracingOptions converts the tracing section for the telemetry package.
func (c Config) TracingOptions() telemetry.TracingOptions {
	return telemetry.TracingOptions{
		Exporter:   c.Tracing.Exporter,
		Protocol:   c.Tracing.Protocol,
		Endpoint:   c.Tracing.Endpoint,
		Insecure:   c.Tracing.Insecure,
		SampleRate: c.Tracing.SampleRate,
	}
}

// RequestTimeout bounds each JSON API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
