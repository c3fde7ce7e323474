package ssrf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

// UnsafeTargetError is returned for any URL the guard refuses to fetch.
// Reason is safe to show to API callers.
type UnsafeTargetError struct {
	Reason string
}

func (e *UnsafeTargetError) Error() string { return e.Reason }

// Guard rejections. Compare with errors.Is; match the family with errors.As.
var (
	ErrUnsupportedScheme = &UnsafeTargetError{Reason: "Only http/https URLs are allowed."}
	ErrBlockedHost       = &UnsafeTargetError{Reason: "Blocked target host."}
	ErrBlockedIP         = &UnsafeTargetError{Reason: "Blocked private target IP."}
	ErrUnresolvable      = &UnsafeTargetError{Reason: "Unable to resolve target host."}
)

// IsUnsafeTarget reports whether err came from a guard rejection.
func IsUnsafeTarget(err error) bool {
	var target *UnsafeTargetError
	return errors.As(err, &target)
}

// Guard validates outbound targets against the private-network policy.
type Guard struct {
	cache  *DNSCache
	deny   *hostDenylist
	dialer *net.Dialer
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithDeniedHosts bars extra hosts. Patterns are exact names or "*.suffix".
func WithDeniedHosts(patterns []string) GuardOption {
	return func(g *Guard) {
		g.deny = newHostDenylist(patterns)
	}
}

// NewGuard builds a Guard resolving names through cache.
func NewGuard(cache *DNSCache, opts ...GuardOption) *Guard {
	if cache == nil {
		cache = NewDNSCache()
	}
	g := &Guard{
		cache: cache,
		dialer: &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AssertSafeTargetURL returns nil only when u is http(s), its host is not an
// internal name, and every address it resolves to is public.
func (g *Guard) AssertSafeTargetURL(ctx context.Context, u *url.URL) error {
	if u == nil {
		return ErrUnsupportedScheme
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsupportedScheme
	}
	_, err := g.vet(ctx, u.Hostname())
	return err
}

// vet applies the hostname and address checks and returns the addresses that
// may be dialed for host.
func (g *Guard) vet(ctx context.Context, host string) ([]netip.Addr, error) {
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "" || IsBlockedHostname(host) || g.deny.Denies(host) {
		return nil, ErrBlockedHost
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if IsPrivateIP(addr) {
			return nil, ErrBlockedIP
		}
		return []netip.Addr{addr}, nil
	}
	addrs, err := g.cache.Lookup(ctx, host)
	if err != nil || len(addrs) == 0 {
		return nil, ErrUnresolvable
	}
	for _, addr := range addrs {
		if IsPrivateIP(addr) {
			return nil, ErrBlockedIP
		}
	}
	return addrs, nil
}

// DialContext resolves and vets addr, then connects to a vetted IP so the
// address checked is the address used.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("split dial address: %w", err)
	}
	addrs, err := g.vet(ctx, host)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, ip := range addrs {
		conn, dialErr := g.dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		if dialErr == nil {
			return conn, nil
		}
		lastErr = dialErr
	}
	return nil, fmt.Errorf("dial %s: %w", host, lastErr)
}

// CheckRedirect is an http.Client CheckRedirect hook that re-validates every
// hop and caps the chain at maxHops.
func (g *Guard) CheckRedirect(maxHops int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return fmt.Errorf("stopped after %d redirects", maxHops)
		}
		return g.AssertSafeTargetURL(req.Context(), req.URL)
	}
}

// NewTransport returns an http.Transport whose every connection goes through
// the guard. Environment proxies are ignored since they would hide the
// real destination from the dial check.
func NewTransport(g *Guard) *http.Transport {
	return &http.Transport{
		Proxy:                 nil,
		DialContext:           g.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
