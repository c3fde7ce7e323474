package ssrf

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/fontsnatcher/internal/telemetry"
)

// DefaultDNSCacheTTL bounds how long a resolved host is trusted.
const DefaultDNSCacheTTL = 5 * time.Minute

// Resolver resolves hostnames to addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

type dnsEntry struct {
	addrs     []netip.Addr
	expiresAt time.Time
}

// DNSCache memoizes host resolutions for a fixed TTL. Entries are only
// invalidated by expiry. Concurrent misses for the same host share one lookup.
type DNSCache struct {
	resolver Resolver
	ttl      time.Duration
	clock    Clock

	mu      sync.RWMutex
	entries map[string]dnsEntry
	group   singleflight.Group
}

// DNSCacheOption customizes a DNSCache.
type DNSCacheOption func(*DNSCache)

// WithResolver swaps the resolver used on cache misses.
func WithResolver(r Resolver) DNSCacheOption {
	return func(c *DNSCache) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithTTL overrides DefaultDNSCacheTTL.
func WithTTL(ttl time.Duration) DNSCacheOption {
	return func(c *DNSCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the wall clock used for expiry.
func WithClock(clock Clock) DNSCacheOption {
	return func(c *DNSCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewDNSCache builds a cache backed by net.DefaultResolver unless overridden.
func NewDNSCache(opts ...DNSCacheOption) *DNSCache {
	c := &DNSCache{
		resolver: net.DefaultResolver,
		ttl:      DefaultDNSCacheTTL,
		clock:    wallClock{},
		entries:  make(map[string]dnsEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns every address host resolves to. Failed lookups are not cached.
func (c *DNSCache) Lookup(ctx context.Context, host string) ([]netip.Addr, error) {
	key := strings.ToLower(host)
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		telemetry.ObserveDNSLookup("hit")
		return entry.addrs, nil
	}
	telemetry.ObserveDNSLookup("miss")

	v, err, _ := c.group.Do(key, func() (any, error) {
		addrs, err := c.resolver.LookupNetIP(ctx, "ip", key)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", key, err)
		}
		c.mu.Lock()
		c.entries[key] = dnsEntry{addrs: addrs, expiresAt: c.clock.Now().Add(c.ttl)}
		c.mu.Unlock()
		return addrs, nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped inside the singleflight call
	}
	addrs, _ := v.([]netip.Addr)
	return addrs, nil
}

// Len reports the number of cached hosts, expired or not.
func (c *DNSCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
