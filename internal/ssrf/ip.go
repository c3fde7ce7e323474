// Package ssrf decides whether an outbound URL may be fetched and enforces
// that decision again at connect time.
package ssrf

import (
	"net/netip"
	"strings"
)

var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
}

var blockedSuffixes = []string{".localhost", ".local", ".internal", ".test"}

var (
	linkLocalV6   = netip.MustParsePrefix("fe80::/10")
	uniqueLocalV6 = netip.MustParsePrefix("fc00::/7")
)

// IsBlockedHostname reports whether host names an internal endpoint by name.
func IsBlockedHostname(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if _, ok := blockedHostnames[host]; ok {
		return true
	}
	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// IsPrivateIPString classifies a textual address. Anything that does not
// parse as an IP is treated as private.
func IsPrivateIPString(raw string) bool {
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return true
	}
	return IsPrivateIP(addr)
}

// IsPrivateIP reports whether addr falls in a loopback, private, link-local,
// shared, documentation, benchmarking, multicast or reserved range.
func IsPrivateIP(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	addr = addr.WithZone("")
	if addr.Is4In6() {
		return isPrivateIPv4(addr.Unmap())
	}
	if addr.Is4() {
		return isPrivateIPv4(addr)
	}
	switch {
	case addr.IsUnspecified(), addr.IsLoopback():
		return true
	case linkLocalV6.Contains(addr), uniqueLocalV6.Contains(addr):
		return true
	}
	return false
}

func isPrivateIPv4(addr netip.Addr) bool {
	octets := addr.As4()
	a, b := octets[0], octets[1]
	switch {
	case a == 0, a == 10, a == 127:
		return true
	case a == 100 && b >= 64 && b <= 127:
		return true
	case a == 169 && b == 254:
		return true
	case a == 172 && b >= 16 && b <= 31:
		return true
	case a == 192 && (b == 0 || b == 168):
		return true
	case a == 198 && (b == 18 || b == 19 || b == 51):
		return true
	case a == 203 && b == 0:
		return true
	case a >= 224:
		return true
	}
	return false
}
