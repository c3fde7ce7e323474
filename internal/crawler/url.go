package crawler

import (
	"net/url"
	"strings"
)

// visitKey standardizes a stylesheet URL so trivially different spellings
// are crawled once. It lowercases the scheme and host, removes default ports
// and drops the fragment.
func visitKey(u *url.URL) string {
	cp := *u
	cp.Scheme = strings.ToLower(cp.Scheme)
	cp.Host = strings.ToLower(cp.Host)
	if cp.Scheme == "http" && strings.HasSuffix(cp.Host, ":80") {
		cp.Host = strings.TrimSuffix(cp.Host, ":80")
	}
	if cp.Scheme == "https" && strings.HasSuffix(cp.Host, ":443") {
		cp.Host = strings.TrimSuffix(cp.Host, ":443")
	}
	cp.Fragment = ""
	cp.RawFragment = ""
	return cp.String()
}

func sameHost(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}

// refererFor is the page origin with a trailing slash.
func refererFor(u *url.URL) string {
	return u.Scheme + "://" + u.Host + "/"
}
