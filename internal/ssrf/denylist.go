package ssrf

import "strings"

// hostDenylist holds exact hosts and suffix wildcards that an operator has
// barred in addition to the built-in internal names.
type hostDenylist struct {
	exact    map[string]struct{}
	suffixes []string
}

// newHostDenylist accepts "host", "*.suffix" and ".suffix" patterns. It
// returns nil when no usable pattern is given.
func newHostDenylist(patterns []string) *hostDenylist {
	d := &hostDenylist{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		switch {
		case strings.HasPrefix(value, "*."):
			d.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			d.addSuffix(strings.TrimPrefix(value, "."))
		default:
			// A lone wildcard is not a host name.
			if host := strings.TrimSuffix(value, "."); host != "" && host != "*" {
				d.exact[host] = struct{}{}
			}
		}
	}
	if len(d.exact) == 0 && len(d.suffixes) == 0 {
		return nil
	}
	return d
}

func (d *hostDenylist) addSuffix(suffix string) {
	suffix = strings.TrimSuffix(suffix, ".")
	if suffix == "" {
		return
	}
	for _, existing := range d.suffixes {
		if existing == suffix {
			return
		}
	}
	d.suffixes = append(d.suffixes, suffix)
}

// Denies reports whether host matches a pattern. A suffix pattern also
// matches the bare suffix itself.
func (d *hostDenylist) Denies(host string) bool {
	if d == nil {
		return false
	}
	host = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(host)), ".")
	if host == "" {
		return false
	}
	if _, ok := d.exact[host]; ok {
		return true
	}
	for _, suffix := range d.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
