// Package crawler discovers the web fonts a single page serves: it fetches the
// page, walks its stylesheets and @import chains within fixed limits, and
// returns a deduplicated list of font sources with warnings and counters.
package crawler
