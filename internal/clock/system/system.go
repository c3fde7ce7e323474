// Package system provides the wall clock shared by the extractor, the
// response assembler, and the DNS cache.
package system

import "time"

// Clock reports the current time in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time. The monotonic reading is kept so
// durations measured between two calls stay correct.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
