// Package system provides the wall clock behind article timestamps.
package system

import "time"

// Clock implements news.Clock using time.Now. Timestamps are taken in UTC
// so first_seen/last_seen ordering survives crawler hosts in different zones.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
