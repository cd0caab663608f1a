// Package system provides the real clock used by progress renderers.
package system

import "time"

// Clock implements progress.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time including its monotonic reading, so
// differences between two readings are immune to wall-clock steps.
func (Clock) Now() time.Time {
	return time.Now()
}
