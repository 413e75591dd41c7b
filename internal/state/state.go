// Package state tracks process-lifetime request counters reported by the
// health endpoint.
package state

import (
	"sync/atomic"
	"time"
)

// Tracker holds the start time, request count and last-request time of the
// process. The values are advisory; all methods are safe for concurrent use.
type Tracker struct {
	started     time.Time
	requests    atomic.Int64
	lastRequest atomic.Int64 // unix nanoseconds, 0 until the first request
	now         func() time.Time
}

// Snapshot is a point-in-time copy of the tracker.
type Snapshot struct {
	Started     time.Time
	Uptime      time.Duration
	Requests    int64
	LastRequest time.Time // zero if no request has been seen
}

// NewTracker creates a Tracker started now.
func NewTracker() *Tracker {
	return newTrackerWithClock(time.Now)
}

func newTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{started: now(), now: now}
}

// Record counts one inbound request.
func (t *Tracker) Record() {
	t.requests.Add(1)
	t.lastRequest.Store(t.now().UnixNano())
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	now := t.now()
	s := Snapshot{
		Started:  t.started,
		Uptime:   now.Sub(t.started),
		Requests: t.requests.Load(),
	}
	if ns := t.lastRequest.Load(); ns != 0 {
		s.LastRequest = time.Unix(0, ns).UTC()
	}
	return s
}
