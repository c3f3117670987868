package progress

import "time"

// DefaultInterval is the minimum spacing between admitted records of one job.
const DefaultInterval = 500 * time.Millisecond

// Gate bounds how often progress is forwarded. It keeps no backlog: a
// snapshot that is not admitted is simply dropped.
//
// A Gate belongs to one job and is not safe for concurrent use.
type Gate struct {
	interval time.Duration
	last     time.Time
}

// NewGate returns a gate that admits at most one snapshot per interval.
// A non-positive interval admits everything.
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval}
}

// Admit reports whether a snapshot arriving at now should be forwarded,
// recording now as the last emission when it is. The first call always admits.
func (g *Gate) Admit(now time.Time) bool {
	if g.interval <= 0 {
		g.last = now
		return true
	}
	if !g.last.IsZero() && now.Sub(g.last) <= g.interval {
		return false
	}
	g.last = now
	return true
}
