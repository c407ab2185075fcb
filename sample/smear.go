package sample

import "time"

// releaseLocked computes how many pending items are due at now.
//
// A drained batch is not written in one burst: it is parked in the
// pending queue with a deadline one bucket after the rotation that
// produced it, and released a few items at a time as later events pass
// through the pipeline. The release interval is recomputed on every
// call as remaining-time / pending-count, so emission amortizes evenly
// over the bucket regardless of event cadence. Past the deadline
// everything still pending is due at once.
//
// Caller must hold mu. The returned slice aliases the old queue; the
// queue is advanced past it.
func (e *engine) releaseLocked(now time.Time) []item {
	n := len(e.pending)
	if n == 0 {
		return nil
	}
	if !now.Before(e.deadline) {
		due := e.pending
		e.pending = nil
		return due
	}
	interval := e.deadline.Sub(now) / time.Duration(n)
	if interval <= 0 {
		due := e.pending
		e.pending = nil
		return due
	}
	k := int(now.Sub(e.lastRelease) / interval)
	if k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	due := e.pending[:k]
	e.pending = e.pending[k:]
	e.lastRelease = now
	return due
}
