package sample

import "sync/atomic"

// Stats is the shared handle for reading engine event counters.
//
// Returned by Builder.Build. All counts are cumulative since the core
// was built. Counters use relaxed atomics: they are observational and
// never used for coordination, so a reader racing the pipeline may see
// received briefly ahead of sampled+dropped by the number of in-flight
// events.
type Stats struct {
	received atomic.Uint64
	sampled  atomic.Uint64
	dropped  atomic.Uint64
}

// Received reports events that matched at least one budget filter.
func (s *Stats) Received() uint64 { return s.received.Load() }

// Sampled reports events accepted into some reservoir.
func (s *Stats) Sampled() uint64 { return s.sampled.Load() }

// Dropped reports events that were formatted but evicted by every
// matching budget, or that failed to format.
func (s *Stats) Dropped() uint64 { return s.dropped.Load() }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Received uint64
	Sampled  uint64
	Dropped  uint64
}

// Snapshot returns a copy of the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Received: s.received.Load(),
		Sampled:  s.sampled.Load(),
		Dropped:  s.dropped.Load(),
	}
}
