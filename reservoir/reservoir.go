// Package reservoir implements single-pass uniform sampling of a stream
// into a fixed number of slots (Algorithm R).
//
// A Reservoir holds at most K items. After N items have been offered,
// each of them occupies a slot with probability K/N. Sampling reports
// the item displaced by each offer, which lets callers chain reservoirs:
// an item ejected from one reservoir can be offered to the next.
//
// Reservoirs are not safe for concurrent use; callers serialize access.
package reservoir

import "math/rand/v2"

// Reservoir is a fixed-capacity uniform sample of a stream.
type Reservoir[T any] struct {
	count int
	slots []T
	rng   *rand.Rand
}

// New creates a reservoir with the given capacity.
// Capacity must be positive.
func New[T any](capacity int) *Reservoir[T] {
	return newReservoir[T](capacity, rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewSeeded creates a reservoir with a deterministic random source.
// Used for reproducible sampling in tests and demos.
func NewSeeded[T any](capacity int, seed uint64) *Reservoir[T] {
	return newReservoir[T](capacity, rand.NewPCG(seed, 0))
}

func newReservoir[T any](capacity int, src rand.Source) *Reservoir[T] {
	if capacity <= 0 {
		panic("reservoir: capacity must be positive")
	}
	return &Reservoir[T]{
		slots: make([]T, capacity),
		rng:   rand.New(src),
	}
}

// Sample offers an item to the reservoir.
//
// If the reservoir retains the item, ejected is false and displaced is
// the zero value. Otherwise ejected is true and displaced is the item
// pushed out to make room, possibly v itself, when the offer loses the
// replacement draw.
func (r *Reservoir[T]) Sample(v T) (displaced T, ejected bool) {
	r.count++
	if r.count <= len(r.slots) {
		r.slots[r.count-1] = v
		var zero T
		return zero, false
	}
	j := r.rng.IntN(r.count)
	if j < len(r.slots) {
		displaced = r.slots[j]
		r.slots[j] = v
		return displaced, true
	}
	return v, true
}

// Drain appends the retained items to dst, clears the slots, and resets
// the offer count. The in-slot order carries no meaning once the
// reservoir has overflowed; callers needing a stable order sort the
// result themselves.
func (r *Reservoir[T]) Drain(dst []T) []T {
	n := min(r.count, len(r.slots))
	var zero T
	for i := range n {
		dst = append(dst, r.slots[i])
		r.slots[i] = zero
	}
	r.count = 0
	return dst
}

// Count reports how many items have been offered since the last drain.
// May exceed the capacity.
func (r *Reservoir[T]) Count() int { return r.count }

// Cap reports the reservoir capacity.
func (r *Reservoir[T]) Cap() int { return len(r.slots) }
