// Package sample provides a zapcore.Core that rate-limits log output
// using time-bucketed reservoir sampling.
//
// Events are collected into fixed-duration buckets and sampled with
// Algorithm R, producing a statistically uniform sample per bucket.
// Multiple budgets can be configured, each pairing a Filter with a
// per-second rate. Events displaced from one budget's reservoir
// cascade to the next matching budget, so earlier budgets act as
// high-priority reservoirs and later ones mop up their overflow.
//
// The engine is pull-free: emitting goroutines drive all work,
// including bucket rotation and the paced release of drained batches.
// No background goroutine is started.
package sample

import (
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/sift/reservoir"
)

// item is a formatted event plus its arrival sequence number.
// Sequence numbers are assigned under the state mutex, so arrival order
// reflects mutex acquisition order, not the wall-clock time of the log
// call.
type item struct {
	seq uint64
	buf *buffer.Buffer
}

// engine holds the sampling state shared by a Core and its With clones.
type engine struct {
	budgets []Budget
	bucket  time.Duration
	writer  WriterFactory
	stats   *Stats

	// now is replaced in tests to drive rotation deterministically.
	now func() time.Time

	// mu guards everything below. It is held for bucket-boundary
	// checks, the reservoir cascade, and release computation, and never
	// during formatting or sink writes.
	mu          sync.Mutex
	bucketStart time.Time
	seq         uint64
	reservoirs  []*reservoir.Reservoir[item]
	pending     []item
	lastRelease time.Time
	deadline    time.Time
}

// Core is a zapcore.Core that samples matching entries into per-budget
// reservoirs and emits each bucket's survivors smeared across the
// following bucket.
//
// Construct via New().Build(). With clones share the sampling state;
// only the encoder (and its accumulated fields) differs per clone.
type Core struct {
	eng *engine
	enc zapcore.Encoder
}

var _ zapcore.Core = (*Core)(nil)

// Enabled reports whether any budget filter could match an entry at
// the given level. zap consults this on each log call before building
// an entry; a false return skips the entry without calling Check.
func (c *Core) Enabled(lvl zapcore.Level) bool {
	for _, b := range c.eng.budgets {
		if b.Filter.Interested(lvl) {
			return true
		}
	}
	return false
}

// With returns a clone of the core whose encoder carries the extra
// fields. The clone shares reservoirs, counters, and bucket state with
// the original.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for i := range fields {
		fields[i].AddTo(enc)
	}
	return &Core{eng: c.eng, enc: enc}
}

// Check registers the core with the checked entry if any budget
// matches. This is the disjunction over budget filters; it takes no
// lock and allocates nothing.
func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.matchMask(ent) != 0 {
		return ce.AddCore(ent, c)
	}
	return ce
}

// matchMask computes the bitmask of budgets whose filter matches ent.
// Bit i corresponds to budget i in declaration order.
func (c *Core) matchMask(ent zapcore.Entry) uint64 {
	var mask uint64
	for i, b := range c.eng.budgets {
		if b.Filter.Matches(ent) {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// Write runs the per-event pipeline: account receipt, advance the
// bucket clock, format, then offer the formatted bytes to each
// matching budget in declaration order.
//
// Formatting happens outside the state mutex on buffers drawn from
// zap's buffer pool; the mutex protects only the cascade. A rotation
// observed here emits the previous bucket's due items before this
// event is offered, so items of bucket i always reach the sink before
// any item of bucket i+1.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	mask := c.matchMask(ent)
	if mask == 0 {
		return nil
	}
	c.eng.stats.received.Add(1)

	if due := c.eng.tick(c.eng.now()); len(due) > 0 {
		c.eng.emit(due)
	}

	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		// Malformed entry: drop it and let zap route the error to its
		// internal error output. The host program never sees it.
		c.eng.stats.dropped.Add(1)
		return err
	}

	c.eng.offer(mask, buf)
	return nil
}

// Sync flushes all reservoirs and the pending queue to the sink.
func (c *Core) Sync() error {
	c.Flush()
	return nil
}

// Flush drains every reservoir plus any pending items and writes them
// synchronously, oldest bucket first, in arrival order.
func (c *Core) Flush() {
	c.eng.flush()
}

// Close tears down the core, flushing best-effort. A panicking encoder
// or sink mid-flush is swallowed: teardown never propagates panics into
// the host program. Stats may slightly undercount across a panic.
func (c *Core) Close() {
	defer func() { _ = recover() }()
	c.eng.flush()
}

// offer assigns the arrival sequence and cascades the formatted event
// through the matching reservoirs. An item that falls through every
// matching budget is dropped and its buffer returned to the pool.
func (e *engine) offer(mask uint64, buf *buffer.Buffer) {
	e.mu.Lock()
	e.seq++
	cur := item{seq: e.seq, buf: buf}
	for i := range e.reservoirs {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		displaced, ejected := e.reservoirs[i].Sample(cur)
		if !ejected {
			e.mu.Unlock()
			e.stats.sampled.Add(1)
			return
		}
		cur = displaced
	}
	e.mu.Unlock()
	e.stats.dropped.Add(1)
	cur.buf.Free()
}

// tick advances the bucket clock and returns the items now due at the
// sink. On a bucket boundary the previous bucket's unreleased pending
// items are due immediately and the freshly drained batch becomes the
// new pending queue; within a bucket, a paced portion of the pending
// queue is due (see release).
func (e *engine) tick(now time.Time) []item {
	e.mu.Lock()
	defer e.mu.Unlock()

	if now.Sub(e.bucketStart) >= e.bucket {
		due := e.pending
		e.pending = e.drainLocked()
		e.lastRelease = now
		e.deadline = now.Add(e.bucket)
		e.bucketStart = now
		return due
	}
	return e.releaseLocked(now)
}

// drainLocked empties every reservoir and sorts the batch by arrival
// sequence. Caller must hold mu.
func (e *engine) drainLocked() []item {
	var drained []item
	for _, r := range e.reservoirs {
		drained = r.Drain(drained)
	}
	sort.Slice(drained, func(i, j int) bool { return drained[i].seq < drained[j].seq })
	return drained
}

// flush drains everything and writes it synchronously. Pending items
// predate the current bucket's survivors, and both runs are sorted, so
// plain concatenation preserves emission order.
func (e *engine) flush() {
	e.mu.Lock()
	due := append(e.pending, e.drainLocked()...)
	e.pending = nil
	e.mu.Unlock()
	e.emit(due)
}

// emit writes a batch to a fresh sink handle. Write errors are
// discarded: log emission must never infect host control flow. Buffers
// return to the pool after the write. If the handle is an io.Closer it
// is closed once the batch is written.
func (e *engine) emit(items []item) {
	if len(items) == 0 {
		return
	}
	w := e.writer()
	for _, it := range items {
		_, _ = w.Write(it.buf.Bytes())
		it.buf.Free()
	}
	if closer, ok := w.(io.Closer); ok {
		_ = closer.Close()
	}
}
