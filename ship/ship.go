// Package ship forwards emitted sample batches to downstream systems.
//
// The sampling core hands each emission batch to a per-call sink
// writer; Writer adapts a Shipper into that shape, turning every batch
// into a single Ship call. Shipping is best-effort: a failed batch is
// gone, mirroring the engine's own stance that log emission must never
// fail the host program.
package ship

import (
	"context"
	"io"
	"sync"
	"time"
)

// Record is one emitted sample line with its capture timestamp.
// Msgpack tags define the wire shape used by the frame and Redis
// shippers.
type Record struct {
	// Ts is the emission timestamp in ISO 8601 UTC format.
	Ts string `msgpack:"ts"`
	// Line is the formatted event, newline-terminated.
	Line []byte `msgpack:"line"`
}

// Shipper delivers a batch of emitted records downstream.
// Implementations must preserve ordering within the batch.
type Shipper interface {
	// Ship delivers a batch. Returns error on failure; callers decide
	// whether the loss is tolerable.
	Ship(ctx context.Context, records []Record) error

	// Close releases shipper resources.
	Close() error
}

// Writer adapts a Shipper into a sink-writer factory for the sampling
// core: each emission batch is collected and shipped as one call when
// the engine closes the batch handle.
func Writer(s Shipper) func() io.Writer {
	return func() io.Writer { return &batchWriter{shipper: s} }
}

type batchWriter struct {
	shipper Shipper
	records []Record
}

// Write buffers one emitted line into the current batch.
func (w *batchWriter) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	w.records = append(w.records, Record{
		Ts:   time.Now().UTC().Format(time.RFC3339Nano),
		Line: line,
	})
	return len(p), nil
}

// Close ships the collected batch. Called by the engine after the
// batch is fully written.
func (w *batchWriter) Close() error {
	if len(w.records) == 0 {
		return nil
	}
	records := w.records
	w.records = nil
	return w.shipper.Ship(context.Background(), records)
}

// StubShipper records shipped batches for test assertions.
type StubShipper struct {
	mu sync.Mutex

	// Batches stores each Ship call's records.
	Batches [][]Record
	// Closed indicates whether Close was called.
	Closed bool
	// ErrorOnShip, if non-nil, is returned by Ship.
	ErrorOnShip error
}

// NewStubShipper creates a new stub shipper for testing.
func NewStubShipper() *StubShipper {
	return &StubShipper{}
}

// Ship records the batch without delivering it.
func (s *StubShipper) Ship(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnShip != nil {
		return s.ErrorOnShip
	}
	s.Batches = append(s.Batches, records)
	return nil
}

// Close marks the shipper as closed.
func (s *StubShipper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Records returns all shipped records across batches, in order.
func (s *StubShipper) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, b := range s.Batches {
		out = append(out, b...)
	}
	return out
}

// Verify StubShipper implements Shipper.
var _ Shipper = (*StubShipper)(nil)
