package ship_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/sift/sample"
	"github.com/justapithecus/sift/ship"
)

func TestWriter_ShipsOneBatchPerEmission(t *testing.T) {
	stub := ship.NewStubShipper()
	w := ship.Writer(stub)()

	if _, err := w.Write([]byte("line one\n")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if _, err := w.Write([]byte("line two\n")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if err := w.(io.Closer).Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if len(stub.Batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(stub.Batches))
	}
	batch := stub.Batches[0]
	if len(batch) != 2 {
		t.Fatalf("expected 2 records, got %d", len(batch))
	}
	if string(batch[0].Line) != "line one\n" || string(batch[1].Line) != "line two\n" {
		t.Errorf("records out of order or corrupted: %q, %q", batch[0].Line, batch[1].Line)
	}
	if batch[0].Ts == "" {
		t.Error("expected a capture timestamp")
	}
}

func TestWriter_EmptyBatchShipsNothing(t *testing.T) {
	stub := ship.NewStubShipper()
	w := ship.Writer(stub)()

	if err := w.(io.Closer).Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if len(stub.Batches) != 0 {
		t.Errorf("expected no batches for an empty emission, got %d", len(stub.Batches))
	}
}

func TestWriter_CopiesLineBytes(t *testing.T) {
	stub := ship.NewStubShipper()
	w := ship.Writer(stub)()

	line := []byte("original\n")
	if _, err := w.Write(line); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	copy(line, "mutated!!")
	_ = w.(io.Closer).Close()

	if got := string(stub.Records()[0].Line); got != "original\n" {
		t.Errorf("record aliases the caller's buffer: %q", got)
	}
}

func TestWriter_WiredIntoSamplingCore(t *testing.T) {
	stub := ship.NewStubShipper()
	core, _, err := sample.New().
		BucketDuration(time.Second).
		Budget(sample.MinLevel(zapcore.ErrorLevel), 10).
		Writer(ship.Writer(stub)).
		WithoutTime().
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	logger := zap.New(core)
	for i := 0; i < 5; i++ {
		logger.Error("event")
	}
	core.Flush()

	if len(stub.Batches) != 1 {
		t.Fatalf("expected the flush to ship 1 batch, got %d", len(stub.Batches))
	}
	if got := len(stub.Batches[0]); got != 5 {
		t.Errorf("expected 5 records in the batch, got %d", got)
	}
}

func TestStubShipper_ErrorPropagates(t *testing.T) {
	stub := ship.NewStubShipper()
	stub.ErrorOnShip = errors.New("downstream unavailable")

	w := ship.Writer(stub)()
	_, _ = w.Write([]byte("line\n"))
	if err := w.(io.Closer).Close(); err == nil {
		t.Error("expected ship error to surface from Close")
	}
}
