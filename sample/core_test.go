package sample_test

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/sift/sample"
)

type budgetDef struct {
	filter sample.Filter
	rate   float64
}

func buildCore(t *testing.T, bucket time.Duration, budgets []budgetDef) (*sample.Core, *sample.Stats, *sample.CaptureWriter) {
	t.Helper()

	w := sample.NewCaptureWriter()
	b := sample.New().
		BucketDuration(bucket).
		Writer(w.Factory).
		WithoutTime()
	for _, def := range budgets {
		b = b.Budget(def.filter, def.rate)
	}

	core, stats, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return core, stats, w
}

func TestCore_ReservoirKeepsAtMostCapacity(t *testing.T) {
	core, stats, w := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.ErrorLevel), 10},
	})
	logger := zap.New(core)

	for i := 0; i < 100; i++ {
		logger.Error("event")
	}
	core.Flush()

	if got := len(w.Lines()); got != 10 {
		t.Errorf("expected exactly 10 lines, got %d", got)
	}
	if stats.Received() != 100 {
		t.Errorf("expected received=100, got %d", stats.Received())
	}
	if stats.Sampled() != 10 {
		t.Errorf("expected sampled=10, got %d", stats.Sampled())
	}
	if stats.Dropped() != 90 {
		t.Errorf("expected dropped=90, got %d", stats.Dropped())
	}
}

func TestCore_EjectedEventsCascadeToNextBudget(t *testing.T) {
	core, _, w := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.ErrorLevel), 5},
		{sample.MinLevel(zapcore.DebugLevel), 50},
	})
	logger := zap.New(core)

	for i := 0; i < 100; i++ {
		logger.Error("event")
	}
	core.Flush()

	// Every offer to the full first reservoir displaces exactly one item
	// into the second, so the second sees 95 offers and fills to 50.
	if got := len(w.Lines()); got != 55 {
		t.Errorf("expected cascade to fill both reservoirs to 5+50=55 lines, got %d", got)
	}
}

func TestCore_NonMatchingEventsAreDiscarded(t *testing.T) {
	core, stats, w := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.ErrorLevel), 100},
	})
	logger := zap.New(core)

	for i := 0; i < 50; i++ {
		logger.Debug("should not match")
	}
	core.Flush()

	if got := len(w.Lines()); got != 0 {
		t.Errorf("expected 0 lines for non-matching events, got %d", got)
	}
	if snap := stats.Snapshot(); snap != (sample.Snapshot{}) {
		t.Errorf("expected all-zero stats, got %+v", snap)
	}
}

func TestCore_MultipleBudgetsSeparateLevels(t *testing.T) {
	core, _, w := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.ErrorLevel), 10},
		{sample.MinLevel(zapcore.DebugLevel), 10},
	})
	logger := zap.New(core)

	for i := 0; i < 50; i++ {
		logger.Error("err")
	}
	for i := 0; i < 50; i++ {
		logger.Debug("dbg")
	}
	core.Flush()

	lines := w.Lines()
	errors, debugs := 0, 0
	for _, line := range lines {
		switch {
		case strings.Contains(line, "ERROR"):
			errors++
		case strings.Contains(line, "DEBUG"):
			debugs++
		}
	}

	if errors < 10 {
		t.Errorf("expected at least 10 error lines, got %d", errors)
	}
	if debugs < 1 {
		t.Errorf("expected at least 1 debug line, got %d", debugs)
	}
}

func TestCore_BucketRotationFlushesPreviousBucket(t *testing.T) {
	core, _, w := buildCore(t, 50*time.Millisecond, []budgetDef{
		{sample.MinLevel(zapcore.DebugLevel), 1000},
	})
	logger := zap.New(core)

	for i := 0; i < 10; i++ {
		logger.Info("batch1")
	}
	time.Sleep(60 * time.Millisecond)
	logger.Info("batch2")
	core.Flush()

	lines := w.Lines()
	if len(lines) < 11 {
		t.Fatalf("expected all 11 events, got %d lines", len(lines))
	}
	for _, line := range lines[:10] {
		if !strings.Contains(line, "batch1") {
			t.Errorf("expected batch1 before batch2, got line %q", line)
		}
	}
	if !strings.Contains(lines[len(lines)-1], "batch2") {
		t.Errorf("expected batch2 last, got %q", lines[len(lines)-1])
	}
}

func TestCore_EmissionFollowsArrivalOrder(t *testing.T) {
	core, _, w := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.ErrorLevel), 1000},
	})
	logger := zap.New(core)

	for i := 0; i < 100; i++ {
		logger.Error(fmt.Sprintf("event-%03d", i))
	}
	core.Flush()

	lines := w.Lines()
	if len(lines) != 100 {
		t.Fatalf("expected 100 lines, got %d", len(lines))
	}
	if !sort.StringsAreSorted(lines) {
		t.Error("emitted lines are not in arrival order")
	}
}

func TestCore_FlushTwiceEmitsNothing(t *testing.T) {
	core, _, w := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.ErrorLevel), 10},
	})
	logger := zap.New(core)

	for i := 0; i < 20; i++ {
		logger.Error("event")
	}
	core.Flush()

	w.Reset()
	core.Flush()
	if got := w.String(); got != "" {
		t.Errorf("second flush should emit nothing, got %q", got)
	}
}

func TestCore_CloseFlushes(t *testing.T) {
	core, _, w := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.ErrorLevel), 10},
	})
	logger := zap.New(core)

	for i := 0; i < 5; i++ {
		logger.Error("event")
	}
	core.Close()

	if got := len(w.Lines()); got != 5 {
		t.Errorf("expected close to flush 5 lines, got %d", got)
	}
}

func TestCore_SyncFlushes(t *testing.T) {
	core, _, w := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.ErrorLevel), 10},
	})
	logger := zap.New(core)

	logger.Error("event")
	if err := logger.Sync(); err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}

	if got := len(w.Lines()); got != 1 {
		t.Errorf("expected sync to flush 1 line, got %d", got)
	}
}

func TestCore_WithFieldsShareState(t *testing.T) {
	core, stats, w := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.ErrorLevel), 100},
	})
	logger := zap.New(core)
	scoped := logger.With(zap.String("request_id", "r-42"))

	logger.Error("bare")
	scoped.Error("annotated")
	core.Flush()

	lines := w.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if strings.Contains(lines[0], "r-42") {
		t.Errorf("bare line should not carry the field: %q", lines[0])
	}
	if !strings.Contains(lines[1], "r-42") {
		t.Errorf("annotated line should carry the field: %q", lines[1])
	}
	if stats.Received() != 2 {
		t.Errorf("clones should share counters, received=%d", stats.Received())
	}
}

func TestCore_Enabled(t *testing.T) {
	core, _, _ := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.WarnLevel), 10},
	})

	if core.Enabled(zapcore.DebugLevel) {
		t.Error("debug should not interest a warn-level budget")
	}
	if !core.Enabled(zapcore.ErrorLevel) {
		t.Error("error should interest a warn-level budget")
	}
}

func TestCore_StatsBalanceUnderConcurrency(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 1000

	core, stats, w := buildCore(t, time.Second, []budgetDef{
		{sample.MinLevel(zapcore.ErrorLevel), float64(goroutines * perGoroutine)},
	})
	logger := zap.New(core)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				logger.Error("event")
			}
		}()
	}
	wg.Wait()
	core.Flush()

	total := uint64(goroutines * perGoroutine)
	if stats.Received() != total {
		t.Errorf("expected received=%d, got %d", total, stats.Received())
	}
	if stats.Sampled()+stats.Dropped() != total {
		t.Errorf("expected sampled+dropped=%d, got %d+%d",
			total, stats.Sampled(), stats.Dropped())
	}
	if got := len(w.Lines()); uint64(got) != stats.Sampled() {
		t.Errorf("expected %d emitted lines, got %d", stats.Sampled(), got)
	}
}

func TestCore_SeededBuildIsDeterministic(t *testing.T) {
	run := func() []string {
		w := sample.NewCaptureWriter()
		core, _, err := sample.New().
			BucketDuration(time.Second).
			Budget(sample.MinLevel(zapcore.ErrorLevel), 10).
			Writer(w.Factory).
			WithoutTime().
			Seed(7).
			Build()
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		logger := zap.New(core)
		for i := 0; i < 200; i++ {
			logger.Error(fmt.Sprintf("event-%03d", i))
		}
		core.Flush()
		return w.Lines()
	}

	first := run()
	second := run()
	if len(first) != 10 || len(second) != 10 {
		t.Fatalf("expected 10 lines per run, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("seeded runs diverge at line %d: %q vs %q", i, first[i], second[i])
		}
	}
}
